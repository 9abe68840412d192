package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teemow/slotfinder/internal/calendar"
	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/logging"
	"github.com/teemow/slotfinder/internal/scheduler"
	"github.com/teemow/slotfinder/internal/server"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	sc *server.ServerContext
}

// availabilityRequest is the body of POST /api/availability. Durations are
// in minutes; times are RFC 3339.
type availabilityRequest struct {
	Calendars          []string `json:"calendars"`
	Duration           int      `json:"duration"`
	Interval           int      `json:"interval"`
	Timezone           string   `json:"timezone"`
	BookingWindowStart string   `json:"bookingWindowStart"`
	BookingWindowEnd   string   `json:"bookingWindowEnd"`
	SlotsPerCalendar   int      `json:"slotsPerCalendar"`
	TimeMin            string   `json:"timeMin"`
	TimeMax            string   `json:"timeMax"`

	// StartTime and EndTime together switch the request to a check.
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type availableResponse struct {
	Available bool `json:"available"`
}

// bookRequest is the body of POST /api/book.
type bookRequest struct {
	CalendarID  string   `json:"calendarId"`
	Start       string   `json:"start"`
	Duration    int      `json:"duration"`
	Timezone    string   `json:"timezone"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Attendees   []string `json:"attendees"`
	AddMeet     bool     `json:"addMeet"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func (h *handlers) root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Calendar service is running!"))
}

func (h *handlers) newInvocation(r *http.Request, name, operation string, calendars ...string) *instrumentation.Invocation {
	return instrumentation.NewInvocation(name, instrumentation.SourceHTTP).
		WithCaller(callerFrom(r.Context())).
		WithCalendars(calendars...).
		WithOperation(operation).
		WithSpanContext(r.Context())
}

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return
	}
	if len(req.Calendars) == 0 {
		writeError(w, http.StatusBadRequest, msgNoCalendars)
		return
	}

	if req.StartTime != "" && req.EndTime != "" {
		h.check(w, r, req)
		return
	}
	h.search(w, r, req)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request, req availabilityRequest) {
	ctx := r.Context()
	inv := h.newInvocation(r, "availability", instrumentation.OperationSearch, req.Calendars...)

	result, err := h.findAvailability(r, req)
	h.sc.AuditLogger().LogInvocation(inv.Complete(err == nil, err))

	switch {
	case err != nil && scheduler.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		loggerFrom(ctx).Error("availability search failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgSearchFailed)
	case result.Empty():
		writeJSON(w, http.StatusNotFound, messageResponse{Message: msgNoSlots})
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *handlers) findAvailability(r *http.Request, req availabilityRequest) (*scheduler.Availability, error) {
	timeMin, err := scheduler.ParseOptionalTime("timeMin", req.TimeMin)
	if err != nil {
		return nil, err
	}
	timeMax, err := scheduler.ParseOptionalTime("timeMax", req.TimeMax)
	if err != nil {
		return nil, err
	}

	return h.sc.Service().FindAvailability(r.Context(), scheduler.Request{
		Calendars:        req.Calendars,
		Duration:         scheduler.Minutes(req.Duration),
		Interval:         scheduler.Minutes(req.Interval),
		Timezone:         req.Timezone,
		WindowStart:      req.BookingWindowStart,
		WindowEnd:        req.BookingWindowEnd,
		SlotsPerCalendar: req.SlotsPerCalendar,
		TimeMin:          timeMin,
		TimeMax:          timeMax,
		Source:           instrumentation.SourceHTTP,
	})
}

func (h *handlers) check(w http.ResponseWriter, r *http.Request, req availabilityRequest) {
	ctx := r.Context()
	inv := h.newInvocation(r, "availability", instrumentation.OperationCheck, req.Calendars...)

	available, err := h.checkAvailability(r, req)
	h.sc.AuditLogger().LogInvocation(inv.Complete(err == nil, err))

	switch {
	case err != nil && scheduler.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		loggerFrom(ctx).Error("availability check failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgCheckFailed)
	default:
		writeJSON(w, http.StatusOK, availableResponse{Available: available})
	}
}

func (h *handlers) checkAvailability(r *http.Request, req availabilityRequest) (bool, error) {
	start, err := scheduler.ParseTime("startTime", req.StartTime)
	if err != nil {
		return false, err
	}
	end, err := scheduler.ParseTime("endTime", req.EndTime)
	if err != nil {
		return false, err
	}
	return h.sc.Service().CheckAvailability(r.Context(), req.Calendars, start, end)
}

func (h *handlers) book(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.sc.CanBook() {
		writeError(w, http.StatusNotImplemented, msgBookingDisabled)
		return
	}

	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return
	}

	inv := h.newInvocation(r, "book", instrumentation.OperationBook, req.CalendarID)
	event, err := h.bookSlot(r, req)
	h.sc.AuditLogger().LogInvocation(inv.Complete(err == nil, err))

	switch {
	case errors.Is(err, scheduler.ErrBookingDisabled):
		writeError(w, http.StatusNotImplemented, msgBookingDisabled)
	case errors.Is(err, scheduler.ErrSlotTaken):
		writeError(w, http.StatusConflict, msgSlotTaken)
	case err != nil && scheduler.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		loggerFrom(ctx).Error("booking failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, msgBookFailed)
	default:
		loggerFrom(ctx).Info("slot booked", logging.CalendarHash(req.CalendarID), slog.String("event_id", event.ID))
		writeJSON(w, http.StatusCreated, event)
	}
}

func (h *handlers) bookSlot(r *http.Request, req bookRequest) (*calendar.EventSummary, error) {
	start, err := scheduler.ParseTime("start", req.Start)
	if err != nil {
		return nil, err
	}
	return h.sc.Service().BookSlot(r.Context(), scheduler.BookingRequest{
		CalendarID:  req.CalendarID,
		Start:       start,
		Duration:    scheduler.Minutes(req.Duration),
		Timezone:    req.Timezone,
		Summary:     req.Summary,
		Description: req.Description,
		Attendees:   req.Attendees,
		AddMeet:     req.AddMeet,
		Source:      instrumentation.SourceHTTP,
	})
}
