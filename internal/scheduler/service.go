package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/teemow/slotfinder/internal/availability"
	"github.com/teemow/slotfinder/internal/calendar"
	"github.com/teemow/slotfinder/internal/instrumentation"
	"github.com/teemow/slotfinder/internal/logging"
)

// maxQueryRange bounds raw free/busy queries. Google rejects longer ranges.
const maxQueryRange = 90 * 24 * time.Hour

// Service answers availability, check and booking requests.
type Service struct {
	provider BusyProvider
	creator  EventCreator
	settings Settings
	clock    availability.Clock
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	audit    *instrumentation.AuditLogger
}

// Option configures a Service.
type Option func(*Service)

// WithEventCreator enables BookSlot.
func WithEventCreator(c EventCreator) Option {
	return func(s *Service) {
		s.creator = c
	}
}

// WithClock replaces the system clock.
func WithClock(c availability.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records search metrics on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditLogger writes an audit entry for every booking.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(s *Service) {
		s.audit = a
	}
}

// NewService creates a Service reading busy data from provider.
func NewService(provider BusyProvider, settings Settings, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, errors.New("busy provider cannot be nil")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default settings: %w", err)
	}

	s := &Service{
		provider: provider,
		settings: settings,
		clock:    availability.SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Settings returns the defaults applied to requests.
func (s *Service) Settings() Settings {
	return s.settings
}

// CanBook reports whether BookSlot is available.
func (s *Service) CanBook() bool {
	return s.creator != nil
}

// FindAvailability searches the requested calendars for their earliest open
// slots. No availability is reported as an empty result, not an error.
func (s *Service) FindAvailability(ctx context.Context, req Request) (result *Availability, err error) {
	start := time.Now()
	source := sourceOrDefault(req.Source)

	ctx, span := instrumentation.StartSearchSpan(ctx, instrumentation.NewSpanAttributeBuilder().
		WithCalendarCount(len(req.Calendars)).
		WithTimezone(req.Timezone).
		WithSource(source).
		Build()...)
	defer span.End()

	defer func() {
		status, outcome, slots := instrumentation.StatusSuccess, instrumentation.ResultFound, 0
		switch {
		case err != nil && IsClientError(err):
			status, outcome = instrumentation.StatusError, instrumentation.ResultInvalid
		case err != nil:
			status, outcome = instrumentation.StatusError, instrumentation.StatusError
		case result.Empty():
			outcome = instrumentation.ResultEmpty
		default:
			slots = len(result.Slots)
		}
		s.metrics.RecordAvailabilitySearch(ctx, source, status, outcome, slots, time.Since(start))

		if err != nil {
			instrumentation.SetSpanError(span, err)
			return
		}
		span.SetAttributes(instrumentation.NewSpanAttributeBuilder().WithSlotCount(len(result.Slots)).Build()...)
		instrumentation.AddSpanEvent(span, "search_completed")
		instrumentation.SetSpanSuccess(span)
	}()

	ids, err := cleanCalendarIDs(req.Calendars)
	if err != nil {
		return nil, err
	}

	params, err := s.parameters(req)
	if err != nil {
		return nil, err
	}

	logger := logging.WithOperation(s.logger, instrumentation.SpanSearch).With(
		logging.Calendars(ids),
		logging.Timezone(params.Location.String()),
		instrumentation.TraceAttr(ctx))

	busy, err := s.provider.BusyIntervals(ctx, ids, params.RangeStart, params.RangeEnd)
	if err != nil {
		logger.Error("failed to fetch busy intervals", logging.Err(err))
		return nil, fmt.Errorf("failed to fetch busy intervals: %w", err)
	}

	searchable, intervals, calendarErrors := splitCalendarErrors(ids, busy)
	for id, reasons := range calendarErrors {
		logger.Warn("excluding calendar with freebusy errors",
			logging.CalendarHash(id),
			slog.String("reasons", strings.Join(reasons, ",")))
	}

	var found availability.Result
	if len(searchable) > 0 {
		found, err = availability.FindEarliestSlots(searchable, intervals, params, availability.WithLogger(logger))
		if err != nil {
			return nil, err
		}
	}

	result = newAvailability(found, params.Location, params.RangeStart, params.RangeEnd)
	if len(calendarErrors) > 0 {
		result.CalendarErrors = calendarErrors
	}

	logger.Debug("search finished",
		slog.Int("slots", len(result.Slots)),
		slog.Int("excluded", len(calendarErrors)),
		slog.Duration(logging.KeyDuration, time.Since(start)))

	return result, nil
}

// parameters resolves a request against the service settings.
func (s *Service) parameters(req Request) (availability.SearchParameters, error) {
	now := s.clock.Now()

	tz := req.Timezone
	if tz == "" {
		tz = s.settings.Timezone
	}
	loc, err := availability.ResolveLocation(tz)
	if err != nil {
		return availability.SearchParameters{}, err
	}

	windowStart, err := windowOrDefault(req.WindowStart, s.settings.WindowStart)
	if err != nil {
		return availability.SearchParameters{}, err
	}
	windowEnd, err := windowOrDefault(req.WindowEnd, s.settings.WindowEnd)
	if err != nil {
		return availability.SearchParameters{}, err
	}

	p := availability.SearchParameters{
		Duration:         orDefault(req.Duration, s.settings.Duration),
		Interval:         orDefault(req.Interval, s.settings.Interval),
		Location:         loc,
		WindowStart:      windowStart,
		WindowEnd:        windowEnd,
		SlotsPerCalendar: req.SlotsPerCalendar,
		RangeStart:       now,
		Now:              now,
	}
	if p.SlotsPerCalendar == 0 {
		p.SlotsPerCalendar = s.settings.SlotsPerCalendar
	}
	if req.TimeMin != nil {
		p.RangeStart = *req.TimeMin
	}
	p.RangeEnd = p.RangeStart.Add(s.settings.horizon())
	if req.TimeMax != nil {
		p.RangeEnd = *req.TimeMax
	}

	if err := p.Validate(); err != nil {
		return availability.SearchParameters{}, err
	}
	return p, nil
}

// CheckAvailability reports whether every calendar is free over [start, end).
// A calendar the provider reports an error for cannot be confirmed and fails
// the check with a client error.
func (s *Service) CheckAvailability(ctx context.Context, calendars []string, start, end time.Time) (bool, error) {
	ids, err := cleanCalendarIDs(calendars)
	if err != nil {
		return false, err
	}
	if !start.Before(end) {
		return false, badRequest("start time must be before end time")
	}

	ctx, span := instrumentation.StartSpan(ctx, instrumentation.SpanCheck,
		instrumentation.NewSpanAttributeBuilder().WithCalendarCount(len(ids)).Build()...)
	defer span.End()

	busy, err := s.provider.BusyIntervals(ctx, ids, start, end)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return false, fmt.Errorf("failed to fetch busy intervals: %w", err)
	}

	_, intervals, calendarErrors := splitCalendarErrors(ids, busy)
	if len(calendarErrors) > 0 {
		err := badRequest("cannot check calendars with errors: %s", describeCalendarErrors(calendarErrors))
		instrumentation.SetSpanError(span, err)
		return false, err
	}

	for _, id := range ids {
		if !availability.IsFree(start, end, intervals[id]) {
			instrumentation.SetSpanSuccess(span)
			return false, nil
		}
	}
	instrumentation.SetSpanSuccess(span)
	return true, nil
}

// QueryBusy returns the raw busy data of calendars over [timeMin, timeMax).
// Calendars without busy periods are present with an empty entry.
func (s *Service) QueryBusy(ctx context.Context, calendars []string, timeMin, timeMax time.Time) (map[string]availability.CalendarBusy, error) {
	ids, err := cleanCalendarIDs(calendars)
	if err != nil {
		return nil, err
	}
	if !timeMin.Before(timeMax) {
		return nil, badRequest("timeMin must be before timeMax")
	}
	if timeMax.Sub(timeMin) > maxQueryRange {
		return nil, badRequest("query range must not exceed %s", maxQueryRange)
	}

	busy, err := s.provider.BusyIntervals(ctx, ids, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch busy intervals: %w", err)
	}
	if busy == nil {
		busy = make(map[string]availability.CalendarBusy, len(ids))
	}
	for _, id := range ids {
		if _, ok := busy[id]; !ok {
			busy[id] = availability.CalendarBusy{}
		}
	}
	return busy, nil
}

// BookSlot inserts an event of req.Duration at req.Start. Unless SkipCheck is
// set, the slot is checked first and ErrSlotTaken is returned if it is busy.
func (s *Service) BookSlot(ctx context.Context, req BookingRequest) (*calendar.EventSummary, error) {
	if s.creator == nil {
		return nil, ErrBookingDisabled
	}

	inv := instrumentation.NewInvocation("book", sourceOrDefault(req.Source)).
		WithOperation(instrumentation.OperationBook).
		WithCalendars(req.CalendarID).
		WithSpanContext(ctx)

	event, err := s.bookSlot(ctx, req)
	if err != nil {
		s.audit.LogAudit(inv.CompleteWithError(err))
		return nil, err
	}
	s.audit.LogAudit(inv.CompleteSuccess())
	return event, nil
}

func (s *Service) bookSlot(ctx context.Context, req BookingRequest) (*calendar.EventSummary, error) {
	calendarID := strings.TrimSpace(req.CalendarID)
	if calendarID == "" {
		return nil, badRequest("calendarId is required")
	}
	if req.Start.IsZero() {
		return nil, badRequest("start is required")
	}
	duration := orDefault(req.Duration, s.settings.Duration)
	if duration <= 0 {
		return nil, availability.ErrInvalidDuration
	}
	tz := req.Timezone
	if tz == "" {
		tz = s.settings.Timezone
	}
	loc, err := availability.ResolveLocation(tz)
	if err != nil {
		return nil, err
	}

	start := req.Start.In(loc)
	end := start.Add(duration)

	if !req.SkipCheck {
		free, err := s.CheckAvailability(ctx, []string{calendarID}, start, end)
		if err != nil {
			return nil, err
		}
		if !free {
			return nil, ErrSlotTaken
		}
	}

	event, err := s.creator.CreateEvent(ctx, calendarID, calendar.EventInput{
		Summary:                  req.Summary,
		Description:              req.Description,
		Start:                    start,
		End:                      end,
		TimeZone:                 loc.String(),
		Attendees:                req.Attendees,
		UseDefaultConferenceData: req.AddMeet,
	})
	if err != nil {
		s.logger.Error("failed to book slot", logging.CalendarHash(calendarID), logging.Err(err))
		return nil, fmt.Errorf("failed to book slot: %w", err)
	}

	s.logger.Info("booked slot",
		logging.CalendarHash(calendarID),
		slog.Time("start", start),
		slog.Duration(logging.KeyDuration, duration))
	return event, nil
}

// cleanCalendarIDs trims IDs, rejects blanks and removes repeats.
func cleanCalendarIDs(calendars []string) ([]string, error) {
	if len(calendars) == 0 {
		return nil, availability.ErrNoCalendars
	}
	seen := make(map[string]struct{}, len(calendars))
	ids := make([]string, 0, len(calendars))
	for _, raw := range calendars {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, badRequest("calendar IDs must not be empty")
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitCalendarErrors separates calendars that reported errors from those
// whose busy data can be searched.
func splitCalendarErrors(ids []string, busy map[string]availability.CalendarBusy) ([]string, map[string][]availability.BusyInterval, map[string][]string) {
	searchable := make([]string, 0, len(ids))
	intervals := make(map[string][]availability.BusyInterval, len(ids))
	var calendarErrors map[string][]string

	for _, id := range ids {
		cb := busy[id]
		if len(cb.Errors) > 0 {
			if calendarErrors == nil {
				calendarErrors = make(map[string][]string)
			}
			calendarErrors[id] = cb.Errors
			continue
		}
		searchable = append(searchable, id)
		intervals[id] = cb.Intervals
	}
	return searchable, intervals, calendarErrors
}

func describeCalendarErrors(calendarErrors map[string][]string) string {
	ids := make([]string, 0, len(calendarErrors))
	for id := range calendarErrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id + " (" + strings.Join(calendarErrors[id], ", ") + ")"
	}
	return strings.Join(parts, "; ")
}

func windowOrDefault(value string, fallback availability.BookingWindow) (availability.BookingWindow, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return availability.ParseBookingWindow(value)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return d
}

func sourceOrDefault(source string) string {
	if source == "" {
		return instrumentation.SourceCLI
	}
	return source
}
