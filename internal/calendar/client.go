package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/slotfinder/internal/availability"
	"github.com/teemow/slotfinder/internal/google"
	"github.com/teemow/slotfinder/internal/instrumentation"
)

const (
	// FreeBusyChunkSize is the maximum number of calendars the FreeBusy
	// endpoint accepts in one request.
	FreeBusyChunkSize = 50

	// maxConcurrentQueries bounds parallel FreeBusy requests for large
	// calendar lists.
	maxConcurrentQueries = 4
)

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
	metrics *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records every Google API call on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a Calendar client that authenticates with ts.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(google.HTTPClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return NewClientWithService(svc, opts...), nil
}

// NewClientWithService wraps an existing Calendar service. Tests use it to
// point the client at a fake endpoint.
func NewClientWithService(svc *calendar.Service, opts ...Option) *Client {
	c := &Client{svc: svc}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// observe records metrics for one Google API call.
func (c *Client) observe(ctx context.Context, operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
}

// QueryFreeBusy returns busy periods for calendarIDs between timeMin and
// timeMax. Lists longer than FreeBusyChunkSize are split into several
// requests that run concurrently. Results follow the order of calendarIDs.
func (c *Client) QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) ([]FreeBusyInfo, error) {
	if len(calendarIDs) == 0 {
		return nil, nil
	}

	chunks := chunkIDs(calendarIDs, FreeBusyChunkSize)
	results := make([][]FreeBusyInfo, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for i, ids := range chunks {
		g.Go(func() error {
			infos, err := c.queryFreeBusyChunk(gctx, timeMin, timeMax, ids)
			if err != nil {
				return err
			}
			results[i] = infos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var infos []FreeBusyInfo
	for _, r := range results {
		infos = append(infos, r...)
	}
	return infos, nil
}

func (c *Client) queryFreeBusyChunk(ctx context.Context, timeMin, timeMax time.Time, calendarIDs []string) (infos []FreeBusyInfo, err error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationFreeBusy)
	defer span.End()
	start := time.Now()
	defer func() {
		c.observe(ctx, instrumentation.OperationFreeBusy, start, err)
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
	}()

	items := make([]*calendar.FreeBusyRequestItem, len(calendarIDs))
	for i, id := range calendarIDs {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	query := &calendar.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   items,
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	seen := make(map[string]bool, len(calendarIDs))
	for _, id := range calendarIDs {
		if cal, ok := result.Calendars[id]; ok && !seen[id] {
			infos = append(infos, toFreeBusyInfo(id, cal))
			seen[id] = true
		}
	}

	// The API may echo IDs in a normalised form; keep those too.
	var extra []string
	for id := range result.Calendars {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		infos = append(infos, toFreeBusyInfo(id, result.Calendars[id]))
	}

	return infos, nil
}

// BusyIntervals returns the busy data of calendarIDs keyed by calendar ID.
func (c *Client) BusyIntervals(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (map[string]availability.CalendarBusy, error) {
	infos, err := c.QueryFreeBusy(ctx, timeMin, timeMax, calendarIDs)
	if err != nil {
		return nil, err
	}

	busy := make(map[string]availability.CalendarBusy, len(infos))
	for _, info := range infos {
		busy[info.Calendar] = availability.CalendarBusy{
			Intervals: info.Busy,
			Errors:    info.Errors,
		}
	}
	return busy, nil
}

func toFreeBusyInfo(id string, cal calendar.FreeBusyCalendar) FreeBusyInfo {
	info := FreeBusyInfo{Calendar: id}
	for _, busy := range cal.Busy {
		info.Busy = append(info.Busy, toBusyInterval(busy))
	}
	for _, e := range cal.Errors {
		if e != nil {
			info.Errors = append(info.Errors, e.Reason)
		}
	}
	return info
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for size < len(ids) {
		chunks = append(chunks, ids[:size:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}

// CreateEvent creates a new calendar event
func (c *Client) CreateEvent(ctx context.Context, calendarID string, input EventInput) (summary *EventSummary, err error) {
	if calendarID == "" {
		return nil, errors.New("calendar ID is required")
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, instrumentation.OperationInsert)
	defer span.End()
	start := time.Now()
	defer func() {
		c.observe(ctx, instrumentation.OperationInsert, start, err)
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
	}()

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Location:    input.Location,
	}

	// For all-day events, use Date instead of DateTime
	if input.AllDay {
		event.Start = &calendar.EventDateTime{Date: input.Start.Format(time.DateOnly)}
		event.End = &calendar.EventDateTime{Date: input.End.Format(time.DateOnly)}
	} else {
		if input.TimeZone == "" {
			input.TimeZone = "UTC"
		}
		event.Start = &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		}
		event.End = &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		}
	}

	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	call := c.svc.Events.Insert(calendarID, event)
	if input.UseDefaultConferenceData {
		call = call.ConferenceDataVersion(1)
		event.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: uuid.NewString(),
			},
		}
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s := toEventSummary(created)
	return &s, nil
}

// ListCalendars lists all calendars accessible to the authenticated identity
func (c *Client) ListCalendars(ctx context.Context) (calendars []CalendarInfo, err error) {
	start := time.Now()
	defer func() { c.observe(ctx, instrumentation.OperationList, start, err) }()

	list, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	for _, entry := range list.Items {
		calendars = append(calendars, toCalendarInfo(entry))
	}

	return calendars, nil
}
