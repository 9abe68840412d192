package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotfinder/internal/availability"
	"github.com/teemow/slotfinder/internal/calendar"
)

func denver(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)
	return loc
}

// at returns 2026-03-10 (a Tuesday) at hh:mm Denver time.
func at(t *testing.T, hh, mm int) time.Time {
	return time.Date(2026, time.March, 10, hh, mm, 0, 0, denver(t))
}

func busyBetween(start, end time.Time) availability.BusyInterval {
	return availability.NewBusyInterval(start, end)
}

type failingProvider struct{ err error }

func (f failingProvider) BusyIntervals(context.Context, []string, time.Time, time.Time) (map[string]availability.CalendarBusy, error) {
	return nil, f.err
}

type recordingCreator struct {
	calendarID string
	input      calendar.EventInput
	calls      int
	err        error
}

func (r *recordingCreator) CreateEvent(_ context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error) {
	r.calls++
	r.calendarID = calendarID
	r.input = input
	if r.err != nil {
		return nil, r.err
	}
	return &calendar.EventSummary{ID: "evt-1", Summary: input.Summary, Start: input.Start, End: input.End}, nil
}

func newTestService(t *testing.T, provider BusyProvider, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithClock(availability.FixedClock(at(t, 7, 30)))}, opts...)
	svc, err := NewService(provider, DefaultSettings(), opts...)
	require.NoError(t, err)
	return svc
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil, DefaultSettings())
	assert.Error(t, err)

	bad := DefaultSettings()
	bad.Timezone = "Nowhere/Land"
	_, err = NewService(NewStaticProvider(nil), bad)
	assert.ErrorIs(t, err, availability.ErrInvalidTimezone)

	svc, err := NewService(NewStaticProvider(nil), DefaultSettings())
	require.NoError(t, err)
	assert.False(t, svc.CanBook())
	assert.Equal(t, DefaultSettings(), svc.Settings())
}

func TestFindAvailability_Defaults(t *testing.T) {
	provider := NewStaticProvider(map[string]availability.CalendarBusy{
		"a@example.com": {Intervals: []availability.BusyInterval{busyBetween(at(t, 8, 0), at(t, 10, 0))}},
	})
	svc := newTestService(t, provider)

	got, err := svc.FindAvailability(context.Background(), Request{
		Calendars: []string{"a@example.com", "b@example.com"},
	})
	require.NoError(t, err)
	require.False(t, got.Empty())

	assert.Equal(t, "America/Denver", got.Timezone)
	assert.Equal(t, "2026-03-10T07:30:00-06:00", got.TimeMin)
	assert.Equal(t, "2026-03-20T07:30:00-06:00", got.TimeMax)

	want := []SlotView{
		{CalendarID: "b@example.com", Start: "2026-03-10T08:00:00-06:00", End: "2026-03-10T09:00:00-06:00",
			StartTime: "Tuesday, March 10, 2026 8:00 AM", EndTime: "Tuesday, March 10, 2026 9:00 AM"},
		{CalendarID: "b@example.com", Start: "2026-03-10T09:00:00-06:00", End: "2026-03-10T10:00:00-06:00",
			StartTime: "Tuesday, March 10, 2026 9:00 AM", EndTime: "Tuesday, March 10, 2026 10:00 AM"},
		{CalendarID: "a@example.com", Start: "2026-03-10T10:00:00-06:00", End: "2026-03-10T11:00:00-06:00",
			StartTime: "Tuesday, March 10, 2026 10:00 AM", EndTime: "Tuesday, March 10, 2026 11:00 AM"},
		{CalendarID: "a@example.com", Start: "2026-03-10T11:00:00-06:00", End: "2026-03-10T12:00:00-06:00",
			StartTime: "Tuesday, March 10, 2026 11:00 AM", EndTime: "Tuesday, March 10, 2026 12:00 PM"},
	}
	assert.Equal(t, want, got.Slots)
	assert.Len(t, got.Result().Slots, 4)
	assert.Empty(t, got.CalendarErrors)
}

func TestFindAvailability_RequestOverrides(t *testing.T) {
	svc := newTestService(t, NewStaticProvider(nil))

	timeMin := at(t, 13, 0)
	got, err := svc.FindAvailability(context.Background(), Request{
		Calendars:        []string{"a@example.com"},
		Duration:         30 * time.Minute,
		Interval:         15 * time.Minute,
		Timezone:         "Europe/London",
		WindowStart:      "20:15",
		WindowEnd:        "21:00",
		SlotsPerCalendar: 3,
		TimeMin:          &timeMin,
	})
	require.NoError(t, err)

	// 13:00 Denver is 19:00 in London on this date.
	require.Len(t, got.Slots, 3)
	assert.Equal(t, "2026-03-10T20:15:00Z", got.Slots[0].Start)
	// 20:45 to 21:15 would cross the window close, so the next slots fall on later days.
	assert.Equal(t, "2026-03-11T20:15:00Z", got.Slots[1].Start)
	assert.Equal(t, "2026-03-12T20:15:00Z", got.Slots[2].Start)
	assert.Equal(t, "Europe/London", got.Timezone)
}

func TestFindAvailability_ExcludesCalendarErrors(t *testing.T) {
	provider := NewStaticProvider(map[string]availability.CalendarBusy{
		"missing@example.com": {Errors: []string{"notFound"}},
	})
	svc := newTestService(t, provider)

	got, err := svc.FindAvailability(context.Background(), Request{
		Calendars: []string{"missing@example.com", "ok@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"missing@example.com": {"notFound"}}, got.CalendarErrors)
	for _, s := range got.Slots {
		assert.Equal(t, "ok@example.com", s.CalendarID)
	}
	assert.Len(t, got.Slots, 2)
}

func TestFindAvailability_AllCalendarsFailing(t *testing.T) {
	provider := NewStaticProvider(map[string]availability.CalendarBusy{
		"missing@example.com": {Errors: []string{"notFound"}},
	})
	svc := newTestService(t, provider)

	got, err := svc.FindAvailability(context.Background(), Request{Calendars: []string{"missing@example.com"}})
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.NotNil(t, got.Slots)
	assert.Contains(t, got.CalendarErrors, "missing@example.com")
}

func TestFindAvailability_NoSlotsIsNotAnError(t *testing.T) {
	provider := NewStaticProvider(map[string]availability.CalendarBusy{
		"a@example.com": {Intervals: []availability.BusyInterval{busyBetween(at(t, 8, 0), at(t, 9, 0))}},
	})
	svc := newTestService(t, provider)

	timeMin, timeMax := at(t, 8, 0), at(t, 9, 0)
	got, err := svc.FindAvailability(context.Background(), Request{
		Calendars: []string{"a@example.com"},
		TimeMin:   &timeMin,
		TimeMax:   &timeMax,
	})
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestFindAvailability_DuplicateCalendars(t *testing.T) {
	svc := newTestService(t, NewStaticProvider(nil))

	got, err := svc.FindAvailability(context.Background(), Request{
		Calendars: []string{"a@example.com", " a@example.com ", "a@example.com"},
	})
	require.NoError(t, err)
	assert.Len(t, got.Slots, 2)
}

func TestFindAvailability_InvalidRequests(t *testing.T) {
	svc := newTestService(t, NewStaticProvider(nil))
	timeMin, timeMax := at(t, 12, 0), at(t, 9, 0)

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{name: "no calendars", req: Request{}, wantErr: availability.ErrNoCalendars},
		{name: "blank calendar", req: Request{Calendars: []string{" "}}, wantErr: ErrBadRequest},
		{name: "unknown timezone", req: Request{Calendars: []string{"a"}, Timezone: "Mars/Base"}, wantErr: availability.ErrInvalidTimezone},
		{name: "bad window", req: Request{Calendars: []string{"a"}, WindowStart: "25:00"}, wantErr: availability.ErrInvalidWindow},
		{name: "window reversed", req: Request{Calendars: []string{"a"}, WindowStart: "17:00", WindowEnd: "08:00"}, wantErr: availability.ErrInvalidWindow},
		{name: "negative duration", req: Request{Calendars: []string{"a"}, Duration: -time.Minute}, wantErr: availability.ErrInvalidDuration},
		{name: "negative interval", req: Request{Calendars: []string{"a"}, Interval: -time.Minute}, wantErr: availability.ErrInvalidInterval},
		{name: "negative slots", req: Request{Calendars: []string{"a"}, SlotsPerCalendar: -1}, wantErr: availability.ErrInvalidSlotCount},
		{name: "inverted range", req: Request{Calendars: []string{"a"}, TimeMin: &timeMin, TimeMax: &timeMax}, wantErr: availability.ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FindAvailability(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsClientError(err))
		})
	}
}

func TestFindAvailability_ProviderError(t *testing.T) {
	upstream := errors.New("quota exceeded")
	svc := newTestService(t, failingProvider{err: upstream})

	_, err := svc.FindAvailability(context.Background(), Request{Calendars: []string{"a@example.com"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.False(t, IsClientError(err))
}

func TestCheckAvailability(t *testing.T) {
	provider := NewStaticProvider(map[string]availability.CalendarBusy{
		"a@example.com":       {Intervals: []availability.BusyInterval{busyBetween(at(t, 9, 0), at(t, 10, 0))}},
		"missing@example.com": {Errors: []string{"notFound"}},
	})
	svc := newTestService(t, provider)
	ctx := context.Background()

	free, err := svc.CheckAvailability(ctx, []string{"a@example.com", "b@example.com"}, at(t, 10, 0), at(t, 11, 0))
	require.NoError(t, err)
	assert.True(t, free, "touching the end of a busy period is free")

	free, err = svc.CheckAvailability(ctx, []string{"b@example.com", "a@example.com"}, at(t, 9, 30), at(t, 10, 30))
	require.NoError(t, err)
	assert.False(t, free)

	_, err = svc.CheckAvailability(ctx, []string{"missing@example.com"}, at(t, 10, 0), at(t, 11, 0))
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Contains(t, err.Error(), "missing@example.com (notFound)")

	_, err = svc.CheckAvailability(ctx, []string{"a@example.com"}, at(t, 11, 0), at(t, 11, 0))
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.CheckAvailability(ctx, nil, at(t, 10, 0), at(t, 11, 0))
	assert.ErrorIs(t, err, availability.ErrNoCalendars)
}

func TestQueryBusy(t *testing.T) {
	provider := NewStaticProvider(map[string]availability.CalendarBusy{
		"a@example.com":       {Intervals: []availability.BusyInterval{busyBetween(at(t, 9, 0), at(t, 10, 0))}},
		"missing@example.com": {Errors: []string{"notFound"}},
	})
	svc := newTestService(t, provider)
	ctx := context.Background()

	busy, err := svc.QueryBusy(ctx, []string{"a@example.com", "b@example.com", "missing@example.com"}, at(t, 0, 0), at(t, 23, 0))
	require.NoError(t, err)
	require.Len(t, busy, 3)
	assert.Len(t, busy["a@example.com"].Intervals, 1)
	assert.Empty(t, busy["b@example.com"].Intervals)
	assert.Equal(t, []string{"notFound"}, busy["missing@example.com"].Errors)

	_, err = svc.QueryBusy(ctx, []string{"a@example.com"}, at(t, 10, 0), at(t, 9, 0))
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.QueryBusy(ctx, []string{"a@example.com"}, at(t, 0, 0), at(t, 0, 0).Add(100*24*time.Hour))
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = newTestService(t, failingProvider{err: errors.New("boom")}).QueryBusy(ctx, []string{"a"}, at(t, 0, 0), at(t, 1, 0))
	assert.Error(t, err)
	assert.False(t, IsClientError(err))
}

func TestBookSlot(t *testing.T) {
	provider := NewStaticProvider(map[string]availability.CalendarBusy{
		"a@example.com": {Intervals: []availability.BusyInterval{busyBetween(at(t, 9, 0), at(t, 10, 0))}},
	})
	creator := &recordingCreator{}
	svc := newTestService(t, provider, WithEventCreator(creator))
	require.True(t, svc.CanBook())

	event, err := svc.BookSlot(context.Background(), BookingRequest{
		CalendarID: "a@example.com",
		Start:      at(t, 10, 0).UTC(),
		Duration:   30 * time.Minute,
		Summary:    "Intro call",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", event.ID)

	assert.Equal(t, 1, creator.calls)
	assert.Equal(t, "a@example.com", creator.calendarID)
	assert.Equal(t, "America/Denver", creator.input.TimeZone)
	assert.Equal(t, "Intro call", creator.input.Summary)
	assert.True(t, creator.input.Start.Equal(at(t, 10, 0)))
	assert.True(t, creator.input.End.Equal(at(t, 10, 30)))
	assert.Equal(t, denver(t).String(), creator.input.Start.Location().String())
}

func TestBookSlot_Errors(t *testing.T) {
	provider := NewStaticProvider(map[string]availability.CalendarBusy{
		"a@example.com": {Intervals: []availability.BusyInterval{busyBetween(at(t, 9, 0), at(t, 10, 0))}},
	})
	ctx := context.Background()

	_, err := newTestService(t, provider).BookSlot(ctx, BookingRequest{CalendarID: "a@example.com", Start: at(t, 11, 0)})
	assert.ErrorIs(t, err, ErrBookingDisabled)

	creator := &recordingCreator{}
	svc := newTestService(t, provider, WithEventCreator(creator))

	_, err = svc.BookSlot(ctx, BookingRequest{CalendarID: "a@example.com", Start: at(t, 9, 30)})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, 0, creator.calls)

	_, err = svc.BookSlot(ctx, BookingRequest{CalendarID: "a@example.com", Start: at(t, 9, 30), SkipCheck: true})
	assert.NoError(t, err)
	assert.Equal(t, 1, creator.calls)

	_, err = svc.BookSlot(ctx, BookingRequest{Start: at(t, 11, 0)})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.BookSlot(ctx, BookingRequest{CalendarID: "a@example.com"})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.BookSlot(ctx, BookingRequest{CalendarID: "a@example.com", Start: at(t, 11, 0), Timezone: "Bad/Zone"})
	assert.ErrorIs(t, err, availability.ErrInvalidTimezone)

	_, err = svc.BookSlot(ctx, BookingRequest{CalendarID: "a@example.com", Start: at(t, 11, 0), Duration: -time.Hour})
	assert.ErrorIs(t, err, availability.ErrInvalidDuration)

	creator.err = errors.New("insufficient permissions")
	_, err = svc.BookSlot(ctx, BookingRequest{CalendarID: "a@example.com", Start: at(t, 11, 0)})
	require.Error(t, err)
	assert.False(t, IsClientError(err))
	assert.Contains(t, err.Error(), "failed to book slot")
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Settings) {}},
		{name: "bad timezone", mutate: func(s *Settings) { s.Timezone = "" }, wantErr: availability.ErrInvalidTimezone},
		{name: "zero duration", mutate: func(s *Settings) { s.Duration = 0 }, wantErr: availability.ErrInvalidDuration},
		{name: "zero interval", mutate: func(s *Settings) { s.Interval = 0 }, wantErr: availability.ErrInvalidInterval},
		{name: "zero slots", mutate: func(s *Settings) { s.SlotsPerCalendar = 0 }, wantErr: availability.ErrInvalidSlotCount},
		{name: "empty window", mutate: func(s *Settings) { s.WindowEnd = s.WindowStart }, wantErr: availability.ErrInvalidWindow},
		{name: "zero days", mutate: func(s *Settings) { s.SearchDays = 0 }, wantErr: ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStaticProvider(t *testing.T) {
	start := at(t, 9, 0)
	p := NewStaticProvider(nil)
	p.Set("a@example.com", availability.CalendarBusy{Intervals: []availability.BusyInterval{
		busyBetween(start, start.Add(time.Hour)),
		busyBetween(start.Add(48*time.Hour), start.Add(49*time.Hour)),
		{Start: &start},
	}})

	busy, err := p.BusyIntervals(context.Background(), []string{"a@example.com", "b@example.com"}, start, start.Add(24*time.Hour))
	require.NoError(t, err)

	assert.NotContains(t, busy, "b@example.com")
	require.Len(t, busy["a@example.com"].Intervals, 2, "out-of-range interval dropped, malformed one kept")
	assert.True(t, busy["a@example.com"].Intervals[0].Valid())
	assert.False(t, busy["a@example.com"].Intervals[1].Valid())
}

func TestLoadStaticProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"calendars": {
			"a@example.com": {"busy": [{"start": "2026-03-10T09:00:00-06:00", "end": "2026-03-10T10:00:00-06:00"}]},
			"missing@example.com": {"errors": ["notFound"]}
		}
	}`), 0o600))

	p, err := LoadStaticProvider(path)
	require.NoError(t, err)

	busy, err := p.BusyIntervals(context.Background(), []string{"a@example.com", "missing@example.com"}, at(t, 0, 0), at(t, 23, 0))
	require.NoError(t, err)
	require.Len(t, busy["a@example.com"].Intervals, 1)
	assert.True(t, busy["a@example.com"].Intervals[0].Start.Equal(at(t, 9, 0)))
	assert.Equal(t, []string{"notFound"}, busy["missing@example.com"].Errors)

	_, err = LoadStaticProvider(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = LoadStaticProvider(bad)
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("start", "2026-03-10T09:00:00-06:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(at(t, 9, 0)))

	_, err = ParseTime("start", "")
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = ParseTime("start", "tomorrow")
	assert.ErrorIs(t, err, ErrBadRequest)

	opt, err := ParseOptionalTime("timeMin", "")
	require.NoError(t, err)
	assert.Nil(t, opt)

	opt, err = ParseOptionalTime("timeMin", "2026-03-10T09:00:00Z")
	require.NoError(t, err)
	require.NotNil(t, opt)

	assert.Equal(t, 90*time.Minute, Minutes(90))
}
