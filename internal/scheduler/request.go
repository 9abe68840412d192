package scheduler

import (
	"strings"
	"time"

	"github.com/teemow/slotfinder/internal/availability"
)

// HumanLayout renders slot bounds for people, e.g. "Tuesday, March 10, 2026 9:00 AM".
const HumanLayout = "Monday, January 2, 2006 3:04 PM"

// Request describes one availability search. Zero values take the
// service Settings; negative values are rejected.
type Request struct {
	Calendars        []string
	Duration         time.Duration
	Interval         time.Duration
	Timezone         string
	WindowStart      string
	WindowEnd        string
	SlotsPerCalendar int

	// TimeMin defaults to now. TimeMax defaults to TimeMin plus the
	// configured number of search days.
	TimeMin *time.Time
	TimeMax *time.Time

	// Source labels metrics and audit entries (http, mcp, cli).
	Source string
}

// SlotView is a slot rendered in the search timezone.
type SlotView struct {
	CalendarID string `json:"calendarId"`
	Start      string `json:"start"`
	End        string `json:"end"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// Availability is the outcome of FindAvailability.
type Availability struct {
	Timezone string     `json:"timezone"`
	TimeMin  string     `json:"timeMin"`
	TimeMax  string     `json:"timeMax"`
	Slots    []SlotView `json:"slots"`

	// CalendarErrors lists calendars left out of the search because the
	// provider reported an error for them.
	CalendarErrors map[string][]string `json:"calendarErrors,omitempty"`

	result availability.Result
}

// Empty reports whether no slot was found.
func (a *Availability) Empty() bool {
	return a == nil || len(a.Slots) == 0
}

// Result returns the raw slots.
func (a *Availability) Result() availability.Result {
	if a == nil {
		return availability.Result{}
	}
	return a.result
}

func newAvailability(result availability.Result, loc *time.Location, timeMin, timeMax time.Time) *Availability {
	a := &Availability{
		Timezone: loc.String(),
		TimeMin:  timeMin.In(loc).Format(time.RFC3339),
		TimeMax:  timeMax.In(loc).Format(time.RFC3339),
		Slots:    make([]SlotView, 0, len(result.Slots)),
		result:   result,
	}
	for _, s := range result.Slots {
		a.Slots = append(a.Slots, ViewSlot(s, loc))
	}
	return a
}

// ViewSlot renders s in loc.
func ViewSlot(s availability.Slot, loc *time.Location) SlotView {
	start, end := s.Start.In(loc), s.End.In(loc)
	return SlotView{
		CalendarID: s.CalendarID,
		Start:      start.Format(time.RFC3339),
		End:        end.Format(time.RFC3339),
		StartTime:  start.Format(HumanLayout),
		EndTime:    end.Format(HumanLayout),
	}
}

// ParseTime parses an RFC 3339 timestamp such as "2026-03-10T09:00:00-06:00".
func ParseTime(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, badRequest("%s is required", field)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, badRequest("%s must be an RFC 3339 timestamp: %q", field, value)
	}
	return t, nil
}

// ParseOptionalTime is ParseTime for fields that may be empty.
func ParseOptionalTime(field, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := ParseTime(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Minutes converts a whole number of minutes from a request body.
func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// BookingRequest describes an event to insert.
type BookingRequest struct {
	CalendarID  string
	Start       time.Time
	Duration    time.Duration
	Timezone    string
	Summary     string
	Description string
	Attendees   []string
	AddMeet     bool

	// SkipCheck books without checking the slot is still free.
	SkipCheck bool

	Source string
}
