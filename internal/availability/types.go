package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BusyInterval is a half-open range [Start, End) during which a calendar is
// occupied. A nil bound marks malformed upstream data; such an interval never
// blocks a slot.
type BusyInterval struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// NewBusyInterval returns a well-formed interval for the given bounds.
func NewBusyInterval(start, end time.Time) BusyInterval {
	return BusyInterval{Start: &start, End: &end}
}

// Valid reports whether both bounds are present.
func (b BusyInterval) Valid() bool {
	return b.Start != nil && b.End != nil
}

// CalendarBusy is the busy data a provider reports for one calendar. Errors
// carries upstream reasons such as "notFound"; a calendar with errors has no
// trustworthy busy data.
type CalendarBusy struct {
	Intervals []BusyInterval `json:"busy"`
	Errors    []string       `json:"errors,omitempty"`
}

// BookingWindow is a wall-clock time of day in the search timezone.
// Hour 24 with Minute 0 denotes the end of the local day and is only valid as
// a window end.
type BookingWindow struct {
	Hour   int
	Minute int
}

// ParseBookingWindow parses "HH:MM" (24-hour clock).
func ParseBookingWindow(s string) (BookingWindow, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return BookingWindow{}, fmt.Errorf("%w: %q is not in HH:MM format", ErrInvalidWindow, s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return BookingWindow{}, fmt.Errorf("%w: bad hour in %q", ErrInvalidWindow, s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return BookingWindow{}, fmt.Errorf("%w: bad minute in %q", ErrInvalidWindow, s)
	}
	w := BookingWindow{Hour: hour, Minute: minute}
	if !w.valid() {
		return BookingWindow{}, fmt.Errorf("%w: %q is out of range", ErrInvalidWindow, s)
	}
	return w, nil
}

// String formats the window as "HH:MM".
func (w BookingWindow) String() string {
	return fmt.Sprintf("%02d:%02d", w.Hour, w.Minute)
}

func (w BookingWindow) valid() bool {
	if w.Hour == 24 {
		return w.Minute == 0
	}
	return w.Hour >= 0 && w.Hour <= 23 && w.Minute >= 0 && w.Minute <= 59
}

func (w BookingWindow) minuteOfDay() int {
	return w.Hour*60 + w.Minute
}

// on returns the instant of w on the given local date in loc. time.Date
// normalises Hour 24 to midnight of the following day.
func (w BookingWindow) on(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, w.Hour, w.Minute, 0, 0, loc)
}

// ValidateWindow checks that start and end form a same-day window with start
// strictly before end.
func ValidateWindow(start, end BookingWindow) error {
	if !start.valid() || start.Hour == 24 {
		return fmt.Errorf("%w: window start %s", ErrInvalidWindow, start)
	}
	if !end.valid() {
		return fmt.Errorf("%w: window end %s", ErrInvalidWindow, end)
	}
	if start.minuteOfDay() >= end.minuteOfDay() {
		return fmt.Errorf("%w: window start %s must be before window end %s", ErrInvalidWindow, start, end)
	}
	return nil
}

// SearchParameters configures one call to FindEarliestSlots.
type SearchParameters struct {
	// Duration is the length of every returned slot.
	Duration time.Duration

	// Interval is the step between candidate start times. Candidates are
	// aligned to multiples of Interval counted from the Unix epoch.
	Interval time.Duration

	// Location is the timezone the booking window is interpreted in.
	Location *time.Location

	WindowStart BookingWindow
	WindowEnd   BookingWindow

	// SlotsPerCalendar caps the number of slots reported per calendar.
	SlotsPerCalendar int

	// RangeStart and RangeEnd bound the search. No slot ends after RangeEnd.
	RangeStart time.Time
	RangeEnd   time.Time

	// Now is the current instant. Slots never start before it.
	// A zero value means time.Now().
	Now time.Time
}

// Validate reports the first invalid field, wrapped around ErrValidation.
func (p SearchParameters) Validate() error {
	if p.Duration <= 0 {
		return ErrInvalidDuration
	}
	if p.Interval <= 0 {
		return ErrInvalidInterval
	}
	if p.SlotsPerCalendar < 1 {
		return ErrInvalidSlotCount
	}
	if p.Location == nil {
		return ErrInvalidTimezone
	}
	if err := ValidateWindow(p.WindowStart, p.WindowEnd); err != nil {
		return err
	}
	if p.RangeStart.After(p.RangeEnd) {
		return ErrInvalidRange
	}
	return nil
}

// Slot is an open period on one calendar. Start and End are expressed in the
// search timezone.
type Slot struct {
	CalendarID string    `json:"calendarId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// Result is the merged outcome of a search, ordered by Start.
type Result struct {
	Slots []Slot
}

// Empty reports that no calendar had availability. It is not an error.
func (r Result) Empty() bool {
	return len(r.Slots) == 0
}

// ResolveLocation loads an IANA timezone such as "America/Denver".
func ResolveLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty timezone name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidTimezone, name, err)
	}
	return loc, nil
}
