package scheduler

import (
	"fmt"
	"time"

	"github.com/teemow/slotfinder/internal/availability"
)

// Settings holds the values used when a request leaves a field empty.
type Settings struct {
	Timezone         string
	Duration         time.Duration
	Interval         time.Duration
	WindowStart      availability.BookingWindow
	WindowEnd        availability.BookingWindow
	SlotsPerCalendar int

	// SearchDays is the horizon used when a request has no range end.
	SearchDays int
}

// DefaultSettings mirrors the behaviour of the hosted booking service:
// one-hour slots on the hour between 08:00 and 17:00 Denver time, two per
// calendar, over the next ten days.
func DefaultSettings() Settings {
	return Settings{
		Timezone:         "America/Denver",
		Duration:         60 * time.Minute,
		Interval:         60 * time.Minute,
		WindowStart:      availability.BookingWindow{Hour: 8},
		WindowEnd:        availability.BookingWindow{Hour: 17},
		SlotsPerCalendar: 2,
		SearchDays:       10,
	}
}

// Validate applies the same rules as a search request.
func (s Settings) Validate() error {
	if _, err := availability.ResolveLocation(s.Timezone); err != nil {
		return err
	}
	if s.Duration <= 0 {
		return availability.ErrInvalidDuration
	}
	if s.Interval <= 0 {
		return availability.ErrInvalidInterval
	}
	if s.SlotsPerCalendar < 1 {
		return availability.ErrInvalidSlotCount
	}
	if err := availability.ValidateWindow(s.WindowStart, s.WindowEnd); err != nil {
		return err
	}
	if s.SearchDays < 1 {
		return badRequest("search days must be at least 1, got %d", s.SearchDays)
	}
	return nil
}

func (s Settings) horizon() time.Duration {
	return time.Duration(s.SearchDays) * 24 * time.Hour
}

// String is used in startup logs.
func (s Settings) String() string {
	return fmt.Sprintf("%s %s-%s duration=%s interval=%s slots=%d days=%d",
		s.Timezone, s.WindowStart, s.WindowEnd, s.Duration, s.Interval, s.SlotsPerCalendar, s.SearchDays)
}
