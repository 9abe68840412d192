package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"

	"github.com/teemow/slotfinder/internal/availability"
)

// EventInput represents the input for creating a calendar event
type EventInput struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
	AllDay      bool

	// Conference data
	UseDefaultConferenceData bool // Automatically add Google Meet
}

// EventSummary represents a simplified calendar event
type EventSummary struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Location  string    `json:"location,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status,omitempty"`
	HTMLLink  string    `json:"htmlLink,omitempty"`
	MeetLink  string    `json:"meetLink,omitempty"`
	Attendees []string  `json:"attendees,omitempty"`
}

// CalendarInfo represents information about a calendar
type CalendarInfo struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	TimeZone    string `json:"timeZone,omitempty"`
	Primary     bool   `json:"primary,omitempty"`
	AccessRole  string `json:"accessRole,omitempty"` // "owner", "writer", "reader", "freeBusyReader"
}

// FreeBusyInfo represents availability information for a calendar
type FreeBusyInfo struct {
	Calendar string                      `json:"calendar"`
	Busy     []availability.BusyInterval `json:"busy"`
	Errors   []string                    `json:"errors,omitempty"`
}

// toEventSummary converts a Google Calendar event to an EventSummary
func toEventSummary(event *calendar.Event) EventSummary {
	if event == nil {
		return EventSummary{}
	}

	summary := EventSummary{
		ID:       event.Id,
		Summary:  event.Summary,
		Location: event.Location,
		Status:   event.Status,
		HTMLLink: event.HtmlLink,
	}

	if t, ok := parseEventTime(event.Start); ok {
		summary.Start = t
	}
	if t, ok := parseEventTime(event.End); ok {
		summary.End = t
	}

	for _, att := range event.Attendees {
		summary.Attendees = append(summary.Attendees, att.Email)
	}

	// Google Meet link
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				summary.MeetLink = ep.Uri
				break
			}
		}
	}

	return summary
}

func parseEventTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt == nil {
		return time.Time{}, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, err == nil
	}
	if dt.Date != "" {
		t, err := time.Parse(time.DateOnly, dt.Date)
		return t, err == nil
	}
	return time.Time{}, false
}

// toCalendarInfo converts a Google Calendar list entry to CalendarInfo
func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	if entry == nil {
		return CalendarInfo{}
	}
	return CalendarInfo{
		ID:          entry.Id,
		Summary:     entry.Summary,
		Description: entry.Description,
		TimeZone:    entry.TimeZone,
		Primary:     entry.Primary,
		AccessRole:  entry.AccessRole,
	}
}

// toBusyInterval converts a free/busy period. Bounds that are missing or fail
// to parse become nil.
func toBusyInterval(period *calendar.TimePeriod) availability.BusyInterval {
	var interval availability.BusyInterval
	if period == nil {
		return interval
	}
	if t, err := time.Parse(time.RFC3339, period.Start); err == nil {
		interval.Start = &t
	}
	if t, err := time.Parse(time.RFC3339, period.End); err == nil {
		interval.End = &t
	}
	return interval
}
