package google

import calendar "google.golang.org/api/calendar/v3"

// CalendarScopes are the OAuth scopes needed to read free/busy information
// and insert booked events.
var CalendarScopes = []string{
	calendar.CalendarReadonlyScope,
	calendar.CalendarEventsScope,
}
