// Package calendar wraps the Google Calendar API for availability search and
// booking.
//
// A Client is constructed explicitly from a token source (or a prepared
// calendar.Service) and owned by the caller. It reads free/busy data, lists
// calendars and inserts booked events. Free/busy periods are converted into
// availability.BusyInterval values; periods with missing or unparseable
// bounds are kept with a nil bound so the search can skip them.
package calendar
