// Package availability finds the earliest open meeting slots across one or
// more calendars.
//
// The search works on busy intervals that were already fetched by the caller.
// It performs no I/O and keeps no state between calls:
//
//   - Overlaps and BusyBlocking detect collisions between a candidate slot and
//     half-open busy intervals. Touching boundaries never collide.
//   - InWindow checks that a candidate lies inside the daily booking window,
//     evaluated on the local calendar day of the candidate start in the search
//     timezone.
//   - FindEarliestSlots walks a step grid per calendar, collects up to
//     SlotsPerCalendar slots each, and merges the results in start order.
//
// All wall-clock arithmetic goes through time.Date in the target
// *time.Location, which keeps window boundaries correct across daylight-saving
// transitions.
package availability
