package availability

import "time"

// InWindow reports whether [start, end) lies inside the booking window on the
// local calendar day of start in loc. The close boundary is inclusive, so a
// slot ending exactly at windowEnd is accepted. A slot ending at local
// midnight is measured against the window of the day it started on.
func InWindow(start, end time.Time, windowStart, windowEnd BookingWindow, loc *time.Location) bool {
	open, closing := windowBounds(start, windowStart, windowEnd, loc)
	return !start.Before(open) && !end.After(closing)
}

// windowBounds returns the zoned open and close instants of the window on the
// local date of t.
func windowBounds(t time.Time, windowStart, windowEnd BookingWindow, loc *time.Location) (time.Time, time.Time) {
	y, m, d := t.In(loc).Date()
	return windowStart.on(y, m, d, loc), windowEnd.on(y, m, d, loc)
}

// alignUp rounds t up to the next multiple of step counted from the Unix
// epoch. Values already on the grid are returned unchanged.
func alignUp(t time.Time, step time.Duration) time.Time {
	rem := time.Duration(t.UnixNano() % int64(step))
	if rem < 0 {
		rem += step
	}
	if rem == 0 {
		return t
	}
	return t.Add(step - rem)
}
