package availability

import "time"

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Ranges that only touch at a boundary do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// BusyBlocking returns the first interval in busy that overlaps [start, end).
// Intervals missing a bound are skipped.
func BusyBlocking(start, end time.Time, busy []BusyInterval) (BusyInterval, bool) {
	for _, b := range busy {
		if !b.Valid() {
			continue
		}
		if Overlaps(start, end, *b.Start, *b.End) {
			return b, true
		}
	}
	return BusyInterval{}, false
}

// IsFree reports whether no interval in busy overlaps [start, end).
func IsFree(start, end time.Time, busy []BusyInterval) bool {
	_, blocked := BusyBlocking(start, end, busy)
	return !blocked
}

func countMalformed(busy []BusyInterval) int {
	n := 0
	for _, b := range busy {
		if !b.Valid() {
			n++
		}
	}
	return n
}
