package availability

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type searchOptions struct {
	logger *slog.Logger
}

// Option customises FindEarliestSlots.
type Option func(*searchOptions)

// WithLogger sets the logger used to report malformed busy data.
// The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *searchOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// FindEarliestSlots returns up to p.SlotsPerCalendar of the earliest open
// slots for every calendar, merged and sorted by start time. Slots that start
// at the same instant keep the order of calendars.
//
// A calendar without an entry in busy is fully open. Repeated calendar IDs are
// searched once.
func FindEarliestSlots(calendars []string, busy map[string][]BusyInterval, p SearchParameters, opts ...Option) (Result, error) {
	o := searchOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	if len(calendars) == 0 {
		return Result{}, ErrNoCalendars
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if p.Now.IsZero() {
		p.Now = time.Now()
	}

	ids := uniqueIDs(calendars)
	perCalendar := make([][]Slot, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			intervals := busy[id]
			if n := countMalformed(intervals); n > 0 {
				o.logger.Warn("ignoring busy intervals without start or end",
					slog.String("calendar", id),
					slog.Int("count", n))
			}
			perCalendar[i] = scanCalendar(id, intervals, p)
		}()
	}
	wg.Wait()

	var slots []Slot
	for _, s := range perCalendar {
		slots = append(slots, s...)
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})

	return Result{Slots: slots}, nil
}

// scanCalendar collects consecutive slots for one calendar. Each search
// resumes at the end of the previous slot, so slots never overlap.
func scanCalendar(calendarID string, busy []BusyInterval, p SearchParameters) []Slot {
	var slots []Slot
	cursor := p.RangeStart
	for len(slots) < p.SlotsPerCalendar {
		slot, ok := earliestSlot(busy, cursor, p)
		if !ok {
			break
		}
		slot.CalendarID = calendarID
		slots = append(slots, slot)
		cursor = slot.End
	}
	return slots
}

// earliestSlot finds the first grid-aligned candidate at or after from that is
// free and inside the booking window. It gives up once a candidate would end
// after p.RangeEnd.
func earliestSlot(busy []BusyInterval, from time.Time, p SearchParameters) (Slot, bool) {
	candidate := effectiveStart(from, p)
	for {
		end := candidate.Add(p.Duration)
		if end.After(p.RangeEnd) {
			return Slot{}, false
		}

		if blocking, ok := BusyBlocking(candidate, end, busy); ok {
			// Every grid point before the blocking interval's end still
			// overlaps it, so skip straight past it.
			next := candidate.Add(p.Interval)
			if blocking.End.After(next) {
				next = *blocking.End
			}
			candidate = alignUp(next, p.Interval)
			continue
		}

		if InWindow(candidate, end, p.WindowStart, p.WindowEnd, p.Location) {
			return Slot{
				Start: candidate.In(p.Location),
				End:   end.In(p.Location),
			}, true
		}

		candidate = candidate.Add(p.Interval)
	}
}

// effectiveStart is the latest of from, p.Now and the window open on the local
// day of that instant, aligned up to the step grid.
func effectiveStart(from time.Time, p SearchParameters) time.Time {
	start := from
	if p.Now.After(start) {
		start = p.Now
	}
	open, _ := windowBounds(start, p.WindowStart, p.WindowEnd, p.Location)
	if open.After(start) {
		start = open
	}
	return alignUp(start, p.Interval)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
