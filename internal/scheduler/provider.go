package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/teemow/slotfinder/internal/availability"
	"github.com/teemow/slotfinder/internal/calendar"
)

// BusyProvider returns busy data for a set of calendars over [timeMin, timeMax].
// Calendars absent from the returned map have no busy periods.
type BusyProvider interface {
	BusyIntervals(ctx context.Context, calendarIDs []string, timeMin, timeMax time.Time) (map[string]availability.CalendarBusy, error)
}

// EventCreator inserts calendar events. *calendar.Client implements it.
type EventCreator interface {
	CreateEvent(ctx context.Context, calendarID string, input calendar.EventInput) (*calendar.EventSummary, error)
}

var (
	_ BusyProvider = (*calendar.Client)(nil)
	_ EventCreator = (*calendar.Client)(nil)
	_ BusyProvider = (*StaticProvider)(nil)
)

// staticFile is the on-disk format read by LoadStaticProvider. It follows the
// shape of a Google FreeBusy response:
//
//	{"calendars": {"room@example.com": {"busy": [{"start": "...", "end": "..."}]}}}
type staticFile struct {
	Calendars map[string]availability.CalendarBusy `json:"calendars"`
}

// StaticProvider serves busy data from memory. It backs the CLI's
// --busy-file mode and tests.
type StaticProvider struct {
	mu        sync.RWMutex
	calendars map[string]availability.CalendarBusy
}

// NewStaticProvider returns a provider over the given busy data.
func NewStaticProvider(calendars map[string]availability.CalendarBusy) *StaticProvider {
	if calendars == nil {
		calendars = make(map[string]availability.CalendarBusy)
	}
	return &StaticProvider{calendars: calendars}
}

// LoadStaticProvider reads busy data from a JSON file.
func LoadStaticProvider(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read busy file: %w", err)
	}

	var f staticFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse busy file %s: %w", path, err)
	}
	return NewStaticProvider(f.Calendars), nil
}

// Set replaces the busy data of one calendar.
func (p *StaticProvider) Set(calendarID string, busy availability.CalendarBusy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calendars[calendarID] = busy
}

// BusyIntervals returns the stored data for the requested calendars. Well
// formed intervals outside [timeMin, timeMax] are dropped; malformed ones are
// passed through so the search can report them.
func (p *StaticProvider) BusyIntervals(_ context.Context, calendarIDs []string, timeMin, timeMax time.Time) (map[string]availability.CalendarBusy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]availability.CalendarBusy, len(calendarIDs))
	for _, id := range calendarIDs {
		stored, ok := p.calendars[id]
		if !ok {
			continue
		}
		busy := availability.CalendarBusy{Errors: stored.Errors}
		for _, b := range stored.Intervals {
			if b.Valid() && !availability.Overlaps(*b.Start, *b.End, timeMin, timeMax) {
				continue
			}
			busy.Intervals = append(busy.Intervals, b)
		}
		out[id] = busy
	}
	return out, nil
}
