package kb

import (
	"cmp"
	"slices"
	"sync"

	"github.com/signalsfoundry/mobility-simulator/model"
)

// EventLog is the append-only record of events emitted during a run, in
// emission order.
type EventLog struct {
	mu     sync.RWMutex
	events []model.Event
}

// NewEventLog constructs an empty log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records e at the end of the log.
func (l *EventLog) Append(e model.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Events returns a snapshot of the log in emission order.
func (l *EventLog) Events() []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Event(nil), l.events...)
}

// CountByKind returns how many events of each kind were recorded.
func (l *EventLog) CountByKind() map[model.EventKind]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	counts := make(map[model.EventKind]int, 4)
	for _, e := range l.events {
		counts[e.Kind()]++
	}
	return counts
}

// SortEvents returns a copy of events ordered by (node, start time).
// The sort is stable: ties keep their original relative order.
func SortEvents(events []model.Event) []model.Event {
	out := append([]model.Event(nil), events...)
	slices.SortStableFunc(out, func(a, b model.Event) int {
		if c := cmp.Compare(a.Node(), b.Node()); c != 0 {
			return c
		}
		return cmp.Compare(a.Start(), b.Start())
	})
	return out
}
