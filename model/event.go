package model

import "fmt"

// EventKind enumerates the closed set of per-node occurrences recorded
// during a simulation.
type EventKind int

const (
	EventMove EventKind = iota
	EventPause
	EventJoin
	EventLeave
)

func (k EventKind) String() string {
	switch k {
	case EventMove:
		return "move"
	case EventPause:
		return "pause"
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a sum type over Move, Pause, Join and Leave. The unexported
// marker method keeps the set closed to this package, so a type switch
// over the four variants is exhaustive.
type Event interface {
	Node() int
	Start() float64
	Kind() EventKind
	isEvent()
}

// EventHeader carries the fields common to every event variant.
type EventHeader struct {
	NodeID    int
	StartTime float64
}

func (h EventHeader) Node() int      { return h.NodeID }
func (h EventHeader) Start() float64 { return h.StartTime }
func (EventHeader) isEvent()         {}

// Move records a node travelling from one position to another.
type Move struct {
	EventHeader
	From     Position
	To       Position
	Duration float64
}

func (Move) Kind() EventKind { return EventMove }

// Pause records a node resting at a position.
type Pause struct {
	EventHeader
	Position Position
	Duration float64
}

func (Pause) Kind() EventKind { return EventPause }

// Join records a node entering the simulation.
type Join struct {
	EventHeader
}

func (Join) Kind() EventKind { return EventJoin }

// Leave records a node leaving the simulation.
type Leave struct {
	EventHeader
}

func (Leave) Kind() EventKind { return EventLeave }

// NewMove builds a Move event.
func NewMove(node int, start float64, from, to Position, duration float64) Move {
	return Move{
		EventHeader: EventHeader{NodeID: node, StartTime: start},
		From:        from,
		To:          to,
		Duration:    duration,
	}
}

// NewPause builds a Pause event.
func NewPause(node int, start float64, pos Position, duration float64) Pause {
	return Pause{
		EventHeader: EventHeader{NodeID: node, StartTime: start},
		Position:    pos,
		Duration:    duration,
	}
}

// NewJoin builds a Join event.
func NewJoin(node int, start float64) Join {
	return Join{EventHeader: EventHeader{NodeID: node, StartTime: start}}
}

// NewLeave builds a Leave event.
func NewLeave(node int, start float64) Leave {
	return Leave{EventHeader: EventHeader{NodeID: node, StartTime: start}}
}
