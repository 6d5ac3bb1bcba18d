// Package trace turns a run's event log into a dense position matrix and
// stores it in the fixed binary layout consumed by network simulators.
package trace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/mobility-simulator/kb"
	"github.com/signalsfoundry/mobility-simulator/model"
)

var (
	// ErrDataCompleteness indicates the log did not supply one position
	// for every (step, node) cell.
	ErrDataCompleteness = errors.New("incomplete trace data")
	// ErrIndex indicates an event that maps outside the matrix.
	ErrIndex = errors.New("trace index out of range")
)

// DataCompletenessError reports a position count that does not match
// steps*nodes. Node is the first node with fewer than Want/nodes
// positions, or -1 when every node is complete.
type DataCompletenessError struct {
	Want    int
	Got     int
	Node    int
	NodeGot int
}

func (e *DataCompletenessError) Error() string {
	if e.Node < 0 {
		return fmt.Sprintf("%v: got %d positions, want %d", ErrDataCompleteness, e.Got, e.Want)
	}
	return fmt.Sprintf("%v: got %d positions, want %d (node %d has %d)", ErrDataCompleteness, e.Got, e.Want, e.Node, e.NodeGot)
}

func (e *DataCompletenessError) Is(target error) bool { return target == ErrDataCompleteness }

// IndexError reports an event whose node or node-relative index falls
// outside the matrix.
type IndexError struct {
	Node      int
	Index     int
	RunLength int
}

func (e *IndexError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: node %d outside [0,%d)", ErrIndex, e.Node, e.RunLength)
	}
	return fmt.Sprintf("%v: node %d position %d exceeds run length %d", ErrIndex, e.Node, e.Index, e.RunLength)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// PausePolicy decides whether Pause events occupy a grid slot.
type PausePolicy int

const (
	// PauseOmit fills the grid from Move events only.
	PauseOmit PausePolicy = iota
	// PauseHold lets each Pause occupy one slot at its pause position.
	PauseHold
)

func (p PausePolicy) String() string {
	switch p {
	case PauseOmit:
		return "OMIT"
	case PauseHold:
		return "HOLD"
	default:
		return fmt.Sprintf("PausePolicy(%d)", int(p))
	}
}

// ParsePausePolicy accepts OMIT or HOLD in any case. Empty means OMIT.
func ParsePausePolicy(s string) (PausePolicy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "OMIT":
		return PauseOmit, nil
	case "HOLD":
		return PauseHold, nil
	default:
		return PauseOmit, fmt.Errorf("unknown pause policy %q", s)
	}
}

// Matrix holds Steps rows of Nodes positions, row-major.
type Matrix struct {
	Steps int
	Nodes int
	cells []model.Position
}

// NewMatrix allocates a zeroed steps×nodes matrix.
func NewMatrix(steps, nodes int) *Matrix {
	if steps < 0 {
		steps = 0
	}
	if nodes < 0 {
		nodes = 0
	}
	return &Matrix{Steps: steps, Nodes: nodes, cells: make([]model.Position, steps*nodes)}
}

// At returns the position of node j at step i.
func (m *Matrix) At(i, j int) model.Position { return m.cells[i*m.Nodes+j] }

// Set stores the position of node j at step i.
func (m *Matrix) Set(i, j int, p model.Position) { m.cells[i*m.Nodes+j] = p }

// Row returns a copy of step i.
func (m *Matrix) Row(i int) []model.Position {
	return append([]model.Position(nil), m.cells[i*m.Nodes:(i+1)*m.Nodes]...)
}

// Resample builds the steps×nodes matrix from events. The log is first
// stably sorted by (node, start time); then each node's contributing
// events, in time order, fill its column from step 0 downwards. Node IDs
// index columns directly. The result is returned only when every cell
// was filled exactly once.
func Resample(events []model.Event, steps, nodes int, policy PausePolicy) (*Matrix, error) {
	if steps < 0 || nodes < 0 {
		return nil, fmt.Errorf("resample: negative shape %dx%d", steps, nodes)
	}
	m := NewMatrix(steps, nodes)
	filled := make([]int, nodes)
	consumed := 0

	for _, ev := range kb.SortEvents(events) {
		var pos model.Position
		switch e := ev.(type) {
		case model.Move:
			pos = e.To
		case model.Pause:
			if policy != PauseHold {
				continue
			}
			pos = e.Position
		case model.Join, model.Leave:
			// Membership changes never occupy a slot.
			continue
		default:
			return nil, fmt.Errorf("resample: unsupported event %T", ev)
		}

		j := ev.Node()
		if j < 0 || j >= nodes {
			return nil, &IndexError{Node: j, Index: -1, RunLength: nodes}
		}
		i := filled[j]
		if i >= steps {
			return nil, &IndexError{Node: j, Index: i, RunLength: steps}
		}
		m.Set(i, j, pos)
		filled[j]++
		consumed++
	}

	if want := steps * nodes; consumed != want {
		err := &DataCompletenessError{Want: want, Got: consumed, Node: -1}
		for j, n := range filled {
			if n < steps {
				err.Node, err.NodeGot = j, n
				break
			}
		}
		return nil, err
	}
	return m, nil
}
