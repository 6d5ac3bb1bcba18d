package core

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/kb"
)

// Re-export sentinel errors so callers driving a simulation can depend on
// core.* instead of reaching into config or kb.
var (
	// ErrParameter indicates a missing or malformed parameter.
	ErrParameter = config.ErrParameter
	// ErrInvalidState indicates a node lifecycle violation.
	ErrInvalidState = kb.ErrInvalidState
	// ErrModelSelection indicates an unknown or unavailable model, format
	// or module name.
	ErrModelSelection = errors.New("model selection failed")
	// ErrAlreadyRun indicates Run was called twice on the same engine.
	ErrAlreadyRun = errors.New("simulation already run")
)

// Selection kinds reported by ModelSelectionError.
const (
	SelectionModel  = "model"
	SelectionFormat = "format"
	SelectionModule = "module"
)

// ModelSelectionError reports a component name that could not be resolved.
type ModelSelectionError struct {
	Kind string
	Name string
}

func (e *ModelSelectionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%v: no %s specified", ErrModelSelection, e.Kind)
	}
	return fmt.Sprintf("%v: unknown %s %q", ErrModelSelection, e.Kind, e.Name)
}

// Is lets errors.Is(err, ErrModelSelection) match any ModelSelectionError.
func (e *ModelSelectionError) Is(target error) bool { return target == ErrModelSelection }
