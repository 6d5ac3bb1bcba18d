package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// Model-specific parameter names.
const (
	KeyNodes       = "NODES"
	KeyRWPMinSpeed = "RWP_MIN_SPEED"
	KeyRWPMaxSpeed = "RWP_MAX_SPEED"
	KeyRWPMaxPause = "RWP_MAX_PAUSE"
	KeyTLEFile     = "TLE_FILE"
	KeyStartTime   = "START_TIME"
)

// DefaultNodes is the node count used by FIXED and RWP when NODES is unset.
const DefaultNodes = 10

var errNegative = errors.New("must be >= 0")

// MobilityModelFactory builds a mobility model from run parameters.
// Malformed model-specific parameters are reported as ParameterError.
type MobilityModelFactory func(p config.Parameters, s config.Simulation) (MobilityModel, error)

var mobilityModels = map[string]MobilityModelFactory{
	"FIXED": newFixedModel,
	"RWP":   newRandomWaypointModel,
	"ORBIT": newGroundTrackModel,
}

// NewMobilityModel resolves a model by name. An empty or unknown name is
// a ModelSelectionError; the engine refuses to run without a model.
func NewMobilityModel(name string, p config.Parameters, s config.Simulation) (MobilityModel, error) {
	factory, ok := mobilityModels[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, &ModelSelectionError{Kind: SelectionModel, Name: name}
	}
	return factory(p, s)
}

// MobilityModelNames lists the selectable model names.
func MobilityModelNames() []string {
	names := make([]string, 0, len(mobilityModels))
	for name := range mobilityModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func nodeCountParam(p config.Parameters) (int, error) {
	n, err := p.Int(KeyNodes, DefaultNodes)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &config.ParameterError{Name: KeyNodes, Value: fmt.Sprint(n), Err: errNegative}
	}
	return n, nil
}

// FixedModel places nodes at random positions where they stay for the
// whole run, emitting one in-place Move per node per sample.
type FixedModel struct {
	count int
}

func newFixedModel(p config.Parameters, _ config.Simulation) (MobilityModel, error) {
	n, err := nodeCountParam(p)
	if err != nil {
		return nil, err
	}
	return &FixedModel{count: n}, nil
}

func (m *FixedModel) Name() string { return "FIXED" }

func (m *FixedModel) Init(_ context.Context, sim *SimulationEngine) error {
	for i := 0; i < m.count; i++ {
		if err := sim.AddNode(sim.Now(), model.NewNode(sim.Area.RandomPosition(sim.Rand()))); err != nil {
			return err
		}
	}
	return nil
}

func (m *FixedModel) Next(_ context.Context, sim *SimulationEngine) error {
	now := sim.Now()
	for _, n := range sim.Nodes.Active() {
		sim.AddEvent(model.NewMove(n.ID, now, n.Position, n.Position, sim.Settings.Step))
	}
	return nil
}

func (m *FixedModel) Finish(context.Context, *SimulationEngine) error { return nil }
