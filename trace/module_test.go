package trace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/internal/observability"
	"github.com/signalsfoundry/mobility-simulator/model"
)

func runWithTrace(t *testing.T, modelName string, p config.Parameters, path string, opts ...ModuleOption) (*Module, error) {
	t.Helper()
	s := config.Simulation{Duration: 20, Step: 1, Size: 200, Seed: 42, Model: modelName, Format: "BINARY", RunName: "trace-test"}
	mm, err := core.NewMobilityModel(modelName, p, s)
	require.NoError(t, err)
	mod := NewModule(path, opts...)
	e, err := core.NewSimulationEngine(s, mm, core.WithModules(mod))
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	return mod, err
}

// gridModel joins nodes during Init and moves node j to (now, 10j) at
// every sample. A non-zero strayNode also gets one Move although it was
// never added.
type gridModel struct {
	nodes     int
	strayNode int
}

func (m *gridModel) Name() string { return "GRID" }

func (m *gridModel) Init(_ context.Context, sim *core.SimulationEngine) error {
	for j := 0; j < m.nodes; j++ {
		if err := sim.AddNode(sim.Now(), model.NewNode(model.Position{Y: float64(j * 10)})); err != nil {
			return err
		}
	}
	return nil
}

func (m *gridModel) Next(_ context.Context, sim *core.SimulationEngine) error {
	now := sim.Now()
	for _, n := range sim.Nodes.Active() {
		to := model.Position{X: now, Y: float64(n.ID * 10)}
		sim.AddEvent(model.NewMove(n.ID, now, n.Position, to, sim.Settings.Step))
		n.Position = to
	}
	if m.strayNode > 0 && now == 0 {
		sim.AddEvent(model.NewMove(m.strayNode, now, model.Position{}, model.Position{}, sim.Settings.Step))
	}
	return nil
}

func (m *gridModel) Finish(context.Context, *core.SimulationEngine) error { return nil }

func runGrid(t *testing.T, m *gridModel, path string) (*Module, error) {
	t.Helper()
	s := config.Simulation{Duration: 4, Step: 1, Size: 100, Seed: 1, Model: m.Name(), Format: "BINARY", RunName: "grid"}
	mod := NewModule(path)
	e, err := core.NewSimulationEngine(s, m, core.WithModules(mod))
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	return mod, err
}

func rwpParams(pause string) config.Parameters {
	p := config.Parameters{}
	p.Set(core.KeyNodes, "5")
	p.Set(core.KeyRWPMaxPause, pause)
	return p
}

func TestModule_WritesTraceAtFinish(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewSimulationCollector(reg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), FileName("a"))
	mod, err := runWithTrace(t, "RWP", rwpParams("0"), path, WithMetrics(metrics))
	require.NoError(t, err)

	h, m, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, Header{NodeCount: 5, DurationSteps: 20, MaxX: 200, MaxY: 200}, h)
	require.Equal(t, path, mod.Path())
	require.EqualValues(t, h.FileSize(), mod.BytesWritten())
	require.Equal(t, 20, m.Steps)
	require.EqualValues(t, mod.BytesWritten(), testutil.ToFloat64(metrics.TraceBytes))
}

func TestModule_SameSeedSameBytes(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.bin"), filepath.Join(dir, "b.bin")
	_, err := runWithTrace(t, "RWP", rwpParams("0"), a)
	require.NoError(t, err)
	_, err = runWithTrace(t, "RWP", rwpParams("0"), b)
	require.NoError(t, err)

	ra, err := os.ReadFile(a)
	require.NoError(t, err)
	rb, err := os.ReadFile(b)
	require.NoError(t, err)
	require.Equal(t, ra, rb)
}

func TestModule_PausesUnderOmitAreIncomplete(t *testing.T) {
	p := rwpParams("4")
	p.Set(core.KeyRWPMinSpeed, "100")
	p.Set(core.KeyRWPMaxSpeed, "100")
	dir := t.TempDir()

	_, err := runWithTrace(t, "RWP", p, filepath.Join(dir, "omit.bin"))
	require.ErrorIs(t, err, ErrDataCompleteness)
	_, statErr := os.Stat(filepath.Join(dir, "omit.bin"))
	require.True(t, os.IsNotExist(statErr), "incomplete trace must not be written")

	_, err = runWithTrace(t, "RWP", p, filepath.Join(dir, "hold.bin"), WithPausePolicy(PauseHold))
	require.NoError(t, err)
}

func TestModule_ExistingFileIsIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taken.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := runWithTrace(t, "FIXED", config.Parameters{}, path)
	require.True(t, errors.Is(err, ErrIO), "err = %v", err)
}

func TestPathFor(t *testing.T) {
	require.Equal(t, filepath.Join("out", "trace-run1.bin"), PathFor("out", "", "run1"))
	require.Equal(t, filepath.Join("out", "x.bin"), PathFor("out", "x.bin", "run1"))
	abs := filepath.Join(t.TempDir(), "y.bin")
	require.Equal(t, abs, PathFor("out", abs, "run1"))
}

func TestModule_EngineDrivenGridTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.bin")
	mod, err := runGrid(t, &gridModel{nodes: 2}, path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, 168, info.Size())
	require.EqualValues(t, 168, mod.BytesWritten())

	h, m, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, Header{NodeCount: 2, DurationSteps: 4, MaxX: 100, MaxY: 100}, h)
	for i := 0; i < 4; i++ {
		require.Equal(t, []model.Position{gridPos(i, 0), gridPos(i, 1)}, m.Row(i), "row %d", i)
	}
}

func TestModule_RejectsEventsForUnregisteredNode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stray.bin")
	_, err := runGrid(t, &gridModel{nodes: 2, strayNode: 5}, path)
	require.ErrorIs(t, err, ErrIndex)

	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, 5, ie.Node)

	_, statErr := os.Stat(path)
	require.True(t, errors.Is(statErr, os.ErrNotExist), "trace file must not exist: %v", statErr)
}
