package runner

import (
	"context"
	"time"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/observability"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// MonitorModule reports run progress: one debug line per completed
// sample and Prometheus figures for samples, active nodes and membership
// changes. Per-sample reporting hangs off the engine clock.
type MonitorModule struct {
	metrics *observability.SimulationCollector

	run     string
	samples int
	last    time.Time
}

// NewMonitorModule returns a monitor for run feeding metrics, which may
// be nil. The run name labels metrics from the first join onwards, which
// can precede Init.
func NewMonitorModule(run string, metrics *observability.SimulationCollector) *MonitorModule {
	return &MonitorModule{run: run, metrics: metrics}
}

func (m *MonitorModule) Name() string { return "MONITOR" }

func (m *MonitorModule) Init(ctx context.Context, sim *core.SimulationEngine) error {
	m.samples = sim.Samples()
	m.last = time.Now()
	sim.Clock.AddListener(func(sample int, now float64) {
		m.sampleDone(ctx, sim, sample, now)
	})
	return nil
}

func (m *MonitorModule) sampleDone(ctx context.Context, sim *core.SimulationEngine, sample int, now float64) {
	wall := time.Now()
	active := sim.Nodes.ActiveCount()
	sim.Logger().Debug(ctx, "sample point",
		logging.Int("sample", sample+1),
		logging.Int("samples", m.samples),
		logging.Float("time", now),
		logging.Int("active_nodes", active),
	)
	m.metrics.ObserveSample(m.run, active, wall.Sub(m.last))
	m.last = wall
}

func (m *MonitorModule) Next(context.Context, *core.SimulationEngine) error { return nil }

func (m *MonitorModule) Finish(context.Context, *core.SimulationEngine) error { return nil }

func (m *MonitorModule) AddNode(float64, *model.Node) { m.metrics.IncNodeJoins(m.run) }

func (m *MonitorModule) RemoveNode(float64, *model.Node) { m.metrics.IncNodeLeaves(m.run) }
