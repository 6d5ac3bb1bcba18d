package trace

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/observability"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// FileName returns the default trace file name for a run.
func FileName(runName string) string {
	return fmt.Sprintf("trace-%s.bin", runName)
}

// Module materialises the run's trace file when the simulation finishes.
// It does no work while the run is in progress.
type Module struct {
	path    string
	policy  PausePolicy
	metrics *observability.SimulationCollector

	written int64
}

// ModuleOption customises a trace Module.
type ModuleOption func(*Module)

// WithPausePolicy selects how Pause events are resampled.
func WithPausePolicy(p PausePolicy) ModuleOption {
	return func(m *Module) { m.policy = p }
}

// WithMetrics records written bytes in c.
func WithMetrics(c *observability.SimulationCollector) ModuleOption {
	return func(m *Module) { m.metrics = c }
}

// NewModule returns a trace module writing to path.
func NewModule(path string, opts ...ModuleOption) *Module {
	m := &Module{path: path}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PathFor joins the output directory with the explicit trace file name,
// or with FileName(runName) when none is given.
func PathFor(outputDir, traceFile, runName string) string {
	if traceFile == "" {
		traceFile = FileName(runName)
	}
	if filepath.IsAbs(traceFile) {
		return traceFile
	}
	return filepath.Join(outputDir, traceFile)
}

func (m *Module) Name() string { return "BINARY" }

// Path returns the trace file location.
func (m *Module) Path() string { return m.path }

// BytesWritten returns the size of the written trace file.
func (m *Module) BytesWritten() int64 { return m.written }

func (m *Module) Init(context.Context, *core.SimulationEngine) error { return nil }

func (m *Module) Next(context.Context, *core.SimulationEngine) error { return nil }

func (m *Module) AddNode(float64, *model.Node) {}

func (m *Module) RemoveNode(float64, *model.Node) {}

// Finish resamples the complete event log, writes the trace file and
// reads its header back to confirm the write.
func (m *Module) Finish(ctx context.Context, sim *core.SimulationEngine) (err error) {
	steps, nodes := sim.Samples(), sim.NodeCount()
	ctx, span := observability.StartSpan(ctx, "trace.write", sim.Settings.RunName,
		attribute.String("path", m.path),
		attribute.Int("steps", steps),
		attribute.Int("nodes", nodes),
		attribute.String("pause_policy", m.policy.String()),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if steps > math.MaxInt32 || nodes > math.MaxInt32 {
		return fmt.Errorf("trace shape %dx%d exceeds int32", steps, nodes)
	}

	events := sim.Events.Events()
	for _, ev := range events {
		// Departed nodes stay registered; an unknown id means a model
		// emitted events for a node it never added.
		if _, err := sim.Nodes.Get(ev.Node()); err != nil {
			return &IndexError{Node: ev.Node(), Index: -1, RunLength: nodes}
		}
	}
	matrix, err := Resample(events, steps, nodes, m.policy)
	if err != nil {
		return err
	}

	h := Header{
		NodeCount:     int32(nodes),
		DurationSteps: int32(steps),
		MinX:          sim.Area.MinX,
		MinY:          sim.Area.MinY,
		MaxX:          sim.Area.MaxX,
		MaxY:          sim.Area.MaxY,
	}
	n, err := Write(m.path, h, matrix)
	m.metrics.AddTraceBytes(n)
	if err != nil {
		return err
	}
	m.written = n

	got, err := ReadHeader(m.path)
	if err != nil {
		return err
	}
	if got != h {
		return fmt.Errorf("trace %s: header read back as %+v, wrote %+v", m.path, got, h)
	}

	sim.Logger().Info(ctx, "trace written",
		logging.String("path", m.path),
		logging.Int("steps", steps),
		logging.Int("nodes", nodes),
		logging.Int64("bytes", n),
	)
	return nil
}
