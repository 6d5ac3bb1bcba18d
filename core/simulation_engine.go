package core

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/observability"
	"github.com/signalsfoundry/mobility-simulator/kb"
	"github.com/signalsfoundry/mobility-simulator/model"
	"github.com/signalsfoundry/mobility-simulator/timectrl"
)

// MobilityModel moves the nodes of a run. Next is called once per sample
// and may add or remove nodes and append events through the engine.
type MobilityModel interface {
	Name() string
	Init(ctx context.Context, sim *SimulationEngine) error
	Next(ctx context.Context, sim *SimulationEngine) error
	Finish(ctx context.Context, sim *SimulationEngine) error
}

// Module observes a run. Next is called once per sample after the
// mobility model; AddNode and RemoveNode are called synchronously for
// every membership change.
type Module interface {
	Name() string
	Init(ctx context.Context, sim *SimulationEngine) error
	Next(ctx context.Context, sim *SimulationEngine) error
	Finish(ctx context.Context, sim *SimulationEngine) error
	AddNode(t float64, n *model.Node)
	RemoveNode(t float64, n *model.Node)
}

// SimulationEngine drives one simulation run. It is the explicit context
// handed to the mobility model and every module: it owns the seeded
// random source, the clock, the node registry and the event log.
type SimulationEngine struct {
	Settings config.Simulation
	Area     Area
	Clock    *timectrl.StepClock
	Nodes    *kb.NodeRegistry
	Events   *kb.EventLog

	rng      *rand.Rand
	mobility MobilityModel
	modules  []Module
	log      logging.Logger

	participation participation
	stats         RunStats
	ran           bool
}

// EngineOption customises SimulationEngine construction.
type EngineOption func(*SimulationEngine)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *SimulationEngine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithModules registers modules in the given order.
func WithModules(modules ...Module) EngineOption {
	return func(e *SimulationEngine) {
		for _, m := range modules {
			if m != nil {
				e.modules = append(e.modules, m)
			}
		}
	}
}

// NewSimulationEngine validates settings and prepares a run. The random
// source is seeded from settings.Seed, so equal settings and models give
// identical node and event sequences. A nil mobility model is rejected.
func NewSimulationEngine(settings config.Simulation, mobility MobilityModel, opts ...EngineOption) (*SimulationEngine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if mobility == nil {
		return nil, &ModelSelectionError{Kind: SelectionModel, Name: settings.Model}
	}
	clock, err := timectrl.NewStepClock(settings.Duration, settings.Step)
	if err != nil {
		return nil, &config.ParameterError{Name: config.KeyTime, Err: err}
	}

	e := &SimulationEngine{
		Settings: settings,
		Area:     SquareArea(settings.Size),
		Clock:    clock,
		Nodes:    kb.NewNodeRegistry(),
		Events:   kb.NewEventLog(),
		rng:      rand.New(rand.NewSource(settings.Seed)),
		mobility: mobility,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logging.String("run", settings.RunName), logging.String("model", mobility.Name()))
	return e, nil
}

// Rand returns the run's seeded random source. Models must draw all
// randomness from it to keep runs reproducible.
func (e *SimulationEngine) Rand() *rand.Rand { return e.rng }

// Now returns the simulation time of the current sample.
func (e *SimulationEngine) Now() float64 { return e.Clock.Now() }

// Samples returns floor(duration/step).
func (e *SimulationEngine) Samples() int { return e.Clock.Samples() }

// NodeCount returns the number of distinct node identities issued.
func (e *SimulationEngine) NodeCount() int { return e.Nodes.Count() }

// Logger returns the run-scoped logger.
func (e *SimulationEngine) Logger() logging.Logger { return e.log }

// Stats returns the run statistics. Averages are available once the
// mobility model has finished; Elapsed once Run returns.
func (e *SimulationEngine) Stats() RunStats { return e.stats }

// AddEvent appends ev to the event log.
func (e *SimulationEngine) AddEvent(ev model.Event) {
	e.Events.Append(ev)
}

// AddNode registers n at time t, records a Join event and notifies every
// module in registration order before the join is counted.
func (e *SimulationEngine) AddNode(t float64, n *model.Node) error {
	if err := e.Nodes.Add(t, n); err != nil {
		return err
	}
	e.Events.Append(model.NewJoin(n.ID, t))
	for _, m := range e.modules {
		m.AddNode(t, n)
	}
	e.participation.observeJoin()
	return nil
}

// RemoveNode marks n as left at time t, records a Leave event and
// notifies every module before the participation time is accumulated.
func (e *SimulationEngine) RemoveNode(t float64, n *model.Node) error {
	if err := e.Nodes.Remove(t, n); err != nil {
		return err
	}
	e.Events.Append(model.NewLeave(n.ID, t))
	for _, m := range e.modules {
		m.RemoveNode(t, n)
	}
	e.participation.observeLeave(n.ParticipationTime())
	return nil
}

// Run executes the simulation: Init on the mobility model then on each
// module, Next on all of them once per sample, and Finish in the same
// order. The first error aborts the run and is returned. Run does not
// observe ctx cancellation; ctx carries logging and tracing state.
func (e *SimulationEngine) Run(ctx context.Context) (stats RunStats, err error) {
	if e.ran {
		return RunStats{}, ErrAlreadyRun
	}
	e.ran = true

	start := time.Now()
	samples := e.Samples()
	ctx, span := observability.StartSpan(ctx, "simulation.run", e.Settings.RunName,
		attribute.String("model", e.mobility.Name()),
		attribute.Int64("seed", e.Settings.Seed),
		attribute.Int("samples", samples),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	e.log.Info(ctx, "starting simulation",
		logging.Int("samples", samples),
		logging.Float("duration", e.Settings.Duration),
		logging.Float("step", e.Settings.Step),
		logging.Int("size", e.Settings.Size),
		logging.Int64("seed", e.Settings.Seed),
		logging.Int("modules", len(e.modules)),
	)

	if err := e.init(ctx); err != nil {
		return RunStats{}, err
	}

	for !e.Clock.Done() {
		if err := e.step(ctx, e.Clock.Sample()); err != nil {
			return RunStats{}, err
		}
	}

	if err := e.finish(ctx, samples); err != nil {
		return RunStats{}, err
	}

	e.stats.Elapsed = time.Since(start)
	kinds := e.Events.CountByKind()
	e.log.Info(ctx, "simulation complete",
		logging.Int("unique_nodes", e.stats.UniqueNodes),
		logging.Int("node_joins", e.stats.NodeJoins),
		logging.Float("avg_nodes", e.stats.AvgNodes),
		logging.Float("avg_node_time", e.stats.AvgNodeTime),
		logging.Int("events", e.stats.Events),
		logging.Int("moves", kinds[model.EventMove]),
		logging.Int("pauses", kinds[model.EventPause]),
		logging.String("elapsed", e.stats.Elapsed.String()),
	)
	return e.stats, nil
}

func (e *SimulationEngine) init(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "simulation.init", e.Settings.RunName)
	defer span.End()

	if err := e.mobility.Init(ctx, e); err != nil {
		return fmt.Errorf("init mobility model %s: %w", e.mobility.Name(), err)
	}
	for _, m := range e.modules {
		if err := m.Init(ctx, e); err != nil {
			return fmt.Errorf("init module %s: %w", m.Name(), err)
		}
	}
	return nil
}

// step runs one sample. Time observed during sample k is k*step and
// advances only after every component has seen it.
func (e *SimulationEngine) step(ctx context.Context, sample int) error {
	if err := e.mobility.Next(ctx, e); err != nil {
		return fmt.Errorf("sample %d: mobility model %s: %w", sample, e.mobility.Name(), err)
	}
	for _, m := range e.modules {
		if err := m.Next(ctx, e); err != nil {
			return fmt.Errorf("sample %d: module %s: %w", sample, m.Name(), err)
		}
	}
	e.participation.observeSample(e.Nodes.ActiveCount())
	e.Clock.Advance()
	return nil
}

func (e *SimulationEngine) finish(ctx context.Context, samples int) error {
	ctx, span := observability.StartSpan(ctx, "simulation.finish", e.Settings.RunName)
	defer span.End()

	if err := e.mobility.Finish(ctx, e); err != nil {
		return fmt.Errorf("finish mobility model %s: %w", e.mobility.Name(), err)
	}

	e.stats = e.participation.summarise(samples)
	e.stats.UniqueNodes = e.Nodes.Count()
	e.stats.Events = e.Events.Len()

	for _, m := range e.modules {
		if err := m.Finish(ctx, e); err != nil {
			return fmt.Errorf("finish module %s: %w", m.Name(), err)
		}
	}
	return nil
}
