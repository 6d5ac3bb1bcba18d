// Package runner assembles simulation runs from parameters: it resolves
// the mobility model and output modules by name, runs the engine and
// reports the outcome.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/observability"
	"github.com/signalsfoundry/mobility-simulator/trace"
)

// Options carries the shared services injected into every run.
type Options struct {
	Logger  logging.Logger
	Metrics *observability.SimulationCollector
}

func (o Options) logger() logging.Logger {
	if o.Logger == nil {
		return logging.Noop()
	}
	return o.Logger
}

// Plan is a fully resolved run: settings, model and modules. Nothing has
// been simulated or written yet.
type Plan struct {
	Settings  config.Simulation
	Mobility  core.MobilityModel
	Modules   []core.Module
	TracePath string

	trace *trace.Module
}

// Result describes a finished run.
type Result struct {
	RunName    string
	Model      string
	Stats      core.RunStats
	TracePath  string
	TraceBytes int64
	// Err is the run's failure, set by RunBatch.
	Err error
}

// outputFormats maps FORMAT names to the trace module. XML is kept as an
// alias: the file it names has always been raw binary.
var outputFormats = map[string]bool{
	"BINARY": true,
	"XML":    true,
}

// Build resolves params into a Plan. Parameter and selection failures are
// reported here, before any run state or file exists.
func Build(params config.Parameters, opts Options) (*Plan, error) {
	settings, err := params.Resolve()
	if err != nil {
		return nil, err
	}
	if settings.GUI {
		return nil, &core.ModelSelectionError{Kind: core.SelectionModule, Name: "GUI"}
	}

	mobility, err := core.NewMobilityModel(settings.Model, params, settings)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Settings: settings,
		Mobility: mobility,
		Modules:  []core.Module{NewMonitorModule(settings.RunName, opts.Metrics)},
	}

	if settings.Format != "" {
		if !outputFormats[strings.ToUpper(settings.Format)] {
			return nil, &core.ModelSelectionError{Kind: core.SelectionFormat, Name: settings.Format}
		}
		policy, err := trace.ParsePausePolicy(settings.PausePolicy)
		if err != nil {
			return nil, &config.ParameterError{Name: config.KeyPausePolicy, Value: settings.PausePolicy, Err: err}
		}
		plan.trace = trace.NewModule(trace.PathFor(settings.OutputDir, settings.TraceFile, settings.RunName),
			trace.WithPausePolicy(policy),
			trace.WithMetrics(opts.Metrics),
		)
		plan.TracePath = plan.trace.Path()
		plan.Modules = append(plan.Modules, plan.trace)
	}
	return plan, nil
}

// Execute runs the plan once.
func (p *Plan) Execute(ctx context.Context, opts Options) (Result, error) {
	ctx = logging.ContextWithRunID(ctx, p.Settings.RunName)
	ctx, log := logging.WithRunLogger(ctx, opts.logger())

	res := Result{RunName: p.Settings.RunName, Model: p.Mobility.Name(), TracePath: p.TracePath}
	engine, err := core.NewSimulationEngine(p.Settings, p.Mobility,
		core.WithLogger(log),
		core.WithModules(p.Modules...),
	)
	if err != nil {
		return res, err
	}

	start := time.Now()
	stats, err := engine.Run(ctx)
	opts.Metrics.ObserveRun(res.Model, time.Since(start), err)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		return res, fmt.Errorf("run %s: %w", p.Settings.RunName, err)
	}
	res.Stats = stats
	if p.trace != nil {
		res.TraceBytes = p.trace.BytesWritten()
	}
	return res, nil
}

// Run builds and executes a single run from params.
func Run(ctx context.Context, params config.Parameters, opts Options) (Result, error) {
	plan, err := Build(params, opts)
	if err != nil {
		return Result{}, err
	}
	return plan.Execute(ctx, opts)
}
