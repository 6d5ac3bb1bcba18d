package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/internal/observability"
	"github.com/signalsfoundry/mobility-simulator/internal/runner"
)

type runFlags struct {
	params      []string
	configFile  string
	parallel    int
	metricsAddr string
	// traceOut receives spans when SIM_TRACE_EXPORTER=stdout.
	traceOut io.Writer
}

func newRunCmd(log logging.Logger) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one or more simulations",
		Long: `Run simulations described by KEY=VALUE parameter lists.

Each --params value is one run, e.g.
  simulator run --params MODEL=RWP,FORMAT=BINARY,TIME=100,SIMULATION_SIZE=500,SEED=7

Values from --config (TOML or YAML) apply to every run and are overridden
by --params.

Models: ` + strings.Join(core.MobilityModelNames(), ", "),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.traceOut = cmd.ErrOrStderr()
			return runSimulations(cmd.Context(), cmd.OutOrStdout(), f, log)
		},
	}
	cmd.Flags().StringArrayVarP(&f.params, "params", "p", nil, "comma-separated KEY=VALUE parameters for one run (repeatable)")
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "TOML or YAML file with base parameters")
	cmd.Flags().IntVar(&f.parallel, "parallel", 1, "maximum number of runs executed concurrently")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (disabled when empty)")
	return cmd
}

func runSimulations(ctx context.Context, out io.Writer, f runFlags, log logging.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := collectParameters(f)
	if err != nil {
		return err
	}

	tracing := observability.TracingConfigFromEnv()
	tracing.Output = f.traceOut
	shutdown, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	collector, err := observability.NewSimulationCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if srv := serveMetrics(f.metricsAddr, collector, log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	results, err := runner.RunBatch(ctx, runs, f.parallel, runner.Options{Logger: log, Metrics: collector})
	for i, res := range results {
		if res.Err != nil {
			fmt.Fprintf(out, "run %d: failed: %v\n", i, res.Err)
			continue
		}
		printResult(out, i, res)
	}
	return err
}

func collectParameters(f runFlags) ([]config.Parameters, error) {
	base := config.Parameters{}
	if f.configFile != "" {
		loaded, err := config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
		base = loaded
	}
	if len(f.params) == 0 {
		if len(base) == 0 {
			return nil, fmt.Errorf("no parameters: pass --params or --config")
		}
		return []config.Parameters{base}, nil
	}

	runs := make([]config.Parameters, 0, len(f.params))
	for _, raw := range f.params {
		p, err := config.ParseParameters(raw)
		if err != nil {
			return nil, err
		}
		runs = append(runs, base.Merge(p))
	}
	return runs, nil
}

func printResult(out io.Writer, i int, res runner.Result) {
	s := res.Stats
	fmt.Fprintf(out, "run %d: %s (%s)\n", i, res.RunName, res.Model)
	fmt.Fprintf(out, "  samples:        %d\n", s.Samples)
	fmt.Fprintf(out, "  nodes:          %d (joins %d, leaves %d)\n", s.UniqueNodes, s.NodeJoins, s.NodeLeaves)
	fmt.Fprintf(out, "  avg nodes:      %.3f\n", s.AvgNodes)
	fmt.Fprintf(out, "  avg node time:  %.3f (stddev %.3f)\n", s.AvgNodeTime, s.NodeTimeStdDev)
	fmt.Fprintf(out, "  events:         %d\n", s.Events)
	fmt.Fprintf(out, "  elapsed:        %s\n", s.Elapsed)
	if res.TracePath != "" {
		fmt.Fprintf(out, "  trace:          %s (%d bytes)\n", res.TracePath, res.TraceBytes)
	}
}
