package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/mobility-simulator/internal/config"
)

var errSharedTrace = errors.New("trace file already claimed")

// RunBatch executes independent runs with at most limit in flight
// (limit <= 0 means one at a time). Every run is built before any starts;
// a run whose trace path an earlier run already claims fails there with a
// ParameterError instead of colliding on disk. RunBatch waits for every
// run and returns results in input order, each carrying its own error,
// together with the joined errors. A failing run does not stop the
// others. Runs not yet started when ctx is done are skipped with ctx's
// error.
func RunBatch(ctx context.Context, params []config.Parameters, limit int, opts Options) ([]Result, error) {
	if limit <= 0 {
		limit = 1
	}
	results := make([]Result, len(params))
	errs := make([]error, len(params))
	fail := func(i int, err error) {
		errs[i] = fmt.Errorf("run %d: %w", i, err)
		results[i].Err = err
	}

	plans := make([]*Plan, len(params))
	claimed := make(map[string]int)
	for i, p := range params {
		plan, err := Build(p, opts)
		if err != nil {
			fail(i, err)
			continue
		}
		if plan.TracePath != "" {
			key := filepath.Clean(plan.TracePath)
			if first, ok := claimed[key]; ok {
				fail(i, &config.ParameterError{
					Name:  config.KeyTraceFile,
					Value: plan.TracePath,
					Err:   fmt.Errorf("%w by run %d; set a distinct RUN_NAME or TRACE_FILE", errSharedTrace, first),
				})
				continue
			}
			claimed[key] = i
		}
		plans[i] = plan
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, plan := range plans {
		if plan == nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				fail(i, err)
				return nil
			}
			res, err := plan.Execute(ctx, opts)
			results[i] = res
			if err != nil {
				fail(i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
