package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/mobility-simulator/core"
	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/trace"
)

func TestRunBatch_RunsIndependentlyAndJoinsErrors(t *testing.T) {
	ps := []config.Parameters{
		params(t, "MODEL=FIXED,FORMAT=BINARY,TIME=5,SIMULATION_SIZE=10,SEED=1,RUN_NAME=a"),
		params(t, "MODEL=NOPE,TIME=5,SIMULATION_SIZE=10,SEED=1"),
		params(t, "MODEL=RWP,FORMAT=BINARY,TIME=5,SIMULATION_SIZE=10,SEED=2,RUN_NAME=c"),
	}
	results, err := RunBatch(context.Background(), ps, 2, Options{})
	if !errors.Is(err, core.ErrModelSelection) {
		t.Fatalf("err = %v, want ErrModelSelection", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for _, i := range []int{0, 2} {
		if _, statErr := os.Stat(results[i].TracePath); statErr != nil {
			t.Fatalf("run %d trace missing: %v", i, statErr)
		}
	}
	if results[1].TracePath != "" || !errors.Is(results[1].Err, core.ErrModelSelection) {
		t.Fatalf("failed run result = %+v", results[1])
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("successful runs carry errors: %v, %v", results[0].Err, results[2].Err)
	}
}

func TestRunBatch_SameSeedsSameStats(t *testing.T) {
	ps := make([]config.Parameters, 4)
	for i := range ps {
		ps[i] = params(t, "MODEL=RWP,TIME=20,SIMULATION_SIZE=50,SEED=9,NODES=3,RWP_MAX_PAUSE=2")
	}
	results, err := RunBatch(context.Background(), ps, 4, Options{})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	for i := 1; i < len(results); i++ {
		a, b := results[0].Stats, results[i].Stats
		a.Elapsed, b.Elapsed = 0, 0
		if a != b {
			t.Fatalf("run %d stats %+v differ from %+v", i, b, a)
		}
	}
}

func TestRunBatch_CancelledContextSkipsRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ps := []config.Parameters{params(t, "MODEL=FIXED,TIME=1,SIMULATION_SIZE=1,SEED=1")}
	if _, err := RunBatch(ctx, ps, 0, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunBatch_RejectsSharedTracePath(t *testing.T) {
	dir := t.TempDir()
	shared := "MODEL=FIXED,FORMAT=BINARY,TIME=3,SIMULATION_SIZE=10,NODES=2,RUN_NAME=same,OUTPUT_DIRECTORY=" + dir
	ps := []config.Parameters{
		params(t, shared+",SEED=1"),
		params(t, shared+",SEED=2"),
		params(t, "MODEL=FIXED,FORMAT=BINARY,TIME=3,SIMULATION_SIZE=10,SEED=3,RUN_NAME=other,OUTPUT_DIRECTORY="+dir),
		params(t, "MODEL=FIXED,FORMAT=BINARY,TIME=3,SIMULATION_SIZE=10,SEED=4,TRACE_FILE=./trace-other.bin,OUTPUT_DIRECTORY="+dir),
	}
	results, err := RunBatch(context.Background(), ps, len(ps), Options{})
	if !errors.Is(err, config.ErrParameter) {
		t.Fatalf("err = %v, want ErrParameter", err)
	}
	if errors.Is(err, trace.ErrIO) {
		t.Fatalf("shared path reached the file system: %v", err)
	}

	for _, i := range []int{0, 2} {
		if results[i].Err != nil {
			t.Fatalf("run %d: %v", i, results[i].Err)
		}
		if _, statErr := os.Stat(results[i].TracePath); statErr != nil {
			t.Fatalf("run %d trace missing: %v", i, statErr)
		}
	}
	for _, i := range []int{1, 3} {
		var pe *config.ParameterError
		if !errors.As(results[i].Err, &pe) || pe.Name != config.KeyTraceFile || !errors.Is(pe, errSharedTrace) {
			t.Fatalf("run %d err = %v, want shared trace ParameterError", i, results[i].Err)
		}
		if results[i].TracePath != "" {
			t.Fatalf("run %d TracePath = %q, want none", i, results[i].TracePath)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("trace files = %d, want 2", len(entries))
	}
	if _, err := os.Stat(filepath.Join(dir, "trace-same.bin")); err != nil {
		t.Fatalf("first claimant did not write: %v", err)
	}
}
