package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("model", "RWP")).Debug(context.Background(), "sample",
		Int("sample", 3),
		Float("time", 1.5),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal log record %q: %v", buf.String(), err)
	}
	if rec["msg"] != "sample" || rec["model"] != "RWP" || rec["error"] != "boom" {
		t.Fatalf("record = %v", rec)
	}
	if rec["sample"] != float64(3) || rec["time"] != 1.5 {
		t.Fatalf("numeric fields = %v / %v", rec["sample"], rec["time"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn record not written")
	}
}

func TestRunIDHelpers(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("EnsureRunID returned empty id")
	}
	if got := RunIDFromContext(ctx); got != id {
		t.Fatalf("RunIDFromContext = %q, want %q", got, id)
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatalf("EnsureRunID replaced an existing id: %q -> %q", id, id2)
	}

	named := ContextWithRunID(context.Background(), "run-7")
	var buf bytes.Buffer
	_, log := WithRunLogger(named, New(Config{Format: "json", Output: &buf}))
	log.Info(named, "hello")
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["run_id"] != "run-7" {
		t.Fatalf("run_id = %v, want run-7", rec["run_id"])
	}
}
