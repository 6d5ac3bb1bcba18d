package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/model"
)

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func testSettings(model string) config.Simulation {
	return config.Simulation{
		Duration: 10,
		Step:     1,
		Size:     100,
		Seed:     7,
		Model:    model,
		Format:   "BINARY",
		RunName:  "test",
	}
}

func runModel(t *testing.T, name string, p config.Parameters, s config.Simulation) *SimulationEngine {
	t.Helper()
	m, err := NewMobilityModel(name, p, s)
	if err != nil {
		t.Fatalf("NewMobilityModel(%q): %v", name, err)
	}
	e, err := NewSimulationEngine(s, m)
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return e
}

func TestNewMobilityModel_UnknownName(t *testing.T) {
	for _, name := range []string{"", "TELEPORT"} {
		_, err := NewMobilityModel(name, config.Parameters{}, testSettings(name))
		if !errors.Is(err, ErrModelSelection) {
			t.Fatalf("NewMobilityModel(%q) err = %v, want ErrModelSelection", name, err)
		}
		var sel *ModelSelectionError
		if !errors.As(err, &sel) || sel.Kind != SelectionModel {
			t.Fatalf("NewMobilityModel(%q) err = %#v, want model selection error", name, err)
		}
	}
}

func TestNewMobilityModel_CaseInsensitive(t *testing.T) {
	m, err := NewMobilityModel(" rwp ", config.Parameters{}, testSettings("RWP"))
	if err != nil {
		t.Fatalf("NewMobilityModel: %v", err)
	}
	if m.Name() != "RWP" {
		t.Fatalf("Name() = %q, want RWP", m.Name())
	}
}

func TestMobilityModelNames(t *testing.T) {
	got := strings.Join(MobilityModelNames(), ",")
	if got != "FIXED,ORBIT,RWP" {
		t.Fatalf("MobilityModelNames() = %s", got)
	}
}

func TestModelParameterErrors(t *testing.T) {
	cases := []struct {
		model string
		key   string
		value string
	}{
		{"FIXED", KeyNodes, "-1"},
		{"FIXED", KeyNodes, "many"},
		{"RWP", KeyRWPMinSpeed, "0"},
		{"RWP", KeyRWPMaxSpeed, "0.5"},
		{"RWP", KeyRWPMaxPause, "-2"},
		{"ORBIT", KeyStartTime, "yesterday"},
	}
	for _, tc := range cases {
		t.Run(tc.model+"/"+tc.key, func(t *testing.T) {
			p := config.Parameters{}
			p.Set(tc.key, tc.value)
			_, err := NewMobilityModel(tc.model, p, testSettings(tc.model))
			if !errors.Is(err, ErrParameter) {
				t.Fatalf("err = %v, want ErrParameter", err)
			}
			var pe *config.ParameterError
			if !errors.As(err, &pe) || pe.Name != tc.key {
				t.Fatalf("err = %#v, want ParameterError for %s", err, tc.key)
			}
		})
	}
}

func TestFixedModel_OneStationaryMovePerNodePerSample(t *testing.T) {
	p := config.Parameters{}
	p.Set(KeyNodes, "3")
	e := runModel(t, "FIXED", p, testSettings("FIXED"))

	counts := e.Events.CountByKind()
	if counts[model.EventMove] != 3*10 {
		t.Fatalf("moves = %d, want 30", counts[model.EventMove])
	}
	if counts[model.EventJoin] != 3 {
		t.Fatalf("joins = %d, want 3", counts[model.EventJoin])
	}
	for _, ev := range e.Events.Events() {
		mv, ok := ev.(model.Move)
		if !ok {
			continue
		}
		if mv.From != mv.To {
			t.Fatalf("fixed node %d moved from %+v to %+v", mv.NodeID, mv.From, mv.To)
		}
		if !e.Area.Contains(mv.To) {
			t.Fatalf("position %+v outside area", mv.To)
		}
	}
}

func TestRandomWaypointModel_StaysInAreaAndRespectsSpeed(t *testing.T) {
	p := config.Parameters{}
	p.Set(KeyNodes, "4")
	p.Set(KeyRWPMinSpeed, "2")
	p.Set(KeyRWPMaxSpeed, "3")
	s := testSettings("RWP")
	s.Duration = 50
	e := runModel(t, "RWP", p, s)

	counts := e.Events.CountByKind()
	if counts[model.EventMove] != 4*50 {
		t.Fatalf("moves = %d, want 200", counts[model.EventMove])
	}
	if counts[model.EventPause] != 0 {
		t.Fatalf("pauses = %d, want 0 without RWP_MAX_PAUSE", counts[model.EventPause])
	}
	for _, ev := range e.Events.Events() {
		mv, ok := ev.(model.Move)
		if !ok {
			continue
		}
		if !e.Area.Contains(mv.To) {
			t.Fatalf("node %d left the area: %+v", mv.NodeID, mv.To)
		}
		if d := mv.From.DistanceTo(mv.To); d > 3*mv.Duration+1e-9 {
			t.Fatalf("node %d travelled %v in %v", mv.NodeID, d, mv.Duration)
		}
	}
}

func TestRandomWaypointModel_PausesEmitOneEventPerSample(t *testing.T) {
	p := config.Parameters{}
	p.Set(KeyNodes, "5")
	p.Set(KeyRWPMinSpeed, "50")
	p.Set(KeyRWPMaxSpeed, "50")
	p.Set(KeyRWPMaxPause, "5")
	s := testSettings("RWP")
	s.Duration = 40
	e := runModel(t, "RWP", p, s)

	counts := e.Events.CountByKind()
	if counts[model.EventPause] == 0 {
		t.Fatalf("expected pauses with fast walkers and RWP_MAX_PAUSE=5")
	}
	if got := counts[model.EventMove] + counts[model.EventPause]; got != 5*40 {
		t.Fatalf("moves+pauses = %d, want 200", got)
	}
}

func TestParseTLEs(t *testing.T) {
	in := "ISS (ZARYA)\n" + issLine1 + "\n" + issLine2 + "\n\n" + issLine1 + "\n" + issLine2 + "\n"
	tles, err := ParseTLEs(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseTLEs: %v", err)
	}
	if len(tles) != 2 {
		t.Fatalf("len = %d, want 2", len(tles))
	}
	if tles[0].Name != "ISS (ZARYA)" {
		t.Fatalf("name = %q", tles[0].Name)
	}
	if tles[1].Name != "25544" {
		t.Fatalf("unnamed TLE name = %q, want catalogue number", tles[1].Name)
	}
}

func TestParseTLEs_Malformed(t *testing.T) {
	for name, in := range map[string]string{
		"line2 first":  issLine2 + "\n",
		"missing 2":    issLine1 + "\n",
		"short line":   "1 25544U\n" + issLine2 + "\n",
		"name between": issLine1 + "\nNAME\n" + issLine2 + "\n",
	} {
		if _, err := ParseTLEs(strings.NewReader(in)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestGroundTrackModel_MovesOverTime(t *testing.T) {
	dir := t.TempDir()
	body := "ISS\n" + issLine1 + "\n" + issLine2 + "\n"
	if err := os.WriteFile(filepath.Join(dir, "iss.tle"), []byte(body), 0o644); err != nil {
		t.Fatalf("write TLE: %v", err)
	}
	p := config.Parameters{}
	p.Set(KeyTLEFile, "iss.tle")
	s := testSettings("ORBIT")
	s.InputDir = dir
	s.Duration = 600
	s.Step = 60
	e := runModel(t, "ORBIT", p, s)

	events := e.Events.Events()
	moves := 0
	changed := false
	for _, ev := range events {
		mv, ok := ev.(model.Move)
		if !ok {
			continue
		}
		moves++
		if !e.Area.Contains(mv.To) {
			t.Fatalf("projected position %+v outside area", mv.To)
		}
		if mv.From != mv.To {
			changed = true
		}
	}
	if moves != 10 {
		t.Fatalf("moves = %d, want 10", moves)
	}
	if !changed {
		t.Fatalf("expected the ground track to move")
	}
}

func TestGroundTrackModel_SubSecondSteps(t *testing.T) {
	dir := t.TempDir()
	body := "ISS\n" + issLine1 + "\n" + issLine2 + "\n"
	if err := os.WriteFile(filepath.Join(dir, "iss.tle"), []byte(body), 0o644); err != nil {
		t.Fatalf("write TLE: %v", err)
	}
	p := config.Parameters{}
	p.Set(KeyTLEFile, "iss.tle")
	s := testSettings("ORBIT")
	s.InputDir = dir
	s.Duration = 2
	s.Step = 0.25
	e := runModel(t, "ORBIT", p, s)

	seen := map[model.Position]float64{}
	moves := 0
	for _, ev := range e.Events.Events() {
		mv, ok := ev.(model.Move)
		if !ok {
			continue
		}
		moves++
		if mv.From == mv.To {
			t.Fatalf("move at %v has zero length: %+v", mv.StartTime, mv.To)
		}
		if prev, dup := seen[mv.To]; dup {
			t.Fatalf("positions at %v and %v coincide: %+v", prev, mv.StartTime, mv.To)
		}
		seen[mv.To] = mv.StartTime
	}
	if moves != 8 {
		t.Fatalf("moves = %d, want 8", moves)
	}
}

func TestGroundTrackModel_MissingFile(t *testing.T) {
	s := testSettings("ORBIT")
	s.InputDir = t.TempDir()
	m, err := NewMobilityModel("ORBIT", config.Parameters{}, s)
	if err != nil {
		t.Fatalf("NewMobilityModel: %v", err)
	}
	e, err := NewSimulationEngine(s, m)
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}
	if _, err := e.Run(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Run err = %v, want not-exist", err)
	}
}
