// Package config parses and validates the named parameters that configure
// a simulation run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Parameter names understood by the simulator core. Mobility models read
// additional model-specific keys from the same Parameters.
const (
	KeyModel       = "MODEL"
	KeyFormat      = "FORMAT"
	KeyGUI         = "GUI"
	KeyTime        = "TIME"
	KeyStep        = "STEP"
	KeySize        = "SIMULATION_SIZE"
	KeySeed        = "SEED"
	KeyInputDir    = "INPUT_DIRECTORY"
	KeyOutputDir   = "OUTPUT_DIRECTORY"
	KeyRunName     = "RUN_NAME"
	KeyPausePolicy = "PAUSE_POLICY"
	KeyTraceFile   = "TRACE_FILE"
)

// DefaultStep is used when STEP is not given.
const DefaultStep = 1.0

// Parameters is a set of KEY=VALUE pairs. Keys are stored upper-case.
type Parameters map[string]string

// ParseParameters parses "KEY=VALUE,KEY=VALUE". Empty segments are
// ignored; a segment without '=' or with an empty key is rejected.
func ParseParameters(s string) (Parameters, error) {
	p := Parameters{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &ParameterError{Name: pair, Err: fmt.Errorf("%w: expected KEY=VALUE", errMalformed)}
		}
		p.Set(key, strings.TrimSpace(value))
	}
	return p, nil
}

// Set stores value under the normalised key.
func (p Parameters) Set(key, value string) {
	p[normalise(key)] = value
}

// Get returns the raw value for key.
func (p Parameters) Get(key string) (string, bool) {
	v, ok := p[normalise(key)]
	return v, ok
}

// Has reports whether key is present with a non-empty value.
func (p Parameters) Has(key string) bool {
	v, ok := p.Get(key)
	return ok && v != ""
}

// Merge returns a new set holding p overlaid with other.
func (p Parameters) Merge(other Parameters) Parameters {
	out := make(Parameters, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[normalise(k)] = v
	}
	return out
}

// String returns the value for key, or def when absent or empty.
func (p Parameters) String(key, def string) string {
	if v, ok := p.Get(key); ok && v != "" {
		return v
	}
	return def
}

// Float parses key as a float64, returning def when absent.
func (p Parameters) Float(key string, def float64) (float64, error) {
	v, ok := p.Get(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, &ParameterError{Name: normalise(key), Value: v, Err: fmt.Errorf("%w: %v", errMalformed, err)}
	}
	return f, nil
}

// Int parses key as an int, returning def when absent.
func (p Parameters) Int(key string, def int) (int, error) {
	v, ok := p.Get(key)
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ParameterError{Name: normalise(key), Value: v, Err: fmt.Errorf("%w: %v", errMalformed, err)}
	}
	return i, nil
}

// Int64 parses key as an int64, returning def when absent.
func (p Parameters) Int64(key string, def int64) (int64, error) {
	v, ok := p.Get(key)
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &ParameterError{Name: normalise(key), Value: v, Err: fmt.Errorf("%w: %v", errMalformed, err)}
	}
	return i, nil
}

// Require returns a ParameterError when key is absent or empty.
func (p Parameters) Require(key string) error {
	if !p.Has(key) {
		return &ParameterError{Name: normalise(key), Err: errMissing}
	}
	return nil
}

// Simulation is the validated, typed view of the core parameters.
type Simulation struct {
	Duration float64
	Step     float64
	Size     int
	Seed     int64

	Model  string
	Format string
	GUI    bool

	InputDir    string
	OutputDir   string
	RunName     string
	PausePolicy string
	TraceFile   string
}

// Resolve validates the core parameters and returns them typed. Required
// keys are TIME, SIMULATION_SIZE and SEED; MODEL is checked by model
// selection so an absent model is reported as a selection failure.
func (p Parameters) Resolve() (Simulation, error) {
	for _, key := range []string{KeyTime, KeySize, KeySeed} {
		if err := p.Require(key); err != nil {
			return Simulation{}, err
		}
	}

	duration, err := p.Float(KeyTime, 0)
	if err != nil {
		return Simulation{}, err
	}
	step, err := p.Float(KeyStep, DefaultStep)
	if err != nil {
		return Simulation{}, err
	}
	size, err := p.Int(KeySize, 0)
	if err != nil {
		return Simulation{}, err
	}
	seed, err := p.Int64(KeySeed, 0)
	if err != nil {
		return Simulation{}, err
	}
	gui, err := p.Int(KeyGUI, 0)
	if err != nil {
		return Simulation{}, err
	}

	outputDir := p.String(KeyOutputDir, "")
	if outputDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Simulation{}, &ParameterError{Name: KeyOutputDir, Err: fmt.Errorf("resolve working directory: %w", err)}
		}
		outputDir = wd
	}

	s := Simulation{
		Duration:    duration,
		Step:        step,
		Size:        size,
		Seed:        seed,
		Model:       strings.ToUpper(p.String(KeyModel, "")),
		Format:      strings.ToUpper(p.String(KeyFormat, "")),
		GUI:         gui == 1,
		InputDir:    p.String(KeyInputDir, ""),
		OutputDir:   outputDir,
		RunName:     p.String(KeyRunName, uuid.NewString()),
		PausePolicy: strings.ToUpper(p.String(KeyPausePolicy, "")),
		TraceFile:   p.String(KeyTraceFile, ""),
	}
	if err := s.Validate(); err != nil {
		return Simulation{}, err
	}
	return s, nil
}

// Validate checks the numeric invariants: duration > 0, step > 0, size >= 0.
func (s Simulation) Validate() error {
	if !(s.Duration > 0) {
		return &ParameterError{Name: KeyTime, Value: strconv.FormatFloat(s.Duration, 'g', -1, 64), Err: fmt.Errorf("%w: must be > 0", errRange)}
	}
	if !(s.Step > 0) {
		return &ParameterError{Name: KeyStep, Value: strconv.FormatFloat(s.Step, 'g', -1, 64), Err: fmt.Errorf("%w: must be > 0", errRange)}
	}
	if s.Size < 0 {
		return &ParameterError{Name: KeySize, Value: strconv.Itoa(s.Size), Err: fmt.Errorf("%w: must be >= 0", errRange)}
	}
	return nil
}

func normalise(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
