package timectrl

import (
	"fmt"
	"math"
	"sync"
)

// StepClock advances simulation time in fixed steps and notifies
// registered listeners after every step.
type StepClock struct {
	mu       sync.RWMutex
	Step     float64
	Duration float64

	sample int

	listeners []func(sample int, now float64)
}

// NewStepClock constructs a clock covering duration in increments of step.
func NewStepClock(duration, step float64) (*StepClock, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("step must be positive, got %v", step)
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("duration must be positive, got %v", duration)
	}
	return &StepClock{Step: step, Duration: duration}, nil
}

// Samples returns floor(Duration/Step), the number of steps in a run.
func (c *StepClock) Samples() int {
	return int(math.Floor(c.Duration / c.Step))
}

// Now returns the time observed by the current sample: sample*Step.
func (c *StepClock) Now() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return float64(c.sample) * c.Step
}

// Sample returns the zero-based index of the current sample.
func (c *StepClock) Sample() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sample
}

// Done reports whether every sample has been consumed.
func (c *StepClock) Done() bool {
	return c.Sample() >= c.Samples()
}

// AddListener registers a callback invoked after every Advance with the
// index of the completed sample and the new simulation time.
func (c *StepClock) AddListener(fn func(sample int, now float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Advance moves the clock forward by one step.
func (c *StepClock) Advance() {
	c.mu.Lock()
	completed := c.sample
	c.sample++
	now := float64(c.sample) * c.Step
	listeners := append([]func(int, float64){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(completed, now)
	}
}
