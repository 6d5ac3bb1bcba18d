package timectrl

import "testing"

func TestNewStepClockRejectsNonPositive(t *testing.T) {
	for _, tc := range []struct {
		name     string
		duration float64
		step     float64
	}{
		{name: "ZeroStep", duration: 10, step: 0},
		{name: "NegativeStep", duration: 10, step: -1},
		{name: "ZeroDuration", duration: 0, step: 1},
		{name: "NegativeDuration", duration: -3, step: 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewStepClock(tc.duration, tc.step); err == nil {
				t.Fatalf("NewStepClock(%v, %v) succeeded, want error", tc.duration, tc.step)
			}
		})
	}
}

func TestStepClockSamples(t *testing.T) {
	for _, tc := range []struct {
		duration float64
		step     float64
		want     int
	}{
		{duration: 4, step: 1, want: 4},
		{duration: 10, step: 3, want: 3},
		{duration: 2.5, step: 0.5, want: 5},
		{duration: 0.5, step: 1, want: 0},
	} {
		c, err := NewStepClock(tc.duration, tc.step)
		if err != nil {
			t.Fatalf("NewStepClock: %v", err)
		}
		if got := c.Samples(); got != tc.want {
			t.Fatalf("Samples(%v/%v) = %d, want %d", tc.duration, tc.step, got, tc.want)
		}
	}
}

func TestStepClockAdvanceNotifiesListeners(t *testing.T) {
	c, err := NewStepClock(3, 0.5)
	if err != nil {
		t.Fatalf("NewStepClock: %v", err)
	}

	var samples []int
	var times []float64
	c.AddListener(func(sample int, now float64) {
		samples = append(samples, sample)
		times = append(times, now)
	})

	if c.Now() != 0 {
		t.Fatalf("Now() before Advance = %v, want 0", c.Now())
	}
	for !c.Done() {
		c.Advance()
	}

	if len(samples) != 6 {
		t.Fatalf("listener calls = %d, want 6", len(samples))
	}
	for i := range samples {
		if samples[i] != i {
			t.Fatalf("listener sample[%d] = %d, want %d", i, samples[i], i)
		}
		if want := float64(i+1) * 0.5; times[i] != want {
			t.Fatalf("listener time[%d] = %v, want %v", i, times[i], want)
		}
	}
	if got := c.Now(); got != 3 {
		t.Fatalf("Now() = %v, want 3", got)
	}
}
