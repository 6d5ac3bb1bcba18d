package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimulationCollector bundles Prometheus metrics for simulation runs and
// exposes a /metrics handler.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	SamplesTotal *prometheus.CounterVec
	StepDuration prometheus.Histogram
	ActiveNodes  *prometheus.GaugeVec
	NodeJoins    *prometheus.CounterVec
	NodeLeaves   *prometheus.CounterVec
	TraceBytes   prometheus.Counter
}

// NewSimulationCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
// Registering twice against the same registry reuses the existing
// collectors.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_runs_total",
		Help: "Total number of simulation runs, labeled by mobility model and result.",
	}, []string{"model", "result"}), "simulation_runs_total")
	if err != nil {
		return nil, err
	}

	runDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simulation_run_duration_seconds",
		Help:    "Wall-clock duration of simulation runs in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"model"}), "simulation_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	samples, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_samples_total",
		Help: "Total number of simulation samples executed, labeled by run.",
	}, []string{"run"}), "simulation_samples_total")
	if err != nil {
		return nil, err
	}

	step, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simulation_step_duration_seconds",
		Help:    "Wall-clock time between consecutive simulation samples.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "simulation_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	active, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "simulation_active_nodes",
		Help: "Current number of active nodes, labeled by run.",
	}, []string{"run"}), "simulation_active_nodes")
	if err != nil {
		return nil, err
	}

	joins, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_node_joins_total",
		Help: "Total number of nodes that joined, labeled by run.",
	}, []string{"run"}), "simulation_node_joins_total")
	if err != nil {
		return nil, err
	}

	leaves, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_node_leaves_total",
		Help: "Total number of nodes that left, labeled by run.",
	}, []string{"run"}), "simulation_node_leaves_total")
	if err != nil {
		return nil, err
	}

	traceBytes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_bytes_written_total",
		Help: "Total number of bytes written to binary trace files.",
	}), "trace_bytes_written_total")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:     gatherer,
		RunsTotal:    runs,
		RunDuration:  runDuration,
		SamplesTotal: samples,
		StepDuration: step,
		ActiveNodes:  active,
		NodeJoins:    joins,
		NodeLeaves:   leaves,
		TraceBytes:   traceBytes,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulationCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome and wall-clock duration of a run.
func (c *SimulationCollector) ObserveRun(model string, d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	if c.RunsTotal != nil {
		c.RunsTotal.WithLabelValues(model, result).Inc()
	}
	if c.RunDuration != nil {
		c.RunDuration.WithLabelValues(model).Observe(d.Seconds())
	}
}

// ObserveSample records one completed sample of run.
func (c *SimulationCollector) ObserveSample(run string, activeNodes int, sinceLast time.Duration) {
	if c == nil {
		return
	}
	if c.SamplesTotal != nil {
		c.SamplesTotal.WithLabelValues(run).Inc()
	}
	if c.ActiveNodes != nil {
		c.ActiveNodes.WithLabelValues(run).Set(float64(activeNodes))
	}
	if c.StepDuration != nil && sinceLast > 0 {
		c.StepDuration.Observe(sinceLast.Seconds())
	}
}

// IncNodeJoins counts a node joining run.
func (c *SimulationCollector) IncNodeJoins(run string) {
	if c == nil || c.NodeJoins == nil {
		return
	}
	c.NodeJoins.WithLabelValues(run).Inc()
}

// IncNodeLeaves counts a node leaving run.
func (c *SimulationCollector) IncNodeLeaves(run string) {
	if c == nil || c.NodeLeaves == nil {
		return
	}
	c.NodeLeaves.WithLabelValues(run).Inc()
}

// AddTraceBytes records bytes written to a trace file.
func (c *SimulationCollector) AddTraceBytes(n int64) {
	if c == nil || c.TraceBytes == nil || n <= 0 {
		return
	}
	c.TraceBytes.Add(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
