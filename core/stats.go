package core

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// RunStats summarises node participation over a run.
type RunStats struct {
	Samples     int
	UniqueNodes int
	NodeJoins   int
	NodeLeaves  int
	Events      int

	// AvgNodes is the mean number of active nodes per sample.
	AvgNodes float64
	// AvgNodeTime is the accumulated participation time of nodes that
	// left, divided by the number of joins.
	AvgNodeTime float64
	// NodeTimeStdDev is the sample standard deviation of the
	// participation times of nodes that left.
	NodeTimeStdDev float64

	Elapsed time.Duration
}

// participation accumulates the per-sample and per-node figures RunStats
// is derived from.
type participation struct {
	activeSum   float64
	nodeTimeSum float64
	nodeTimes   []float64
	joins       int
	leaves      int
}

func (p *participation) observeSample(active int) {
	p.activeSum += float64(active)
}

func (p *participation) observeJoin() {
	p.joins++
}

func (p *participation) observeLeave(nodeTime float64) {
	p.leaves++
	p.nodeTimeSum += nodeTime
	p.nodeTimes = append(p.nodeTimes, nodeTime)
}

// summarise divides the accumulated sums. Zero samples or zero joins give
// zero averages rather than NaN.
func (p *participation) summarise(samples int) RunStats {
	s := RunStats{
		Samples:    samples,
		NodeJoins:  p.joins,
		NodeLeaves: p.leaves,
	}
	if samples > 0 {
		s.AvgNodes = p.activeSum / float64(samples)
	}
	if p.joins > 0 {
		s.AvgNodeTime = p.nodeTimeSum / float64(p.joins)
	}
	if len(p.nodeTimes) > 1 {
		s.NodeTimeStdDev = stat.StdDev(p.nodeTimes, nil)
	}
	return s
}
