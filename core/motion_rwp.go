package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// RandomWaypointModel moves every node towards a random waypoint at a
// random speed, optionally pausing on arrival. Each node emits exactly
// one event per sample: a Move while travelling, a Pause while resting.
type RandomWaypointModel struct {
	count    int
	minSpeed float64
	maxSpeed float64
	maxPause float64

	walkers []*walker
}

type walker struct {
	node      *model.Node
	target    model.Position
	speed     float64
	pauseLeft float64
}

func newRandomWaypointModel(p config.Parameters, _ config.Simulation) (MobilityModel, error) {
	n, err := nodeCountParam(p)
	if err != nil {
		return nil, err
	}
	minSpeed, err := p.Float(KeyRWPMinSpeed, 1)
	if err != nil {
		return nil, err
	}
	maxSpeed, err := p.Float(KeyRWPMaxSpeed, 5)
	if err != nil {
		return nil, err
	}
	maxPause, err := p.Float(KeyRWPMaxPause, 0)
	if err != nil {
		return nil, err
	}
	if !(minSpeed > 0) {
		return nil, &config.ParameterError{Name: KeyRWPMinSpeed, Value: fmt.Sprint(minSpeed), Err: errors.New("must be > 0")}
	}
	if maxSpeed < minSpeed {
		return nil, &config.ParameterError{Name: KeyRWPMaxSpeed, Value: fmt.Sprint(maxSpeed), Err: fmt.Errorf("must be >= %s", KeyRWPMinSpeed)}
	}
	if maxPause < 0 {
		return nil, &config.ParameterError{Name: KeyRWPMaxPause, Value: fmt.Sprint(maxPause), Err: errNegative}
	}
	return &RandomWaypointModel{
		count:    n,
		minSpeed: minSpeed,
		maxSpeed: maxSpeed,
		maxPause: maxPause,
	}, nil
}

func (m *RandomWaypointModel) Name() string { return "RWP" }

func (m *RandomWaypointModel) Init(_ context.Context, sim *SimulationEngine) error {
	m.walkers = make([]*walker, 0, m.count)
	for i := 0; i < m.count; i++ {
		n := model.NewNode(sim.Area.RandomPosition(sim.Rand()))
		if err := sim.AddNode(sim.Now(), n); err != nil {
			return err
		}
		w := &walker{node: n}
		m.pickWaypoint(sim, w)
		m.walkers = append(m.walkers, w)
	}
	return nil
}

func (m *RandomWaypointModel) Next(_ context.Context, sim *SimulationEngine) error {
	now := sim.Now()
	dt := sim.Settings.Step
	for _, w := range m.walkers {
		n := w.node
		if w.pauseLeft > 0 {
			sim.AddEvent(model.NewPause(n.ID, now, n.Position, dt))
			w.pauseLeft -= dt
			if w.pauseLeft <= 0 {
				w.pauseLeft = 0
				m.pickWaypoint(sim, w)
			}
			continue
		}

		from := n.Position
		dist := from.DistanceTo(w.target)
		travel := w.speed * dt
		to := w.target
		arrived := travel >= dist
		if !arrived {
			f := travel / dist
			to = model.Position{
				X: from.X + (w.target.X-from.X)*f,
				Y: from.Y + (w.target.Y-from.Y)*f,
			}
		}
		sim.AddEvent(model.NewMove(n.ID, now, from, to, dt))
		n.Position = to

		if arrived {
			if pause := sim.Rand().Float64() * m.maxPause; pause > 0 {
				w.pauseLeft = pause
			} else {
				m.pickWaypoint(sim, w)
			}
		}
	}
	return nil
}

func (m *RandomWaypointModel) Finish(context.Context, *SimulationEngine) error { return nil }

func (m *RandomWaypointModel) pickWaypoint(sim *SimulationEngine, w *walker) {
	w.target = sim.Area.RandomPosition(sim.Rand())
	w.speed = m.minSpeed + sim.Rand().Float64()*(m.maxSpeed-m.minSpeed)
}
