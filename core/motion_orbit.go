package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/mobility-simulator/internal/config"
	"github.com/signalsfoundry/mobility-simulator/internal/logging"
	"github.com/signalsfoundry/mobility-simulator/model"
)

// DefaultOrbitStart is the propagation epoch used when START_TIME is unset.
var DefaultOrbitStart = time.Date(2021, time.October, 2, 0, 0, 0, 0, time.UTC)

// DefaultTLEFile is read from the input directory when TLE_FILE is unset.
const DefaultTLEFile = "satellites.tle"

const secondsPerDay = 86400

var errBadTLE = errors.New("malformed TLE")

// TLE is one two-line element set.
type TLE struct {
	Name  string
	Line1 string
	Line2 string
}

// GroundTrackModel follows the sub-satellite points of a set of
// satellites. Each satellite is one node; its geocentric latitude and
// longitude are projected linearly onto the simulation area. Simulation
// time is measured in seconds from the start epoch.
type GroundTrackModel struct {
	path  string
	start time.Time

	sats  []satellite.Satellite
	nodes []*model.Node
}

func newGroundTrackModel(p config.Parameters, s config.Simulation) (MobilityModel, error) {
	start := DefaultOrbitStart
	if raw := p.String(KeyStartTime, ""); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &config.ParameterError{Name: KeyStartTime, Value: raw, Err: err}
		}
		start = t.UTC()
	}
	return &GroundTrackModel{
		path:  filepath.Join(s.InputDir, p.String(KeyTLEFile, DefaultTLEFile)),
		start: start,
	}, nil
}

func (m *GroundTrackModel) Name() string { return "ORBIT" }

func (m *GroundTrackModel) Init(ctx context.Context, sim *SimulationEngine) error {
	f, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("open TLE file: %w", err)
	}
	defer f.Close()

	tles, err := ParseTLEs(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", m.path, err)
	}

	m.sats = make([]satellite.Satellite, 0, len(tles))
	m.nodes = make([]*model.Node, 0, len(tles))
	for _, tle := range tles {
		sat := satellite.TLEToSat(tle.Line1, tle.Line2, satellite.GravityWGS72)
		pos, err := m.position(sat, sim.Area, m.start)
		if err != nil {
			return fmt.Errorf("satellite %q: %w", tle.Name, err)
		}
		n := model.NewNode(pos)
		if err := sim.AddNode(sim.Now(), n); err != nil {
			return err
		}
		m.sats = append(m.sats, sat)
		m.nodes = append(m.nodes, n)
	}
	sim.Logger().Debug(ctx, "loaded satellites", logging.Int("satellites", len(tles)))
	return nil
}

// Next emits, for every satellite, a Move from its current point to the
// point it reaches at the end of the sample.
func (m *GroundTrackModel) Next(_ context.Context, sim *SimulationEngine) error {
	now := sim.Now()
	dt := sim.Settings.Step
	at := m.start.Add(time.Duration((now + dt) * float64(time.Second)))
	for i, n := range m.nodes {
		pos, err := m.position(m.sats[i], sim.Area, at)
		if err != nil {
			return fmt.Errorf("node %d: %w", n.ID, err)
		}
		sim.AddEvent(model.NewMove(n.ID, now, n.Position, pos, dt))
		n.Position = pos
	}
	return nil
}

func (m *GroundTrackModel) Finish(context.Context, *SimulationEngine) error { return nil }

// position propagates sat to t with SGP4 and projects the sub-satellite
// point onto area. SGP4 takes whole seconds; the fractional part is
// covered by advancing along the propagated velocity, which keeps
// sub-second steps distinct.
func (m *GroundTrackModel) position(sat satellite.Satellite, area Area, t time.Time) (model.Position, error) {
	whole := t.Truncate(time.Second)
	frac := t.Sub(whole).Seconds()
	year, month, day := whole.Date()
	hour, min, sec := whole.Clock()

	posECI, velECI := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	posECI.X += velECI.X * frac
	posECI.Y += velECI.Y * frac
	posECI.Z += velECI.Z * frac

	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec) + frac/secondsPerDay)
	ecef := satellite.ECIToECEF(posECI, gmst)

	v := Vec3{X: ecef.X, Y: ecef.Y, Z: ecef.Z}
	if v.Norm() == 0 {
		return model.Position{}, fmt.Errorf("propagation failed at %s", t.Format(time.RFC3339Nano))
	}
	lat, lon := v.GeocentricLatLon()
	return area.ProjectLatLon(lat, lon), nil
}

// ParseTLEs reads two-line element sets, each optionally preceded by a
// name line. Blank lines are ignored.
func ParseTLEs(r io.Reader) ([]TLE, error) {
	var (
		tles []TLE
		name string
		l1   string
	)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \r")
		switch {
		case strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, "1 "):
			if l1 != "" {
				return nil, fmt.Errorf("%w: line %d: element line 1 without line 2", errBadTLE, lineNo-1)
			}
			if len(line) < 69 {
				return nil, fmt.Errorf("%w: line %d: too short", errBadTLE, lineNo)
			}
			l1 = line
		case strings.HasPrefix(line, "2 "):
			if l1 == "" {
				return nil, fmt.Errorf("%w: line %d: element line 2 without line 1", errBadTLE, lineNo)
			}
			if len(line) < 69 {
				return nil, fmt.Errorf("%w: line %d: too short", errBadTLE, lineNo)
			}
			if name == "" {
				name = strings.TrimSpace(l1[2:7])
			}
			tles = append(tles, TLE{Name: name, Line1: l1, Line2: line})
			name, l1 = "", ""
		default:
			if l1 != "" {
				return nil, fmt.Errorf("%w: line %d: expected element line 2", errBadTLE, lineNo)
			}
			name = strings.TrimSpace(line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if l1 != "" {
		return nil, fmt.Errorf("%w: trailing element line 1", errBadTLE)
	}
	return tles, nil
}
