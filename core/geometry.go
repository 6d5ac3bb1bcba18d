package core

import (
	"math"
	"math/rand"

	"github.com/signalsfoundry/mobility-simulator/model"
)

// Area is the rectangular simulation region. Traces record it as the
// minimum bounding rectangle (MBR).
type Area struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// SquareArea returns the region [0,size]×[0,size].
func SquareArea(size int) Area {
	s := float64(size)
	return Area{MaxX: s, MaxY: s}
}

// Width returns MaxX-MinX.
func (a Area) Width() float64 { return a.MaxX - a.MinX }

// Height returns MaxY-MinY.
func (a Area) Height() float64 { return a.MaxY - a.MinY }

// Contains reports whether p lies inside the area, borders included.
func (a Area) Contains(p model.Position) bool {
	return p.X >= a.MinX && p.X <= a.MaxX && p.Y >= a.MinY && p.Y <= a.MaxY
}

// Clamp returns the point of the area closest to p.
func (a Area) Clamp(p model.Position) model.Position {
	if a.Contains(p) {
		return p
	}
	return model.Position{
		X: math.Min(math.Max(p.X, a.MinX), a.MaxX),
		Y: math.Min(math.Max(p.Y, a.MinY), a.MaxY),
	}
}

// RandomPosition draws a uniformly distributed point inside the area.
func (a Area) RandomPosition(rng *rand.Rand) model.Position {
	return model.Position{
		X: a.MinX + rng.Float64()*a.Width(),
		Y: a.MinY + rng.Float64()*a.Height(),
	}
}

// Vec3 is an ECEF-style vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// GeocentricLatLon returns the geocentric latitude and longitude of v in
// degrees. Longitude is in [-180, 180], latitude in [-90, 90].
func (v Vec3) GeocentricLatLon() (lat, lon float64) {
	lon = math.Atan2(v.Y, v.X) * 180 / math.Pi
	lat = math.Atan2(v.Z, math.Hypot(v.X, v.Y)) * 180 / math.Pi
	return lat, lon
}

// ProjectLatLon maps a latitude/longitude pair linearly onto the area:
// longitude -180..180 spans the width and latitude -90..90 the height.
func (a Area) ProjectLatLon(lat, lon float64) model.Position {
	return a.Clamp(model.Position{
		X: a.MinX + (lon+180)/360*a.Width(),
		Y: a.MinY + (lat+90)/180*a.Height(),
	})
}
