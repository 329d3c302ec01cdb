package orbital

import (
	"math"

	"github.com/gonum/floats"
)

const (
	// DefaultKmPerUnit is the length of one simulation unit in km.
	DefaultKmPerUnit = 10
	// DefaultMinDensity is the density (kg/km^3) under which drag is ignored.
	DefaultMinDensity = 1e-12
	// DefaultMinWindSpeed is the relative wind speed (km/s) under which drag is ignored.
	DefaultMinWindSpeed = 1e-9

	m2ToKm2 = 1e-6
)

type dragOutcome uint8

const (
	dragApplied dragOutcome = iota
	dragNoDensity
	dragNoWind
	dragNoBody
)

func (o dragOutcome) String() string {
	switch o {
	case dragApplied:
		return "applied"
	case dragNoDensity:
		return "negligible_density"
	case dragNoWind:
		return "negligible_wind"
	case dragNoBody:
		return "no_body"
	}
	panic("cannot stringify unknown drag outcome")
}

// Drag is a quadratic drag model in an atmosphere co-rotating with the primary.
type Drag struct {
	Atmosphere      *DensityModel
	KmPerUnit       float64
	PrimaryRadiusKm float64
	RotationRate    float64 // rad/s about the primary's z axis
	MinDensity      float64 // kg/km^3
	MinWindSpeed    float64 // km/s
}

// NewDrag returns a drag model around the provided primary using the standard atmosphere.
func NewDrag(primary CelestialObject) Drag {
	return Drag{StandardAtmosphere(), DefaultKmPerUnit, primary.Radius, primary.RotationRate, DefaultMinDensity, DefaultMinWindSpeed}
}

// Altitude returns the altitude in km above the primary for a position relative to it.
func (d Drag) Altitude(rRel []float64) float64 {
	return math.Max(0, norm(rRel)*d.KmPerUnit-d.PrimaryRadiusKm)
}

// Acceleration returns the drag acceleration in simulation units.
// V and rRel are the velocity and the position relative to the primary, in simulation units.
// The area is in m^2.
func (d Drag) Acceleration(V, rRel []float64, mass, area, cd float64) []float64 {
	acc, _ := d.acceleration(V, rRel, mass, area, cd)
	return acc
}

func (d Drag) acceleration(V, rRel []float64, mass, area, cd float64) ([]float64, dragOutcome) {
	acc := make([]float64, 3)
	if mass <= 0 || area <= 0 || cd <= 0 || d.Atmosphere == nil {
		return acc, dragNoBody
	}
	rKm := scaled(d.KmPerUnit, rRel)
	altitude := math.Max(0, norm(rKm)-d.PrimaryRadiusKm)
	ρ := d.Atmosphere.Density(altitude)
	if ρ < d.MinDensity {
		return acc, dragNoDensity
	}
	// Rigid rotation of the atmosphere: ω ẑ × r.
	vAtm := cross([]float64{0, 0, d.RotationRate}, rKm)
	wind := sub(scaled(d.KmPerUnit, V), vAtm)
	w := norm(wind)
	if w < d.MinWindSpeed {
		return acc, dragNoWind
	}
	floats.AddScaled(acc, -0.5*cd*area*m2ToKm2*ρ*w/mass/d.KmPerUnit, wind)
	return acc, dragApplied
}
