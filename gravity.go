package orbital

import (
	"math"

	"github.com/gonum/floats"
)

const (
	// DefaultG is the gravitational constant in simulation units (10 km, kg, s).
	DefaultG = 6.67430e-23
	// DefaultMinDistanceSquared is the squared separation under which an attractor is ignored.
	DefaultMinDistanceSquared = 1e-20
	// DefaultMaxForce caps the per attractor acceleration magnitude.
	DefaultMaxForce = 1e8
)

// Body is a fixed attractor for the duration of one step.
type Body struct {
	R    []float64 // Position in simulation units
	Mass float64   // Mass in kg
}

// Gravity sums the inverse square attraction of fixed bodies.
type Gravity struct {
	G                  float64
	MinDistanceSquared float64
	MaxForce           float64
}

// NewGravity returns the gravity model with the default constants.
func NewGravity() Gravity {
	return Gravity{DefaultG, DefaultMinDistanceSquared, DefaultMaxForce}
}

// Acceleration returns the gravitational acceleration at R due to all bodies.
func (g Gravity) Acceleration(R []float64, bodies []Body) []float64 {
	acc := make([]float64, 3)
	g.accumulate(acc, R, bodies)
	return acc
}

// accumulate adds the acceleration at R into acc, and returns how many attractors were
// skipped as coincident and how many were clamped to MaxForce.
func (g Gravity) accumulate(acc, R []float64, bodies []Body) (skipped, clamped int) {
	d := make([]float64, 3)
	for _, body := range bodies {
		floats.SubTo(d, body.R, R)
		r2 := d[0]*d[0] + d[1]*d[1] + d[2]*d[2]
		if r2 < g.MinDistanceSquared {
			skipped++
			continue
		}
		F := g.G * body.Mass / r2
		if F > g.MaxForce {
			F = g.MaxForce
			clamped++
		}
		floats.AddScaled(acc, F/math.Sqrt(r2), d)
	}
	return
}
