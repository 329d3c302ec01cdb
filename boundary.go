package orbital

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrBodyMassMismatch is returned when the body positions and masses differ in length.
	ErrBodyMassMismatch = errors.New("bodies and masses have different lengths")
	// ErrTooManyBodies is returned when more attractors are provided than the integrator accepts.
	ErrTooManyBodies = errors.New("too many bodies")
)

// minMass32 is the single precision massless threshold of the engine boundary.
const minMass32 float32 = 1e-6

// Vector3 is the engine's single precision vector.
type Vector3 struct {
	X, Y, Z float32
}

// Double3 is the engine's double precision vector, used for authoritative positions and velocities.
type Double3 struct {
	X, Y, Z float64
}

// Float64 widens the vector, which is exact.
func (v Vector3) Float64() []float64 {
	return []float64{float64(v.X), float64(v.Y), float64(v.Z)}
}

// Float64 returns the vector as a slice.
func (v Double3) Float64() []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// NewDouble3 returns the Double3 of a three component slice.
func NewDouble3(v []float64) Double3 {
	return Double3{v[0], v[1], v[2]}
}

// NewVector3 narrows a three component slice to single precision.
// Each component is rounded to the nearest float32 (ties to even). Finite values beyond
// the float32 range saturate to ±math.MaxFloat32; NaN and infinities are kept.
func NewVector3(v []float64) Vector3 {
	return Vector3{narrow(v[0]), narrow(v[1]), narrow(v[2])}
}

func narrow(x float64) float32 {
	switch {
	case math.IsNaN(x) || math.IsInf(x, 0):
		return float32(x)
	case x > math.MaxFloat32:
		return math.MaxFloat32
	case x < -math.MaxFloat32:
		return -math.MaxFloat32
	}
	return float32(x)
}

// bodiesFromEngine widens the engine attractors, enforcing the configured capacity.
func (it *Integrator) bodiesFromEngine(positions []Vector3, masses []float32) ([]Body, error) {
	if len(positions) != len(masses) {
		return nil, fmt.Errorf("%w: %d positions, %d masses", ErrBodyMassMismatch, len(positions), len(masses))
	}
	if it.MaxBodies > 0 && len(positions) > it.MaxBodies {
		return nil, fmt.Errorf("%w: %d provided, at most %d", ErrTooManyBodies, len(positions), it.MaxBodies)
	}
	bodies := make([]Body, len(positions))
	for i := range positions {
		bodies[i] = Body{positions[i].Float64(), float64(masses[i])}
	}
	return bodies, nil
}

// DormandPrinceSingle is the engine entry point: it widens the single precision inputs,
// takes one Dormand-Prince step and writes the position and velocity back in place.
// The area is in m^2. A massless body is left untouched and is not an error.
func (it *Integrator) DormandPrinceSingle(position, velocity *Double3, mass float32, bodies []Vector3, masses []float32, dt float32, thrustImpulse Vector3, cd, area float32) error {
	if mass <= minMass32 {
		return nil
	}
	attractors, err := it.bodiesFromEngine(bodies, masses)
	if err != nil {
		return err
	}
	st := State{position.Float64(), velocity.Float64(), float64(mass)}
	it.Step(&st, float64(dt), attractors, thrustImpulse.Float64(), float64(cd), float64(area))
	*position = NewDouble3(st.R)
	*velocity = NewDouble3(st.V)
	return nil
}

// RungeKuttaSingle is the fully single precision engine entry point: the state is widened,
// advanced by one classical RK4 step in double precision and narrowed back with NewVector3.
func (it *Integrator) RungeKuttaSingle(position, velocity *Vector3, mass float32, bodies []Vector3, masses []float32, dt float32, thrustImpulse Vector3, cd, area float32) error {
	if mass <= minMass32 {
		return nil
	}
	attractors, err := it.bodiesFromEngine(bodies, masses)
	if err != nil {
		return err
	}
	st := State{position.Float64(), velocity.Float64(), float64(mass)}
	it.StepRK4(&st, float64(dt), attractors, thrustImpulse.Float64(), float64(cd), float64(area))
	*position = NewVector3(st.R)
	*velocity = NewVector3(st.V)
	return nil
}
