package orbital

import (
	"fmt"
	"math"

	"github.com/ChristopherRabotin/ode"

	"github.com/Brprb08/orbital-control-simulator/metrics"
)

// rk4Tick is an ode.Integrable covering exactly one step of a [R V] state.
type rk4Tick struct {
	f        *forces
	state    []float64
	backward bool
	done     bool
}

// GetState implements the ode.Integrable interface.
func (r *rk4Tick) GetState() []float64 {
	return r.state
}

// SetState implements the ode.Integrable interface.
func (r *rk4Tick) SetState(t float64, s []float64) {
	copy(r.state, s)
	r.done = true
}

// Stop implements the ode.Integrable interface.
func (r *rk4Tick) Stop(t float64) bool {
	return r.done
}

// Func implements the ode.Integrable interface.
func (r *rk4Tick) Func(t float64, s []float64) []float64 {
	rDot, vDot := r.f.derivative(s[:3], s[3:6])
	fDot := append(rDot, vDot...)
	if r.backward {
		// d/d(-t)
		for i := range fDot {
			fDot[i] = -fDot[i]
		}
	}
	return fDot
}

// StepRK4 advances st by dt seconds with the classical fourth order Runge-Kutta method
// and the same force model as Step. Nothing happens if the mass is at or below MinMass
// or if dt is zero.
func (it *Integrator) StepRK4(st *State, dt float64, bodies []Body, thrustImpulse []float64, cd, area float64) {
	if st.Mass <= it.MinMass {
		it.log().Log("level", "debug", "status", "skipped", "method", methodRK4, "mass", st.Mass)
		metrics.ObserveSkip(methodRK4)
		return
	}
	if dt == 0 {
		return
	}
	tick := &rk4Tick{f: it.newForces(st.Mass, bodies, thrustImpulse, cd, area), state: make([]float64, 6), backward: dt < 0}
	copy(tick.state[:3], st.R)
	copy(tick.state[3:], st.V)
	ode.NewRK4(0, math.Abs(dt), tick).Solve() // Blocking.
	copy(st.R, tick.state[:3])
	copy(st.V, tick.state[3:])

	tick.f.observe(methodRK4)
	if !finite(st.R) || !finite(st.V) {
		it.log().Log("level", "critical", "status", "non-finite", "method", methodRK4, "R", fmt.Sprint(st.R), "V", fmt.Sprint(st.V), "dt", dt)
	}
}
