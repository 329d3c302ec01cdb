package orbital

import (
	"fmt"

	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/floats"

	"github.com/Brprb08/orbital-control-simulator/metrics"
)

const (
	// DefaultMinMass is the mass at or below which a body is not propagated.
	DefaultMinMass = 1e-6
	// DefaultMaxBodies is the number of attractors accepted at the single precision boundary.
	DefaultMaxBodies = 256

	methodDormandPrince = "dopri5"
	methodRK4           = "rk4"
	dpStages            = 7
)

// Dormand-Prince 5(4) tableau.
var (
	dpC = [dpStages]float64{0, 1 / 5.0, 3 / 10.0, 4 / 5.0, 8 / 9.0, 1, 1}
	dpA = [dpStages][dpStages - 1]float64{
		{},
		{1 / 5.0},
		{3 / 40.0, 9 / 40.0},
		{44 / 45.0, -56 / 15.0, 32 / 9.0},
		{19372 / 6561.0, -25360 / 2187.0, 64448 / 6561.0, -212 / 729.0},
		{9017 / 3168.0, -355 / 33.0, 46732 / 5247.0, 49 / 176.0, -5103 / 18656.0},
		{35 / 384.0, 0, 500 / 1113.0, 125 / 192.0, -2187 / 6784.0, 11 / 84.0},
	}
	// 5th order weights.
	dpB = [dpStages]float64{35 / 384.0, 0, 500 / 1113.0, 125 / 192.0, -2187 / 6784.0, 11 / 84.0, 0}
	// Embedded 4th order weights, only used for the error estimate.
	dpB4 = [dpStages]float64{5179 / 57600.0, 0, 7571 / 16695.0, 393 / 640.0, -92097 / 339200.0, 187 / 2100.0, 1 / 40.0}
)

// State is the propagated body. R and V are in simulation units and must have three components.
type State struct {
	R    []float64
	V    []float64
	Mass float64 // kg
}

// Copy returns a deep copy of the state.
func (s State) Copy() State {
	return State{append([]float64(nil), s.R...), append([]float64(nil), s.V...), s.Mass}
}

// Integrator advances a single body by one fixed step under gravity, drag and thrust.
// It holds no per step state and may be shared between goroutines as long as each
// goroutine propagates its own State.
type Integrator struct {
	Gravity   Gravity
	Drag      Drag
	MinMass   float64
	MaxBodies int // Capacity enforced at the single precision boundary, <= 0 is unbounded
	logger    kitlog.Logger
}

// NewIntegrator returns an integrator with the default constants around the provided primary.
func NewIntegrator(primary CelestialObject) *Integrator {
	return &Integrator{NewGravity(), NewDrag(primary), DefaultMinMass, DefaultMaxBodies, kitlog.NewNopLogger()}
}

// SetLogger sets the logger used for degenerate steps.
func (it *Integrator) SetLogger(logger kitlog.Logger) {
	it.logger = kitlog.With(logger, "subsys", "integrator")
}

func (it *Integrator) log() kitlog.Logger {
	if it.logger == nil {
		return kitlog.NewNopLogger()
	}
	return it.logger
}

// forces evaluates the state derivative for one step. Bodies, thrust and drag
// parameters are frozen for the step.
type forces struct {
	it                             *Integrator
	bodies                         []Body
	primary                        []float64
	thrustAcc                      []float64
	mass, cd, area                 float64
	gravitySkipped, gravityClamped int
	drag                           [dragNoBody + 1]int
}

func (it *Integrator) newForces(mass float64, bodies []Body, thrustImpulse []float64, cd, area float64) *forces {
	f := &forces{it: it, bodies: bodies, mass: mass, cd: cd, area: area, primary: []float64{0, 0, 0}}
	if len(bodies) > 0 {
		f.primary = bodies[0].R
	}
	f.thrustAcc = make([]float64, 3)
	switch len(thrustImpulse) {
	case 0:
	case 3:
		f.thrustAcc = scaled(1/mass, thrustImpulse)
	default:
		it.log().Log("level", "debug", "status", "thrust ignored", "components", len(thrustImpulse))
	}
	return f
}

// derivative returns dR/dt and dV/dt at (R, V).
func (f *forces) derivative(R, V []float64) (rDot, vDot []float64) {
	rDot = append([]float64(nil), V...)
	vDot = make([]float64, 3)
	skipped, clamped := f.it.Gravity.accumulate(vDot, R, f.bodies)
	f.gravitySkipped += skipped
	f.gravityClamped += clamped
	floats.Add(vDot, f.thrustAcc)
	dragAcc, outcome := f.it.Drag.acceleration(V, sub(R, f.primary), f.mass, f.area, f.cd)
	f.drag[outcome]++
	floats.Add(vDot, dragAcc)
	return
}

func (f *forces) observe(method string) {
	metrics.ObserveStep(method, f.gravitySkipped, f.gravityClamped)
	for outcome, n := range f.drag {
		metrics.ObserveDrag(dragOutcome(outcome).String(), n)
	}
}

// Step advances st by exactly dt seconds with the Dormand-Prince 5th order solution.
// The first body, if any, is the primary used for the drag altitude; otherwise the origin.
// The thrust impulse may be nil. Nothing happens if the mass is at or below MinMass.
func (it *Integrator) Step(st *State, dt float64, bodies []Body, thrustImpulse []float64, cd, area float64) {
	it.StepWithError(st, dt, bodies, thrustImpulse, cd, area)
}

// StepWithError is Step which also returns the norms of the embedded 4th order error
// estimate on the position and velocity. The estimate never changes the step.
func (it *Integrator) StepWithError(st *State, dt float64, bodies []Body, thrustImpulse []float64, cd, area float64) (errR, errV float64) {
	if st.Mass <= it.MinMass {
		it.log().Log("level", "debug", "status", "skipped", "method", methodDormandPrince, "mass", st.Mass)
		metrics.ObserveSkip(methodDormandPrince)
		return 0, 0
	}
	f := it.newForces(st.Mass, bodies, thrustImpulse, cd, area)

	var kx, kv [dpStages][]float64
	kx[0], kv[0] = f.derivative(st.R, st.V)
	for i := 1; i < dpStages; i++ {
		Ri := append([]float64(nil), st.R...)
		Vi := append([]float64(nil), st.V...)
		for j := 0; j < i; j++ {
			floats.AddScaled(Ri, dt*dpA[i][j], kx[j])
			floats.AddScaled(Vi, dt*dpA[i][j], kv[j])
		}
		kx[i], kv[i] = f.derivative(Ri, Vi)
	}

	ΔR, ΔV := make([]float64, 3), make([]float64, 3)
	εR, εV := make([]float64, 3), make([]float64, 3)
	for i := 0; i < dpStages; i++ {
		floats.AddScaled(ΔR, dt*dpB[i], kx[i])
		floats.AddScaled(ΔV, dt*dpB[i], kv[i])
		floats.AddScaled(εR, dt*(dpB[i]-dpB4[i]), kx[i])
		floats.AddScaled(εV, dt*(dpB[i]-dpB4[i]), kv[i])
	}
	floats.Add(st.R, ΔR)
	floats.Add(st.V, ΔV)

	f.observe(methodDormandPrince)
	if !finite(st.R) || !finite(st.V) {
		it.log().Log("level", "critical", "status", "non-finite", "method", methodDormandPrince, "R", fmt.Sprint(st.R), "V", fmt.Sprint(st.V), "dt", dt)
	}
	return norm(εR), norm(εV)
}
