package orbital

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChristopherRabotin/ode"
	kitlog "github.com/go-kit/kit/log"

	"github.com/Brprb08/orbital-control-simulator/metrics"
)

const (
	// StepSize is the default step size of propagation.
	StepSize = 10 * time.Second
	// maxDuration is the hard limit on a propagation without an end date.
	maxDuration = 24 * 3652.5 * time.Hour
)

// Method is the integration scheme used by a Propagator.
type Method uint8

const (
	// MethodDormandPrince uses the fixed step Dormand-Prince 5th order solution.
	MethodDormandPrince Method = iota + 1
	// MethodRK4 uses the classical fourth order Runge-Kutta method.
	MethodRK4
)

func (m Method) String() string {
	switch m {
	case MethodDormandPrince:
		return methodDormandPrince
	case MethodRK4:
		return methodRK4
	}
	panic("cannot stringify unknown integration method")
}

// MethodFromString returns the method from its name.
func MethodFromString(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "dopri5", "dopri", "dormand-prince", "":
		return MethodDormandPrince, nil
	case "rk4":
		return MethodRK4, nil
	default:
		return 0, fmt.Errorf("unknown integration method '%s'", name)
	}
}

// ThrustFunc returns the thrust impulse of the step starting at dt. It may return nil.
type ThrustFunc func(dt time.Time, st State) []float64

// Propagator drives an Integrator over many ticks of a fixed duration, as the engine
// loop would. The attractors are fixed for the whole propagation.
type Propagator struct {
	Name                       string
	Integrator                 *Integrator
	State                      *State // As pointer because the state changes during propagation.
	Bodies                     []Body
	Primary                    CelestialObject
	Cd, Area                   float64 // Drag coefficient and area in m^2
	Thrust                     ThrustFunc
	Method                     Method
	StartDT, StopDT, CurrentDT time.Time
	step                       time.Duration
	steps                      uint64
	stopChan                   chan bool
	histChan                   chan MissionState
	wg                         sync.WaitGroup
	exportErr                  error
	forces                     *forces // frozen force model of the current RK4 step
	collided                   bool
	statusDue                  atomic.Bool // set by the status ticker, logged by the propagation loop
	logger                     kitlog.Logger
}

// NewPropagator returns a new Propagator. If the export configuration is useless, no output is written.
func NewPropagator(name string, it *Integrator, st *State, bodies []Body, primary CelestialObject, start, end time.Time, step time.Duration, method Method, conf ExportConfig) *Propagator {
	if start.Location() != time.UTC {
		start = start.UTC()
	}
	if end.Location() != time.UTC {
		end = end.UTC()
	}
	if step <= 0 {
		step = StepSize
	}
	if method == 0 {
		method = MethodDormandPrince
	}
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	p := &Propagator{Name: name, Integrator: it, State: st, Bodies: bodies, Primary: primary, Method: method,
		StartDT: start, StopDT: end, CurrentDT: start, step: step, stopChan: make(chan bool, 1),
		logger: kitlog.With(klog, "propagator", name)}
	if !conf.IsUseless() {
		histChan := make(chan MissionState, 1000) // a 1k entry buffer
		p.histChan = histChan
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.exportErr = StreamStates(conf, histChan)
		}()
		p.histChan <- p.missionState()
	}
	if end.Before(start) {
		p.logger.Log("level", "warning", "subsys", "astro", "message", "no end date")
	}
	return p
}

// SetLogger replaces the logger of the propagator.
func (p *Propagator) SetLogger(logger kitlog.Logger) {
	p.logger = kitlog.With(logger, "propagator", p.Name)
}

// Steps returns the number of steps taken so far.
func (p *Propagator) Steps() uint64 {
	return p.steps
}

// LogStatus logs the status of the propagation.
func (p *Propagator) LogStatus() {
	p.logger.Log("level", "info", "subsys", "astro", "date", p.CurrentDT, "steps", p.steps, "altitude(km)", p.altitude(), "mass(kg)", p.State.Mass)
}

// PropagateUntil propagates until the given time is reached.
func (p *Propagator) PropagateUntil(dt time.Time) error {
	p.StopDT = dt
	return p.Propagate()
}

// Propagate runs the propagation until the stop date or a call to StopPropagation. It
// returns once all the states have been exported.
func (p *Propagator) Propagate() error {
	p.LogStatus()
	done := make(chan struct{})
	ticker := time.NewTicker(10 * time.Second)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p.statusDue.Store(true)
			}
		}
	}()
	start := p.State.Copy()
	switch p.Method {
	case MethodRK4:
		ode.NewRK4(0, p.step.Seconds(), p).Solve() // Blocking.
	default:
		for !p.Stop(0) {
			p.Integrator.Step(p.State, p.step.Seconds(), p.Bodies, p.thrust(), p.Cd, p.Area)
			p.advance()
		}
	}
	ticker.Stop()
	close(done)
	duration := p.CurrentDT.Sub(p.StartDT)
	durStr := duration.String()
	if duration.Hours() > 24 {
		durStr += fmt.Sprintf(" (~%.3fd)", duration.Hours()/24)
	}
	p.logger.Log("level", "notice", "subsys", "astro", "status", "finished", "method", p.Method, "duration", durStr, "Δv(km/s)", math.Abs(norm(p.State.V)-norm(start.V))*p.Integrator.Drag.KmPerUnit)
	p.LogStatus()
	if p.histChan != nil {
		close(p.histChan)
		p.histChan = nil
	}
	p.wg.Wait() // Don't return until we're done writing all the files.
	return p.exportErr
}

// StopPropagation is used to stop the propagation before it is completed.
func (p *Propagator) StopPropagation() {
	select {
	case p.stopChan <- true:
	default:
	}
}

// Stop implements the ode.Integrable interface and is called before every step.
func (p *Propagator) Stop(t float64) bool {
	select {
	case <-p.stopChan:
		return true
	default:
	}
	if p.StopDT.Before(p.StartDT) {
		if p.CurrentDT.Sub(p.StartDT) >= maxDuration {
			p.logger.Log("level", "critical", "subsys", "astro", "status", "killed")
			return true
		}
	} else if !p.CurrentDT.Before(p.StopDT) {
		return true
	}
	if p.Method == MethodRK4 {
		p.forces = nil
		if p.State.Mass > p.Integrator.MinMass {
			p.forces = p.Integrator.newForces(p.State.Mass, p.Bodies, p.thrust(), p.Cd, p.Area)
		}
	}
	return false
}

// GetState implements the ode.Integrable interface.
func (p *Propagator) GetState() []float64 {
	s := make([]float64, 6)
	copy(s[:3], p.State.R)
	copy(s[3:], p.State.V)
	return s
}

// SetState implements the ode.Integrable interface.
func (p *Propagator) SetState(t float64, s []float64) {
	if p.forces == nil {
		metrics.ObserveSkip(methodRK4)
	} else {
		copy(p.State.R, s[:3])
		copy(p.State.V, s[3:6])
		p.forces.observe(methodRK4)
	}
	p.advance()
}

// Func implements the ode.Integrable interface.
func (p *Propagator) Func(t float64, f []float64) []float64 {
	if p.forces == nil {
		// Massless body, nothing moves.
		return make([]float64, 6)
	}
	rDot, vDot := p.forces.derivative(f[:3], f[3:6])
	fDot := append(rDot, vDot...)
	for i, v := range fDot {
		if math.IsNaN(v) {
			panic(fmt.Errorf("fDot[%d]=NaN @ dt=%s\nR=%+v\tV=%+v", i, p.CurrentDT, p.State.R, p.State.V))
		}
	}
	return fDot
}

func (p *Propagator) thrust() []float64 {
	if p.Thrust == nil {
		return nil
	}
	return p.Thrust(p.CurrentDT, *p.State)
}

func (p *Propagator) primaryR() []float64 {
	if len(p.Bodies) > 0 {
		return p.Bodies[0].R
	}
	return []float64{0, 0, 0}
}

func (p *Propagator) altitude() float64 {
	return norm(sub(p.State.R, p.primaryR()))*p.Integrator.Drag.KmPerUnit - p.Primary.Radius
}

// advance moves the clock by one step, checks the state and records it.
func (p *Propagator) advance() {
	p.CurrentDT = p.CurrentDT.Add(p.step)
	p.steps++
	altitude := p.altitude()
	if !p.collided && altitude < 0 {
		p.collided = true
		p.logger.Log("level", "critical", "subsys", "astro", "collided", p.Primary.Name, "dt", p.CurrentDT, "altitude(km)", altitude)
	} else if p.collided && altitude > p.Primary.Radius*0.1 {
		// Now further from the 10% dead zone
		p.collided = false
		p.logger.Log("level", "critical", "subsys", "astro", "revived", p.Primary.Name, "dt", p.CurrentDT)
	}
	if p.statusDue.Swap(false) {
		p.LogStatus()
	}
	if p.histChan != nil {
		p.histChan <- p.missionState()
	}
}

// Collided returns whether the body is currently below the surface of the primary.
func (p *Propagator) Collided() bool {
	return p.collided
}

func (p *Propagator) missionState() MissionState {
	km := p.Integrator.Drag.KmPerUnit
	rel := scaled(km, sub(p.State.R, p.primaryR()))
	elapsed := p.CurrentDT.Sub(p.StartDT)
	return MissionState{
		DT:       p.CurrentDT,
		Elapsed:  elapsed,
		State:    p.State.Copy(),
		RKm:      rel,
		VKms:     scaled(km, p.State.V),
		ECEF:     ECI2ECEF(rel, p.Primary.RotationRate*elapsed.Seconds()),
		Altitude: norm(rel) - p.Primary.Radius,
	}
}

// MissionState is one exported point of a propagation.
type MissionState struct {
	DT       time.Time
	Elapsed  time.Duration
	State    State     // Simulation units
	RKm      []float64 // Position relative to the primary in km
	VKms     []float64 // Velocity in km/s
	ECEF     []float64 // Position in the primary's rotating frame in km
	Altitude float64   // km
}
