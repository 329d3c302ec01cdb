package tools

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	orbital "github.com/Brprb08/orbital-control-simulator"
	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
)

// Dispersion describes a Monte Carlo run: the nominal state is perturbed by Gaussian
// noise on the position and velocity, and each sample is propagated independently.
type Dispersion struct {
	Nominal    orbital.State
	SigmaR     float64 // Position standard deviation in simulation units
	SigmaV     float64 // Velocity standard deviation in simulation units per second
	Bodies     []orbital.Body
	Cd, Area   float64
	Step       float64 // s
	Steps      int
	Samples    int
	Seed       int64
	Workers    int // Defaults to GOMAXPROCS
	UseRK4     bool
	Integrator *orbital.Integrator
}

// Sample is one propagated dispersion.
type Sample struct {
	Initial, Final orbital.State
}

// Run samples and propagates all the dispersions. The returned samples are in the
// order they were drawn, hence reproducible for a given seed.
func (d Dispersion) Run() ([]Sample, error) {
	if d.Integrator == nil {
		return nil, errors.New("dispersion requires an integrator")
	}
	if d.Samples <= 0 || d.Steps < 0 {
		return nil, fmt.Errorf("invalid dispersion: %d samples of %d steps", d.Samples, d.Steps)
	}
	if d.SigmaR < 0 || d.SigmaV < 0 {
		return nil, errors.New("standard deviations cannot be negative")
	}
	// Unit normal draws scaled per component, so that a zero deviation stays valid.
	cov := mat64.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		cov.SetSym(i, i, 1)
	}
	noise, ok := distmv.NewNormal(make([]float64, 6), cov, rand.New(rand.NewSource(d.Seed)))
	if !ok {
		return nil, errors.New("dispersion covariance is not positive definite")
	}
	samples := make([]Sample, d.Samples)
	for i := range samples {
		draw := noise.Rand(nil)
		st := d.Nominal.Copy()
		floats.AddScaled(st.R, d.SigmaR, draw[:3])
		floats.AddScaled(st.V, d.SigmaV, draw[3:])
		samples[i].Initial = st
	}

	workers := d.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				st := samples[i].Initial.Copy()
				for s := 0; s < d.Steps; s++ {
					if d.UseRK4 {
						d.Integrator.StepRK4(&st, d.Step, d.Bodies, nil, d.Cd, d.Area)
					} else {
						d.Integrator.Step(&st, d.Step, d.Bodies, nil, d.Cd, d.Area)
					}
				}
				samples[i].Final = st
			}
		}()
	}
	for i := range samples {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return samples, nil
}
