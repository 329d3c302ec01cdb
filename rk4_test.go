package orbital

import (
	"testing"

	"github.com/gonum/floats"
)

func TestRK4MatchesDormandPrince(t *testing.T) {
	it := NewIntegrator(Earth)
	μ := Earth.GM(it.Gravity.G)
	bodies := []Body{{R: []float64{0, 0, 0}, Mass: Earth.Mass}}
	r := 700.0
	v := CircularVelocity(r, μ)
	dp := State{R: []float64{r, 0, 0}, V: []float64{0, v, 0}, Mass: 1000}
	rk := dp.Copy()
	for i := 0; i < 100; i++ {
		it.Step(&dp, 5, bodies, nil, 0, 0)
		it.StepRK4(&rk, 5, bodies, nil, 0, 0)
	}
	if !floats.EqualApprox(dp.R, rk.R, 1e-6) {
		t.Fatalf("RK4 and Dormand-Prince diverged:\n%+v\n%+v", rk.R, dp.R)
	}
	if !floats.EqualApprox(dp.V, rk.V, 1e-8) {
		t.Fatalf("RK4 and Dormand-Prince velocities diverged:\n%+v\n%+v", rk.V, dp.V)
	}
}

func TestRK4Thrust(t *testing.T) {
	it := NewIntegrator(Earth)
	st := State{R: []float64{0, 0, 0}, V: []float64{1, 0, 0}, Mass: 10}
	it.StepRK4(&st, 4, nil, []float64{0, 1, 0}, 0, 0)
	if !floats.EqualApprox(st.R, []float64{4, 0.5 * 0.1 * 16, 0}, 1e-12) {
		t.Fatalf("unexpected position %+v", st.R)
	}
	if !floats.EqualApprox(st.V, []float64{1, 0.4, 0}, 1e-12) {
		t.Fatalf("unexpected velocity %+v", st.V)
	}
}

func TestRK4Backward(t *testing.T) {
	it := NewIntegrator(Earth)
	μ := Earth.GM(it.Gravity.G)
	bodies := []Body{{R: []float64{0, 0, 0}, Mass: Earth.Mass}}
	r := 700.0
	init := State{R: []float64{r, 0, 0}, V: []float64{0, CircularVelocity(r, μ), 0}, Mass: 1000}
	st := init.Copy()
	for i := 0; i < 10; i++ {
		it.StepRK4(&st, 10, bodies, nil, 0, 0)
	}
	for i := 0; i < 10; i++ {
		it.StepRK4(&st, -10, bodies, nil, 0, 0)
	}
	if !floats.EqualApprox(st.R, init.R, 1e-8) || !floats.EqualApprox(st.V, init.V, 1e-10) {
		t.Fatalf("backward propagation did not return to the start: %+v %+v", st.R, st.V)
	}
}

func TestRK4NoOp(t *testing.T) {
	it := NewIntegrator(Earth)
	bodies := []Body{{R: []float64{0, 0, 0}, Mass: Earth.Mass}}
	st := State{R: []float64{700, 0, 0}, V: []float64{0, 0.75, 0}, Mass: 1000}
	it.StepRK4(&st, 0, bodies, nil, 0, 0)
	if !floats.Equal(st.R, []float64{700, 0, 0}) || !floats.Equal(st.V, []float64{0, 0.75, 0}) {
		t.Fatal("a zero step should not change the state")
	}
	st.Mass = 0
	it.StepRK4(&st, 10, bodies, nil, 0, 0)
	if !floats.Equal(st.R, []float64{700, 0, 0}) {
		t.Fatal("a massless body should not move")
	}
}
