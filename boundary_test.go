package orbital

import (
	"errors"
	"math"
	"testing"

	"github.com/gonum/floats"
)

func TestNarrow(t *testing.T) {
	v := NewVector3([]float64{1.0 / 3, -1e300, 1e300})
	if v.X != float32(1.0/3) {
		t.Fatalf("1/3 should round to the nearest float32, got %v", v.X)
	}
	if v.Y != -math.MaxFloat32 || v.Z != math.MaxFloat32 {
		t.Fatalf("out of range values should saturate, got %v %v", v.Y, v.Z)
	}
	special := NewVector3([]float64{math.NaN(), math.Inf(1), math.Inf(-1)})
	if !math.IsNaN(float64(special.X)) || !math.IsInf(float64(special.Y), 1) || !math.IsInf(float64(special.Z), -1) {
		t.Fatalf("NaN and infinities should be kept: %+v", special)
	}
	// Widening is exact.
	w := Vector3{0.1, -2.5, 3}.Float64()
	if w[0] != float64(float32(0.1)) || w[1] != -2.5 || w[2] != 3 {
		t.Fatalf("widening is not exact: %+v", w)
	}
	d := NewDouble3([]float64{1, 2, 3})
	if !floats.Equal(d.Float64(), []float64{1, 2, 3}) {
		t.Fatal("Double3 round trip failed")
	}
}

func TestBoundaryErrors(t *testing.T) {
	it := NewIntegrator(Earth)
	pos, vel := Double3{700, 0, 0}, Double3{0, 0.75, 0}
	err := it.DormandPrinceSingle(&pos, &vel, 100, []Vector3{{0, 0, 0}}, []float32{1, 2}, 10, Vector3{}, 0, 0)
	if !errors.Is(err, ErrBodyMassMismatch) {
		t.Fatalf("expected a mismatch error, got %v", err)
	}
	it.MaxBodies = 2
	bodies := []Vector3{{1, 0, 0}, {2, 0, 0}, {3, 0, 0}}
	masses := []float32{1, 1, 1}
	if err := it.DormandPrinceSingle(&pos, &vel, 100, bodies, masses, 10, Vector3{}, 0, 0); !errors.Is(err, ErrTooManyBodies) {
		t.Fatalf("expected a capacity error, got %v", err)
	}
	p32, v32 := Vector3{700, 0, 0}, Vector3{0, 0.75, 0}
	if err := it.RungeKuttaSingle(&p32, &v32, 100, bodies, masses, 10, Vector3{}, 0, 0); !errors.Is(err, ErrTooManyBodies) {
		t.Fatalf("expected a capacity error, got %v", err)
	}
	if pos != (Double3{700, 0, 0}) || p32 != (Vector3{700, 0, 0}) {
		t.Fatal("state changed on error")
	}
	it.MaxBodies = 0
	if err := it.DormandPrinceSingle(&pos, &vel, 100, bodies, masses, 10, Vector3{}, 0, 0); err != nil {
		t.Fatalf("unbounded capacity should accept any number of bodies: %s", err)
	}
}

func TestDormandPrinceSingle(t *testing.T) {
	it := NewIntegrator(Earth)
	pos, vel := Double3{700, 0, 0}, Double3{0, 0.75, 0}
	bodies := []Vector3{{0, 0, 0}}
	masses := []float32{float32(Earth.Mass)}
	if err := it.DormandPrinceSingle(&pos, &vel, 500, bodies, masses, 10, Vector3{}, 2.2, 0); err != nil {
		t.Fatal(err)
	}
	st := State{R: []float64{700, 0, 0}, V: []float64{0, 0.75, 0}, Mass: 500}
	it.Step(&st, 10, []Body{{R: []float64{0, 0, 0}, Mass: float64(float32(Earth.Mass))}}, []float64{0, 0, 0}, 2.2, 0)
	if !floats.Equal(pos.Float64(), st.R) || !floats.Equal(vel.Float64(), st.V) {
		t.Fatalf("boundary step differs from the core step: %+v vs %+v", pos, st.R)
	}
	if pos.X >= 700 {
		t.Fatal("gravity did not pull the body")
	}
	// Massless bodies are left untouched.
	pos, vel = Double3{700, 0, 0}, Double3{0, 0.75, 0}
	if err := it.DormandPrinceSingle(&pos, &vel, 1e-7, bodies, masses, 10, Vector3{1, 1, 1}, 2.2, 1); err != nil {
		t.Fatal(err)
	}
	if pos != (Double3{700, 0, 0}) || vel != (Double3{0, 0.75, 0}) {
		t.Fatal("massless body moved")
	}
}

func TestRungeKuttaSingle(t *testing.T) {
	it := NewIntegrator(Earth)
	pos, vel := Vector3{700, 0, 0}, Vector3{0, 0.75, 0}
	bodies := []Vector3{{0, 0, 0}}
	masses := []float32{float32(Earth.Mass)}
	if err := it.RungeKuttaSingle(&pos, &vel, 500, bodies, masses, 10, Vector3{}, 2.2, 0); err != nil {
		t.Fatal(err)
	}
	st := State{R: []float64{700, 0, 0}, V: []float64{0, float64(float32(0.75)), 0}, Mass: 500}
	it.StepRK4(&st, 10, []Body{{R: []float64{0, 0, 0}, Mass: float64(float32(Earth.Mass))}}, nil, 2.2, 0)
	if pos != NewVector3(st.R) || vel != NewVector3(st.V) {
		t.Fatalf("single precision step differs from the narrowed core step: %+v vs %+v", pos, st.R)
	}
}
