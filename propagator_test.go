package orbital

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"testing"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/gonum/floats"
)

func leoState(altitudeKm float64) (*State, []Body) {
	r := (Earth.Radius + altitudeKm) / DefaultKmPerUnit
	v := CircularVelocity(r, Earth.GM(DefaultG))
	return &State{R: []float64{r, 0, 0}, V: []float64{0, v, 0}, Mass: 500}, []Body{{R: []float64{0, 0, 0}, Mass: Earth.Mass}}
}

func TestMethod(t *testing.T) {
	for _, m := range []Method{MethodDormandPrince, MethodRK4} {
		got, err := MethodFromString(m.String())
		if err != nil || got != m {
			t.Fatalf("%s did not round trip", m)
		}
	}
	if m, err := MethodFromString(""); err != nil || m != MethodDormandPrince {
		t.Fatal("Dormand-Prince should be the default method")
	}
	if _, err := MethodFromString("euler"); err == nil {
		t.Fatal("euler is not supported")
	}
	assertPanic(t, func() {
		_ = Method(0).String()
	})
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	st, bodies := leoState(400)
	prop := NewPropagator("default", NewIntegrator(Earth), st, bodies, Earth, start, start.Add(time.Minute), 10*time.Second, 0, ExportConfig{})
	if prop.Method != MethodDormandPrince {
		t.Fatalf("unset method should default to Dormand-Prince, got %d", prop.Method)
	}
}

func TestPropagatorMatchesStepper(t *testing.T) {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	for _, method := range []Method{MethodDormandPrince, MethodRK4} {
		it := NewIntegrator(Earth)
		st, bodies := leoState(400)
		ref := st.Copy()
		prop := NewPropagator("test", it, st, bodies, Earth, start, end, 10*time.Second, method, ExportConfig{})
		prop.SetLogger(kitlog.NewNopLogger())
		prop.Cd, prop.Area = 2.2, 4
		if err := prop.Propagate(); err != nil {
			t.Fatal(err)
		}
		if prop.Steps() != 180 || !prop.CurrentDT.Equal(end) {
			t.Fatalf("%s: expected 180 steps until %s, got %d until %s", method, end, prop.Steps(), prop.CurrentDT)
		}
		for i := 0; i < 180; i++ {
			if method == MethodRK4 {
				it.StepRK4(&ref, 10, bodies, nil, 2.2, 4)
			} else {
				it.Step(&ref, 10, bodies, nil, 2.2, 4)
			}
		}
		if !floats.EqualApprox(st.R, ref.R, 1e-12) || !floats.EqualApprox(st.V, ref.V, 1e-12) {
			t.Fatalf("%s: propagator differs from the stepper:\n%+v\n%+v", method, st.R, ref.R)
		}
		if prop.Collided() {
			t.Fatalf("%s: LEO should not collide", method)
		}
	}
}

func TestPropagatorThrust(t *testing.T) {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	it := NewIntegrator(Earth)
	st, _ := leoState(800)
	// No attractor: only the thrust acts.
	prop := NewPropagator("thrust", it, st, nil, Earth, start, start.Add(time.Minute), 10*time.Second, MethodDormandPrince, ExportConfig{})
	prop.SetLogger(kitlog.NewNopLogger())
	burnDT := start.Add(20 * time.Second)
	prop.Thrust = func(dt time.Time, st State) []float64 {
		if dt.Equal(burnDT) {
			return []float64{0, 50, 0} // 0.1 unit/s^2 for 10 s
		}
		return nil
	}
	v0 := st.V[1]
	if err := prop.Propagate(); err != nil {
		t.Fatal(err)
	}
	if !floats.EqualWithinAbs(st.V[1]-v0, 1, 1e-12) {
		t.Fatalf("burn should add 1 unit/s, got %f", st.V[1]-v0)
	}
}

func TestPropagatorStop(t *testing.T) {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	it := NewIntegrator(Earth)
	st, bodies := leoState(400)
	// An end before the start propagates until stopped.
	prop := NewPropagator("stop", it, st, bodies, Earth, start, start.Add(-time.Hour), 10*time.Second, MethodDormandPrince, ExportConfig{})
	prop.SetLogger(kitlog.NewNopLogger())
	done := make(chan error)
	go func() {
		done <- prop.Propagate()
	}()
	<-time.After(time.Millisecond * 5)
	prop.StopPropagation()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("propagation did not stop")
	}
	if !prop.CurrentDT.Equal(start.Add(time.Duration(prop.Steps()) * 10 * time.Second)) {
		t.Fatal("clock and step count disagree")
	}
}

func TestPropagatorCollision(t *testing.T) {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	it := NewIntegrator(Earth)
	st, bodies := leoState(-10)
	prop := NewPropagator("collision", it, st, bodies, Earth, start, start.Add(time.Minute), 10*time.Second, MethodDormandPrince, ExportConfig{})
	prop.SetLogger(kitlog.NewNopLogger())
	if err := prop.Propagate(); err != nil {
		t.Fatal(err)
	}
	if !prop.Collided() {
		t.Fatal("body below the surface should have collided")
	}
}

func TestPropagatorExport(t *testing.T) {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	it := NewIntegrator(Earth)
	st, bodies := leoState(400)
	conf := ExportConfig{Filename: "leo", OutputDir: t.TempDir(), AsCSV: true, Cosmo: true, Every: time.Minute,
		CSVAppendHdr: func() []string { return []string{"speed_kms"} },
		CSVAppend: func(st MissionState) []string {
			return []string{strconv.FormatFloat(norm(st.VKms), 'f', 6, 64)}
		}}
	prop := NewPropagator("export", it, st, bodies, Earth, start, start.Add(time.Hour), 10*time.Second, MethodRK4, conf)
	prop.SetLogger(kitlog.NewNopLogger())
	if err := prop.Propagate(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(conf.CSVPath())
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comment = '#'
	records, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// Header and one state per minute, both ends included.
	if len(records) != 62 {
		t.Fatalf("expected 62 records, got %d", len(records))
	}
	if len(records[0]) != len(csvHeader)+1 || records[0][len(csvHeader)] != "speed_kms" {
		t.Fatalf("invalid header %+v", records[0])
	}
	first := records[1]
	if first[0] != "2017-01-01T00:00:00Z" {
		t.Fatalf("invalid first date %s", first[0])
	}
	if jd, _ := strconv.ParseFloat(first[1], 64); !floats.EqualWithinAbs(jd, 2457754.5, 1e-8) {
		t.Fatalf("invalid julian date %f", jd)
	}
	for _, record := range records[1:] {
		alt, _ := strconv.ParseFloat(record[9], 64)
		if !floats.EqualWithinAbs(alt, 400, 1) {
			t.Fatalf("circular orbit altitude drifted: %f km", alt)
		}
		speed, _ := strconv.ParseFloat(record[len(csvHeader)], 64)
		if !floats.EqualWithinAbs(speed, 7.67, 0.01) {
			t.Fatalf("unexpected speed %f km/s", speed)
		}
	}

	xyzv, err := os.Open(conf.XYZVPath())
	if err != nil {
		t.Fatal(err)
	}
	defer xyzv.Close()
	states, err := ParseInterpolatedStates(xyzv)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 61 {
		t.Fatalf("expected 61 interpolated states, got %d", len(states))
	}
	if !floats.EqualWithinAbs(norm(states[0].Position), Earth.Radius+400, 1e-3) {
		t.Fatalf("invalid first position %+v", states[0].Position)
	}

	catalog, err := os.ReadFile(conf.path("catalog", "json"))
	if err != nil {
		t.Fatal(err)
	}
	var c CgCatalog
	if err := json.Unmarshal(catalog, &c); err != nil {
		t.Fatal(err)
	}
	if len(c.Items) != 1 || c.Items[0].Center != Earth.Name || c.Items[0].Trajectory.Validate() != nil {
		t.Fatalf("invalid catalog %s", catalog)
	}
}

func TestPropagatorExportShort(t *testing.T) {
	start := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	// Far fewer states than the history buffer holds: the exporter may only start
	// reading once the propagation is over.
	for i := 0; i < 50; i++ {
		st, bodies := leoState(400)
		conf := ExportConfig{Filename: "short", OutputDir: t.TempDir(), AsCSV: true}
		prop := NewPropagator("short", NewIntegrator(Earth), st, bodies, Earth, start, start.Add(10*time.Second), 10*time.Second, MethodDormandPrince, conf)
		prop.SetLogger(kitlog.NewNopLogger())
		done := make(chan error, 1)
		go func() { done <- prop.Propagate() }()
		select {
		case err := <-done:
			if err != nil {
				t.Fatal(err)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("run %d: export never completed", i)
		}
		f, err := os.Open(conf.CSVPath())
		if err != nil {
			t.Fatal(err)
		}
		r := csv.NewReader(f)
		r.Comment = '#'
		records, err := r.ReadAll()
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if len(records) != 3 {
			t.Fatalf("run %d: expected the header and two states, got %d records", i, len(records))
		}
	}
}
