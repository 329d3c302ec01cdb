package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	orbital "github.com/Brprb08/orbital-control-simulator"
	"github.com/Brprb08/orbital-control-simulator/metrics"
	"github.com/Brprb08/orbital-control-simulator/tools"
	kitlog "github.com/go-kit/kit/log"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/spf13/viper"
)

// Reads a scenario file and propagates the body it describes.

const (
	defaultScenario = "~~unset~~"
)

var (
	scenario    string
	metricsAddr string
	verbose     bool
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "scenario TOML file")
	flag.StringVar(&metricsAddr, "metrics", "", "serve the Prometheus metrics on this address (e.g. :9090)")
	flag.BoolVar(&verbose, "verbose", false, "really verbose (esp. for configuration)")
}

// burn is an impulsive maneuver in the velocity, normal, co-normal frame, in km/s.
type burn struct {
	dt      time.Time
	V, N, C float64
}

func main() {
	flag.Parse()
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	scenario = strings.Replace(scenario, ".toml", "", 1)
	viper.AddConfigPath(".")
	viper.SetConfigName(scenario)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("./%s.toml: Error %s", scenario, err)
	}

	if metricsAddr != "" {
		go func() {
			log.Printf("serving metrics on %s", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, metrics.Handler()); err != nil {
				log.Printf("metrics server: %s", err)
			}
		}()
	}

	// Physical constants
	conf, err := orbital.ConfigFromViper(viper.GetViper())
	if err != nil {
		log.Fatalf("invalid configuration: %s", err)
	}
	it, err := conf.NewIntegrator()
	if err != nil {
		log.Fatalf("could not build integrator: %s", err)
	}
	if verbose {
		it.SetLogger(kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr)))
		log.Printf("[conf] %+v", conf)
	}

	// Mission parameters
	startDT := confReadJDEorTime("mission.start")
	endDT := confReadJDEorTime("mission.end")
	timeStep := viper.GetDuration("mission.step")
	method, err := orbital.MethodFromString(viper.GetString("integrator.method"))
	if err != nil {
		log.Fatal(err)
	}
	if verbose {
		log.Printf("[conf] time step: %s, method: %s\n", timeStep, method)
	}

	// Spacecraft
	scName := viper.GetString("spacecraft.name")
	mass := viper.GetFloat64("spacecraft.mass")
	cd := viper.GetFloat64("spacecraft.cd")
	area := viper.GetFloat64("spacecraft.area")

	// Orbit, in km and degrees
	centralBody := conf.Primary
	if viper.IsSet("orbit.body") {
		if centralBody, err = orbital.CelestialObjectFromString(viper.GetString("orbit.body")); err != nil {
			log.Fatalf("could not understand body: %s", err)
		}
	}
	km := conf.KmPerUnit
	μ := centralBody.GM(conf.G)
	sma, ecc := viper.GetFloat64("orbit.sma"), viper.GetFloat64("orbit.ecc")
	if viper.IsSet("orbit.rA") && viper.IsSet("orbit.rP") {
		rA, rP := viper.GetFloat64("orbit.rA"), viper.GetFloat64("orbit.rP")
		if rA < rP {
			log.Fatalf("orbit.rP (%f km) is above orbit.rA (%f km)", rP, rA)
		}
		sma, ecc = orbital.Radii2ae(rA, rP)
	}
	R, V := orbital.NewOrbitFromOE(sma/km, ecc, viper.GetFloat64("orbit.inc"),
		viper.GetFloat64("orbit.RAAN"), viper.GetFloat64("orbit.argPeri"), viper.GetFloat64("orbit.tAnomaly"), μ)
	bodies := []orbital.Body{{R: []float64{0, 0, 0}, Mass: centralBody.Mass}}

	// Maneuvers
	var burns []burn
	for burnNo := 0; viper.IsSet(fmt.Sprintf("burns.%d", burnNo)); burnNo++ {
		b := burn{dt: confReadJDEorTime(fmt.Sprintf("burns.%d.date", burnNo)),
			V: viper.GetFloat64(fmt.Sprintf("burns.%d.V", burnNo)),
			N: viper.GetFloat64(fmt.Sprintf("burns.%d.N", burnNo)),
			C: viper.GetFloat64(fmt.Sprintf("burns.%d.C", burnNo))}
		if b.dt.After(endDT) || b.dt.Before(startDT) {
			log.Printf("[WARNING] burn scheduled out of propagation time")
		} else if verbose {
			log.Printf("added burn: %+v", b)
		}
		burns = append(burns, b)
	}

	if viper.IsSet("dispersion.samples") {
		runDispersion(it, orbital.State{R: R, V: V, Mass: mass}, bodies, cd, area, timeStep, endDT.Sub(startDT), method, km)
		return
	}

	export := orbital.ExportConfig{Filename: scName, OutputDir: viper.GetString("export.dir"), Cosmo: viper.GetBool("export.cosmo"),
		AsCSV: viper.GetBool("export.csv"), Timestamp: viper.GetBool("export.timestamp"), Every: viper.GetDuration("export.every"),
		Center: centralBody.Name}
	// Tracking stations, appended to the CSV export
	var stations []orbital.Station
	for _, name := range viper.GetStringSlice("stations.builtin") {
		station, err := orbital.BuiltinStationFromName(name)
		if err != nil {
			log.Fatal(err)
		}
		if !station.Primary.Equals(centralBody) {
			log.Fatalf("station %s is not on %s", station.Name, centralBody.Name)
		}
		stations = append(stations, station)
	}
	if len(stations) > 0 {
		export.CSVAppend, export.CSVAppendHdr = orbital.StationsExport(stations)
	}
	st := &orbital.State{R: R, V: V, Mass: mass}
	prop := orbital.NewPropagator(scName, it, st, bodies, centralBody, startDT, endDT, timeStep, method, export)
	prop.Cd, prop.Area = cd, area
	step := timeStep
	if step <= 0 {
		step = orbital.StepSize
	}
	prop.Thrust = func(dt time.Time, st orbital.State) []float64 {
		for _, b := range burns {
			if !b.dt.Before(dt) && b.dt.Before(dt.Add(step)) {
				// Constant acceleration over the step which yields the burn's Δv.
				Δv := orbital.VNC2ECI(st.R, st.V, []float64{b.V / km, b.N / km, b.C / km})
				for i := range Δv {
					Δv[i] *= st.Mass / step.Seconds()
				}
				return Δv
			}
		}
		return nil
	}
	if err := prop.Propagate(); err != nil {
		log.Fatalf("export failed: %s", err)
	}
}

func runDispersion(it *orbital.Integrator, nominal orbital.State, bodies []orbital.Body, cd, area float64, step, duration time.Duration, method orbital.Method, km float64) {
	if step <= 0 {
		step = orbital.StepSize
	}
	d := tools.Dispersion{Nominal: nominal, Bodies: bodies, Cd: cd, Area: area, Integrator: it,
		SigmaR:  viper.GetFloat64("dispersion.sigmaR") / km,
		SigmaV:  viper.GetFloat64("dispersion.sigmaV") / km,
		Samples: viper.GetInt("dispersion.samples"),
		Seed:    viper.GetInt64("dispersion.seed"),
		Step:    step.Seconds(),
		Steps:   int(duration / step),
		UseRK4:  method == orbital.MethodRK4}
	samples, err := d.Run()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("sample,x0_km,y0_km,z0_km,x_km,y_km,z_km")
	for i, s := range samples {
		fmt.Printf("%d,%f,%f,%f,%f,%f,%f\n", i, s.Initial.R[0]*km, s.Initial.R[1]*km, s.Initial.R[2]*km, s.Final.R[0]*km, s.Final.R[1]*km, s.Final.R[2]*km)
	}
}

func confReadJDEorTime(key string) (dt time.Time) {
	jde := viper.GetFloat64(key)
	if jde == 0 {
		dt = viper.GetTime(key)
	} else {
		dt = julian.JDToTime(jde)
	}
	return
}
