package orbital

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"
	"github.com/gonum/stat/distmv"
)

const (
	r2d = 180 / math.Pi
	d2r = 1 / r2d
)

// Deep space network antennas, with 5 m and 5 mm/s range and range rate noise.
var (
	σρ             = math.Pow(5e-3, 2) // km^2
	σρDot          = math.Pow(5e-6, 2) // (km/s)^2
	DSS34Canberra  = mustStation(NewStation("DSS34Canberra", 0.691750, 0, -35.398333, 148.981944, σρ, σρDot, Earth, 34))
	DSS65Madrid    = mustStation(NewStation("DSS65Madrid", 0.834939, 0, 40.427222, 4.250556, σρ, σρDot, Earth, 65))
	DSS13Goldstone = mustStation(NewStation("DSS13Goldstone", 1.07114904, 0, 35.247164, 243.205, σρ, σρDot, Earth, 13))
)

// Station is a ground station fixed on the primary, which tracks the propagated body.
type Station struct {
	Name                       string
	R, V                       []float64 // position and velocity in the body fixed frame, km and km/s
	LatΦ, Longθ                float64   // these are stored in radians!
	Altitude, Elevation        float64   // km and degrees
	RangeNoise, RangeRateNoise *distmv.Normal
	Primary                    CelestialObject
}

// NewStation returns a new station on the primary. Angles are in degrees, variances in km^2
// and (km/s)^2. The noise is seeded for reproducible measurements.
func NewStation(name string, altitude, elevation, latΦ, longθ, σρ, σρDot float64, primary CelestialObject, seed int64) (Station, error) {
	if σρ <= 0 || σρDot <= 0 {
		return Station{}, errors.New("station noise variances must be positive")
	}
	R := GEO2ECEF(primary.Radius, altitude, latΦ*d2r, longθ*d2r)
	V := cross([]float64{0, 0, primary.RotationRate}, R)
	src := rand.New(rand.NewSource(seed))
	ρNoise, ok := distmv.NewNormal([]float64{0}, mat64.NewSymDense(1, []float64{σρ}), src)
	if !ok {
		return Station{}, errors.New("invalid range noise")
	}
	ρDotNoise, ok := distmv.NewNormal([]float64{0}, mat64.NewSymDense(1, []float64{σρDot}), src)
	if !ok {
		return Station{}, errors.New("invalid range rate noise")
	}
	return Station{name, R, V, latΦ * d2r, longθ * d2r, altitude, elevation, ρNoise, ρDotNoise, primary}, nil
}

func mustStation(s Station, err error) Station {
	if err != nil {
		panic(err)
	}
	return s
}

// BuiltinStationFromName returns one of the deep space network stations.
func BuiltinStationFromName(name string) (Station, error) {
	switch strings.ToLower(name) {
	case "dss13":
		return DSS13Goldstone, nil
	case "dss34":
		return DSS34Canberra, nil
	case "dss65":
		return DSS65Madrid, nil
	default:
		return Station{}, fmt.Errorf("unknown station `%s`", name)
	}
}

// PerformMeasurement returns whether the body is visible, and if so, the measurement.
// θ is the rotation angle of the primary since the inertial and fixed frames were aligned.
func (s Station) PerformMeasurement(θ float64, state MissionState) Measurement {
	rECEF := ECI2ECEF(state.RKm, θ)
	// The fixed frame velocity excludes the rotation of the frame itself.
	vECEF := ECI2ECEF(sub(state.VKms, cross([]float64{0, 0, s.Primary.RotationRate}, state.RKm)), θ)
	ρECEF, ρ, el, az := s.RangeElAz(rECEF)
	ρDot := dot(ρECEF, sub(vECEF, s.V)) / ρ
	m := Measurement{Visible: el >= s.Elevation, TrueRange: ρ, TrueRangeRate: ρDot, Elevation: el, Azimuth: az, State: state, Station: s}
	if m.Visible {
		m.Range = ρ + s.RangeNoise.Rand(nil)[0]
		m.RangeRate = ρDot + s.RangeRateNoise.Rand(nil)[0]
	}
	return m
}

// RangeElAz returns the range vector and norm, the elevation and azimuth (in degrees) of a given body fixed position.
func (s Station) RangeElAz(rECEF []float64) (ρECEF []float64, ρ, el, az float64) {
	ρECEF = sub(rECEF, s.R)
	ρ = norm(ρECEF)
	rSEZ := MxV33(R3(s.Longθ), ρECEF)
	rSEZ = MxV33(R2(math.Pi/2-s.LatΦ), rSEZ)
	el = math.Asin(rSEZ[2]/ρ) * r2d
	az = Rad2deg(math.Atan2(rSEZ[1], -rSEZ[0]))
	return
}

func (s Station) String() string {
	return fmt.Sprintf("%s (%f,%f); alt = %f km; el = %f deg", s.Name, s.LatΦ/d2r, s.Longθ/d2r, s.Altitude, s.Elevation)
}

// Measurement stores a measurement of a station.
type Measurement struct {
	Visible                  bool    // Whether the body was above the elevation mask of the station.
	Range, RangeRate         float64 // Noisy range and range rate, zero when not visible
	TrueRange, TrueRangeRate float64
	Elevation, Azimuth       float64 // degrees
	State                    MissionState
	Station                  Station
}

// CSVHeader returns the CSV columns of a measurement, prefixed with the station name.
func (m Measurement) CSVHeader() []string {
	return []string{m.Station.Name + "_visible", m.Station.Name + "_range_km", m.Station.Name + "_range_rate_kms", m.Station.Name + "_elevation_deg"}
}

// CSV returns the measurement as CSV fields.
func (m Measurement) CSV() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return []string{strconv.FormatBool(m.Visible), f(m.Range), f(m.RangeRate), f(m.Elevation)}
}

func (m Measurement) String() string {
	return fmt.Sprintf("%s@%s", m.Station.Name, m.State.DT)
}

// StationsExport returns the CSV columns and their header for the provided stations,
// to be used as ExportConfig.CSVAppend and ExportConfig.CSVAppendHdr.
func StationsExport(stations []Station) (func(MissionState) []string, func() []string) {
	appendFn := func(st MissionState) []string {
		var fields []string
		for _, s := range stations {
			fields = append(fields, s.PerformMeasurement(s.Primary.RotationRate*st.Elapsed.Seconds(), st).CSV()...)
		}
		return fields
	}
	hdrFn := func() []string {
		var hdr []string
		for _, s := range stations {
			hdr = append(hdr, Measurement{Station: s}.CSVHeader()...)
		}
		return hdr
	}
	return appendFn, hdrFn
}
