package orbital

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	// ErrDensityTable is returned when a density table cannot produce a valid interpolant.
	ErrDensityTable = errors.New("invalid density table")

	standardAtmosphere     *DensityModel
	standardAtmosphereOnce sync.Once
)

// Exponential atmosphere base altitudes (km) and nominal densities (kg/m^3), 0 to 1000 km.
var (
	standardAltitudes = []float64{
		0, 25, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 130, 140, 150, 180, 200,
		250, 300, 350, 400, 450, 500, 600, 700, 800, 900, 1000,
	}
	standardDensities = []float64{
		1.225, 3.899e-2, 1.774e-2, 3.972e-3, 1.057e-3, 3.206e-4, 8.770e-5, 1.905e-5,
		3.396e-6, 5.297e-7, 9.661e-8, 2.438e-8, 8.484e-9, 3.845e-9, 2.070e-9,
		5.464e-10, 2.789e-10, 7.248e-11, 2.418e-11, 9.518e-12, 3.725e-12,
		1.585e-12, 6.967e-13, 1.454e-13, 3.614e-14, 1.170e-14, 5.245e-15, 3.019e-15,
	}
)

// kgPerKm3 converts kg/m^3 to the kg/km^3 used by the drag model.
const kgPerKm3 = 1e9

// DensityModel is a piecewise exponential atmosphere. It is immutable once built and
// may be shared between goroutines.
type DensityModel struct {
	altitudes    []float64 // km, strictly increasing
	densities    []float64 // kg/km^3, non-increasing
	scaleHeights []float64 // km, one per segment
	lowAltKm     float64   // correction applies strictly below this altitude
	lowAltScale  float64
}

// NewDensityModel validates the samples and precomputes the segment scale heights.
func NewDensityModel(altitudesKm, densities []float64) (*DensityModel, error) {
	if len(altitudesKm) != len(densities) {
		return nil, fmt.Errorf("%w: %d altitudes but %d densities", ErrDensityTable, len(altitudesKm), len(densities))
	}
	if len(altitudesKm) < 2 {
		return nil, fmt.Errorf("%w: need at least two samples", ErrDensityTable)
	}
	for i := range altitudesKm {
		if !finite([]float64{altitudesKm[i], densities[i]}) {
			return nil, fmt.Errorf("%w: non finite sample #%d", ErrDensityTable, i)
		}
		if densities[i] <= 0 {
			return nil, fmt.Errorf("%w: density #%d (%g) must be strictly positive", ErrDensityTable, i, densities[i])
		}
		if i == 0 {
			continue
		}
		if altitudesKm[i] <= altitudesKm[i-1] {
			return nil, fmt.Errorf("%w: altitude #%d (%g km) does not increase", ErrDensityTable, i, altitudesKm[i])
		}
		if densities[i] > densities[i-1] {
			return nil, fmt.Errorf("%w: density #%d (%g) increases with altitude", ErrDensityTable, i, densities[i])
		}
	}
	m := &DensityModel{
		altitudes:    append([]float64(nil), altitudesKm...),
		densities:    append([]float64(nil), densities...),
		scaleHeights: make([]float64, len(altitudesKm)-1),
		lowAltScale:  1,
	}
	for i := range m.scaleHeights {
		ratio := m.densities[i+1] / m.densities[i]
		if ratio == 1 {
			// Flat segment: no decay.
			m.scaleHeights[i] = math.Inf(1)
			continue
		}
		m.scaleHeights[i] = -(m.altitudes[i+1] - m.altitudes[i]) / math.Log(ratio)
	}
	return m, nil
}

// StandardAtmosphere returns the shared exponential atmosphere, in kg/km^3.
func StandardAtmosphere() *DensityModel {
	standardAtmosphereOnce.Do(func() {
		densities := make([]float64, len(standardDensities))
		for i, ρ := range standardDensities {
			densities[i] = ρ * kgPerKm3
		}
		m, err := NewDensityModel(standardAltitudes, densities)
		if err != nil {
			panic(fmt.Errorf("standard atmosphere: %s", err))
		}
		standardAtmosphere = m
	})
	return standardAtmosphere
}

// WithLowAltitudeCorrection returns a copy of the model which multiplies the density by
// factor below thresholdKm.
func (m *DensityModel) WithLowAltitudeCorrection(thresholdKm, factor float64) (*DensityModel, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("%w: low altitude factor %g must be positive and finite", ErrDensityTable, factor)
	}
	c := *m
	c.lowAltKm = thresholdKm
	c.lowAltScale = factor
	return &c, nil
}

// Density returns the density at the provided altitude (in km).
// Below the table it is clamped to the first sample and it vanishes at and above the last one,
// as well as for a NaN altitude.
func (m *DensityModel) Density(altitudeKm float64) float64 {
	n := len(m.altitudes)
	var ρ float64
	switch {
	case altitudeKm <= m.altitudes[0]:
		ρ = m.densities[0]
	case !(altitudeKm < m.altitudes[n-1]): // also NaN
		return 0
	default:
		// First sample strictly above, minus one, is the segment base.
		i := sort.Search(n, func(j int) bool { return m.altitudes[j] > altitudeKm }) - 1
		ρ = m.densities[i] * math.Exp(-(altitudeKm-m.altitudes[i])/m.scaleHeights[i])
	}
	if altitudeKm < m.lowAltKm {
		ρ *= m.lowAltScale
	}
	return ρ
}

// Samples returns copies of the altitude (km) and density samples.
func (m *DensityModel) Samples() (altitudesKm, densities []float64) {
	return append([]float64(nil), m.altitudes...), append([]float64(nil), m.densities...)
}

// ScaleHeights returns a copy of the per segment scale heights (km).
func (m *DensityModel) ScaleHeights() []float64 {
	return append([]float64(nil), m.scaleHeights...)
}

// Ceiling returns the altitude at and above which the density is zero.
func (m *DensityModel) Ceiling() float64 {
	return m.altitudes[len(m.altitudes)-1]
}
