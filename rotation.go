package orbital

import (
	"math"

	"github.com/gonum/matrix/mat64"
)

const (
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

// PQW2ECI converts a given vector from the perifocal frame to the inertial frame.
func PQW2ECI(i, ω, Ω float64, vI []float64) []float64 {
	var iω, Ωiω mat64.Dense
	iω.Mul(R1(-i), R3(-ω))
	Ωiω.Mul(R3(-Ω), &iω)
	return MxV33(&Ωiω, vI)
}

// R1 rotation about the 1st axis.
func R1(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat64.Dense {
	s, c := math.Sincos(x)
	return mat64.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m *mat64.Dense, v []float64) (o []float64) {
	vVec := mat64.NewVector(len(v), v)
	var rVec mat64.Vector
	rVec.MulVec(m, vVec)
	return []float64{rVec.At(0, 0), rVec.At(1, 0), rVec.At(2, 0)}
}

// ECI2ECEF converts the provided inertial vector to the body fixed frame, θ being the
// rotation angle of the body (in radians) since the frames were aligned.
func ECI2ECEF(R []float64, θ float64) []float64 {
	return MxV33(R3(θ), R)
}

// VNC2ECI converts a vector expressed in the velocity, normal, co-normal frame of (R, V)
// to the frame of R and V.
func VNC2ECI(R, V, vnc []float64) []float64 {
	v := unit(V)
	n := unit(cross(R, V))
	c := cross(v, n)
	o := make([]float64, 3)
	for i := 0; i < 3; i++ {
		o[i] = vnc[0]*v[i] + vnc[1]*n[i] + vnc[2]*c[i]
	}
	return o
}

// GEO2ECEF returns the body fixed position (km) of a point at the given altitude (km)
// above a spherical body of the provided radius. Latitude and longitude are in radians.
func GEO2ECEF(radius, altitude, latitude, longitude float64) []float64 {
	sLong, cLong := math.Sincos(longitude)
	sLat, cLat := math.Sincos(latitude)
	r := altitude + radius
	return []float64{r * cLat * cLong, r * cLat * sLong, r * sLat}
}
