package orbital

import (
	"fmt"
	"math"
	"time"
)

const (
	eccentricityε = 5e-5
	angleε        = (5e-3 / 360) * (2 * math.Pi) // 0.005 degrees
)

// NewOrbitFromOE returns the position (km) and velocity (km/s) of the provided orbital
// elements about a body of gravitational parameter μ (km^3/s^2).
// WARNING: Angles must be in degrees not radian.
func NewOrbitFromOE(a, e, i, Ω, ω, ν, μ float64) (R, V []float64) {
	if e >= 1 {
		panic(fmt.Errorf("only elliptical orbits are supported, e=%f", e))
	}
	i, Ω, ω, ν = Deg2rad(i), Deg2rad(Ω), Deg2rad(ω), Deg2rad(ν)
	// Special orbits: the argument of periapsis is undefined when circular, and the RAAN
	// when equatorial. The angles are folded into ν so that the position is still correct.
	if e < eccentricityε {
		ν += ω
		ω = 0
	}
	if i < angleε {
		ω += Ω
		Ω = 0
	}
	p := a * (1 - e*e)
	sinν, cosν := math.Sincos(ν)
	R = PQW2ECI(i, ω, Ω, []float64{p * cosν / (1 + e*cosν), p * sinν / (1 + e*cosν), 0})
	V = PQW2ECI(i, ω, Ω, []float64{-math.Sqrt(μ/p) * sinν, math.Sqrt(μ/p) * (e + cosν), 0})
	return
}

// CircularVelocity returns the speed of a circular orbit of radius r about μ.
func CircularVelocity(r, μ float64) float64 {
	return math.Sqrt(μ / r)
}

// OrbitalPeriod returns the period of an orbit of semi major axis a about μ.
func OrbitalPeriod(a, μ float64) time.Duration {
	return time.Duration(2 * math.Pi * math.Sqrt(math.Pow(a, 3)/μ) * float64(time.Second))
}

// SpecificEnergy returns the specific mechanical energy ξ of (R, V) about μ.
func SpecificEnergy(R, V []float64, μ float64) float64 {
	v := norm(V)
	return v*v/2 - μ/norm(R)
}

// Radii2ae returns the semi major axis and the eccentricty from the radii.
func Radii2ae(rA, rP float64) (a, e float64) {
	if rA < rP {
		panic("periapsis cannot be greater than apoapsis")
	}
	a = (rP + rA) / 2
	e = (rA - rP) / (rA + rP)
	return
}
