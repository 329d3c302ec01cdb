package orbital

import (
	"fmt"
	"strings"
)

// CelestialObject defines a celestial object used as the primary of a simulation.
type CelestialObject struct {
	Name         string
	Radius       float64 // Mean equatorial radius in km
	Mass         float64 // kg
	RotationRate float64 // Sidereal rotation rate in rad/s
}

// GM returns the gravitational parameter for the provided gravitational constant.
func (c CelestialObject) GM(G float64) float64 {
	return G * c.Mass
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// Equals returns whether the provided celestial object is the same.
func (c CelestialObject) Equals(b CelestialObject) bool {
	return c.Name == b.Name && c.Radius == b.Radius && c.Mass == b.Mass && c.RotationRate == b.RotationRate
}

// CelestialObjectFromString returns the object from its name
func CelestialObjectFromString(name string) (CelestialObject, error) {
	switch strings.ToLower(name) {
	case "earth":
		return Earth, nil
	case "moon":
		return Moon, nil
	case "mars":
		return Mars, nil
	case "sun":
		return Sun, nil
	default:
		return CelestialObject{}, fmt.Errorf("undefined body '%s'", name)
	}
}

/* Definitions */

// Sun is our closest star.
var Sun = CelestialObject{"Sun", 695700, 1.98847e30, 2.865e-6}

// Earth is home.
var Earth = CelestialObject{"Earth", 6378.1363, 5.9722e24, EarthRotationRate}

// Moon is tidally locked.
var Moon = CelestialObject{"Moon", 1737.4, 7.342e22, 2.6617e-6}

// Mars is the vacation place.
var Mars = CelestialObject{"Mars", 3396.19, 6.4171e23, 7.088218e-5}
