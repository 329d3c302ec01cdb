package orbital

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ConfigEnv is the environment variable holding the directory of conf.toml.
const ConfigEnv = "ORBITAL_CONFIG"

// Config holds the tunable constants of the propagation kernel.
type Config struct {
	G                  float64 // Gravitational constant in simulation units
	MinDistanceSquared float64 // Attractors closer than this are ignored
	MaxForce           float64 // Per attractor acceleration ceiling
	MinMass            float64 // Bodies at or below this mass are not propagated
	MaxBodies          int     // Attractor capacity at the engine boundary, <= 0 is unbounded
	KmPerUnit          float64 // Length of a simulation unit in km
	Primary            CelestialObject
	MinDensity         float64 // kg/km^3
	MinWindSpeed       float64 // km/s
	LowAltitudeKm      float64 // Density correction threshold, zero disables it
	LowAltitudeScale   float64 // Density correction factor below LowAltitudeKm
}

// DefaultConfig returns the configuration of the reference engine integration.
func DefaultConfig() Config {
	return Config{
		G:                  DefaultG,
		MinDistanceSquared: DefaultMinDistanceSquared,
		MaxForce:           DefaultMaxForce,
		MinMass:            DefaultMinMass,
		MaxBodies:          DefaultMaxBodies,
		KmPerUnit:          DefaultKmPerUnit,
		Primary:            Earth,
		MinDensity:         DefaultMinDensity,
		MinWindSpeed:       DefaultMinWindSpeed,
		LowAltitudeScale:   1,
	}
}

// ConfigFromViper reads the configuration from v; unset keys keep their default value.
func ConfigFromViper(v *viper.Viper) (Config, error) {
	c := DefaultConfig()
	if v.IsSet("primary.body") {
		body, err := CelestialObjectFromString(v.GetString("primary.body"))
		if err != nil {
			return c, err
		}
		c.Primary = body
	}
	setFloat := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	setFloat("gravity.G", &c.G)
	setFloat("gravity.min_distance_sq", &c.MinDistanceSquared)
	setFloat("gravity.max_force", &c.MaxForce)
	setFloat("integrator.min_mass", &c.MinMass)
	setFloat("units.km_per_unit", &c.KmPerUnit)
	setFloat("drag.min_density", &c.MinDensity)
	setFloat("drag.min_wind_speed", &c.MinWindSpeed)
	setFloat("drag.low_altitude_km", &c.LowAltitudeKm)
	setFloat("drag.low_altitude_scale", &c.LowAltitudeScale)
	if v.IsSet("integrator.max_bodies") {
		c.MaxBodies = v.GetInt("integrator.max_bodies")
	}
	return c, c.Validate()
}

// LoadConfig reads the configuration file at path (any format supported by viper).
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return DefaultConfig(), fmt.Errorf("%s: %s", path, err)
	}
	return ConfigFromViper(v)
}

// ConfigFromEnv reads $ORBITAL_CONFIG/conf.toml, or returns the default configuration if
// the variable is unset.
func ConfigFromEnv() (Config, error) {
	confPath := os.Getenv(ConfigEnv)
	if confPath == "" {
		return DefaultConfig(), nil
	}
	v := viper.New()
	v.SetConfigName("conf")
	v.AddConfigPath(confPath)
	if err := v.ReadInConfig(); err != nil {
		return DefaultConfig(), fmt.Errorf("%s/conf.toml not found: %s", confPath, err)
	}
	return ConfigFromViper(v)
}

// Validate checks the constants are usable.
func (c Config) Validate() error {
	switch {
	case c.G <= 0:
		return errors.New("gravity.G must be positive")
	case c.MinDistanceSquared < 0:
		return errors.New("gravity.min_distance_sq cannot be negative")
	case c.MaxForce <= 0:
		return errors.New("gravity.max_force must be positive")
	case c.MinMass < 0:
		return errors.New("integrator.min_mass cannot be negative")
	case c.KmPerUnit <= 0:
		return errors.New("units.km_per_unit must be positive")
	case c.MinDensity < 0 || c.MinWindSpeed < 0:
		return errors.New("drag thresholds cannot be negative")
	case c.LowAltitudeScale <= 0:
		return errors.New("drag.low_altitude_scale must be positive")
	}
	return nil
}

// NewIntegrator builds the integrator described by this configuration, with the standard atmosphere.
func (c Config) NewIntegrator() (*Integrator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	atmosphere := StandardAtmosphere()
	if c.LowAltitudeKm > 0 {
		var err error
		if atmosphere, err = atmosphere.WithLowAltitudeCorrection(c.LowAltitudeKm, c.LowAltitudeScale); err != nil {
			return nil, err
		}
	}
	it := NewIntegrator(c.Primary)
	it.Gravity = Gravity{c.G, c.MinDistanceSquared, c.MaxForce}
	it.Drag = Drag{atmosphere, c.KmPerUnit, c.Primary.Radius, c.Primary.RotationRate, c.MinDensity, c.MinWindSpeed}
	it.MinMass = c.MinMass
	it.MaxBodies = c.MaxBodies
	return it, nil
}
