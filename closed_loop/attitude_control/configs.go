package control

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig wraps every validation failure from Config.Validate.
var ErrInvalidConfig = errors.New("invalid controller config")

// Gains holds the proportional gains of the stabilization loop.
type Gains struct {
	VerticalThrust float64 `yaml:"vertical_thrust"` // rad/s, motor velocity that roughly lifts the airframe
	VerticalOffset float64 `yaml:"vertical_offset"` // m, bias added to the altitude error before clamping
	VerticalP      float64 `yaml:"vertical_p"`      // rad/s per m^3 of clamped error
	RollP          float64 `yaml:"roll_p"`          // rad/s per rad
	PitchP         float64 `yaml:"pitch_p"`         // rad/s per rad
}

// GimbalConfig holds the camera damper gains.
type GimbalConfig struct {
	RollGain  float64 `yaml:"roll_gain"`  // rad per rad/s of roll rate
	PitchGain float64 `yaml:"pitch_gain"` // rad per rad/s of pitch rate
	Limit     float64 `yaml:"limit"`      // rad, symmetric travel limit
}

// Limits are the optional clamps the stabilization loop does not apply by
// default. Zero disables a limit.
type Limits struct {
	AttitudeClamp    float64 `yaml:"attitude_clamp"`     // rad, roll/pitch saturation before gain
	AltitudeErrClamp float64 `yaml:"altitude_err_clamp"` // m, altitude error saturation
	MaxMotorVelocity float64 `yaml:"max_motor_velocity"` // rad/s, 0 = unbounded
	MinTargetAlt     float64 `yaml:"min_target_altitude"`
	MaxTargetAlt     float64 `yaml:"max_target_altitude"` // both zero = unbounded
}

// TimingConfig covers the phases around the control loop.
type TimingConfig struct {
	PreflightDelayS    float64 `yaml:"preflight_delay_s"` // simulated seconds before control starts
	StandbyVelocity    float64 `yaml:"standby_velocity"`  // rad/s on every motor during preflight
	LandingAltitude    float64 `yaml:"landing_altitude"`  // m, RUNNING -> LANDED below this
	InitialTargetAlt   float64 `yaml:"initial_target_altitude"`
	TargetAltitudeStep float64 `yaml:"target_altitude_step"` // m per SHIFT+UP / SHIFT+DOWN event
}

// Config is the complete controller configuration. It is loaded once at
// startup and never mutated afterwards.
type Config struct {
	Gains  Gains        `yaml:"gains"`
	Gimbal GimbalConfig `yaml:"gimbal"`
	Limits Limits       `yaml:"limits"`
	Timing TimingConfig `yaml:"timing"`
}

// DefaultConfig returns the tuning flown on the reference airframe.
func DefaultConfig() Config {
	return Config{
		Gains: Gains{
			VerticalThrust: 68.5,
			VerticalOffset: 0.6,
			VerticalP:      3.0,
			RollP:          50.0,
			PitchP:         30.0,
		},
		Gimbal: GimbalConfig{
			RollGain:  0.115,
			PitchGain: 0.1,
			Limit:     0.5,
		},
		Limits: Limits{
			AttitudeClamp:    1.0,
			AltitudeErrClamp: 1.0,
		},
		Timing: TimingConfig{
			PreflightDelayS:    1.0,
			StandbyVelocity:    1.0,
			LandingAltitude:    0.05,
			InitialTargetAlt:   1.0,
			TargetAltitudeStep: 0.05,
		},
	}
}

// LoadConfig overlays a YAML file on DefaultConfig, applies QUAD_* environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var envOverrides = []struct {
	name string
	dst  func(*Config) *float64
}{
	{"QUAD_VERTICAL_THRUST", func(c *Config) *float64 { return &c.Gains.VerticalThrust }},
	{"QUAD_VERTICAL_OFFSET", func(c *Config) *float64 { return &c.Gains.VerticalOffset }},
	{"QUAD_VERTICAL_P", func(c *Config) *float64 { return &c.Gains.VerticalP }},
	{"QUAD_ROLL_P", func(c *Config) *float64 { return &c.Gains.RollP }},
	{"QUAD_PITCH_P", func(c *Config) *float64 { return &c.Gains.PitchP }},
	{"QUAD_MAX_MOTOR_VELOCITY", func(c *Config) *float64 { return &c.Limits.MaxMotorVelocity }},
	{"QUAD_PREFLIGHT_DELAY_S", func(c *Config) *float64 { return &c.Timing.PreflightDelayS }},
}

func applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		raw, ok := os.LookupEnv(o.name)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, o.name, raw, err)
		}
		*o.dst(cfg) = v
	}
	return nil
}

// Validate checks units and ranges of every field.
func (c Config) Validate() error {
	checks := []struct {
		name string
		v    float64
		ok   bool
	}{
		{"gains.vertical_thrust", c.Gains.VerticalThrust, c.Gains.VerticalThrust > 0},
		{"gains.vertical_offset", c.Gains.VerticalOffset, true},
		{"gains.vertical_p", c.Gains.VerticalP, c.Gains.VerticalP >= 0},
		{"gains.roll_p", c.Gains.RollP, c.Gains.RollP >= 0},
		{"gains.pitch_p", c.Gains.PitchP, c.Gains.PitchP >= 0},
		{"gimbal.roll_gain", c.Gimbal.RollGain, c.Gimbal.RollGain >= 0},
		{"gimbal.pitch_gain", c.Gimbal.PitchGain, c.Gimbal.PitchGain >= 0},
		{"gimbal.limit", c.Gimbal.Limit, c.Gimbal.Limit > 0},
		{"limits.attitude_clamp", c.Limits.AttitudeClamp, c.Limits.AttitudeClamp > 0},
		{"limits.altitude_err_clamp", c.Limits.AltitudeErrClamp, c.Limits.AltitudeErrClamp > 0},
		{"limits.max_motor_velocity", c.Limits.MaxMotorVelocity, c.Limits.MaxMotorVelocity >= 0},
		{"timing.preflight_delay_s", c.Timing.PreflightDelayS, c.Timing.PreflightDelayS >= 0},
		{"timing.standby_velocity", c.Timing.StandbyVelocity, c.Timing.StandbyVelocity >= 0},
		{"timing.landing_altitude", c.Timing.LandingAltitude, true},
		{"timing.initial_target_altitude", c.Timing.InitialTargetAlt, true},
		{"timing.target_altitude_step", c.Timing.TargetAltitudeStep, c.Timing.TargetAltitudeStep > 0},
	}
	for _, ch := range checks {
		if math.IsNaN(ch.v) || math.IsInf(ch.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidConfig, ch.name)
		}
		if !ch.ok {
			return fmt.Errorf("%w: %s out of range: %g", ErrInvalidConfig, ch.name, ch.v)
		}
	}

	if c.Limits.targetClamped() {
		if c.Limits.MinTargetAlt >= c.Limits.MaxTargetAlt {
			return fmt.Errorf("%w: target altitude bounds [%g, %g] are empty",
				ErrInvalidConfig, c.Limits.MinTargetAlt, c.Limits.MaxTargetAlt)
		}
		if c.Timing.InitialTargetAlt < c.Limits.MinTargetAlt || c.Timing.InitialTargetAlt > c.Limits.MaxTargetAlt {
			return fmt.Errorf("%w: initial target altitude %g outside [%g, %g]",
				ErrInvalidConfig, c.Timing.InitialTargetAlt, c.Limits.MinTargetAlt, c.Limits.MaxTargetAlt)
		}
	}
	return nil
}

func (l Limits) targetClamped() bool {
	return l.MinTargetAlt != 0 || l.MaxTargetAlt != 0
}
