package main

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	control "quad-stabilizer-core/closed_loop/attitude_control"
)

// PlantConfig describes the rigid-body quad used by the headless simulation.
// Rotor thrust is proportional to the square of the commanded velocity and
// calibrated so that HoverVelocity on every rotor exactly balances gravity.
type PlantConfig struct {
	MassKg         float64   `json:"mass_kg"`
	GravityMPS2    float64   `json:"gravity_mps2"`
	HoverVelocity  float64   `json:"hover_velocity"`   // rad/s per rotor at equilibrium
	ArmM           float64   `json:"arm_m"`            // rotor lever arm about roll and pitch axes
	InertiaKgM2    r3.Vector `json:"inertia_kgm2"`     // roll, pitch, yaw
	YawTorqueCoeff float64   `json:"yaw_torque_coeff"` // N*m per (rad/s)^2 of rotor drag imbalance
	LinearDrag     float64   `json:"linear_drag"`      // 1/s
	AngularDrag    float64   `json:"angular_drag"`     // 1/s
	GPSHeightM     float64   `json:"gps_height_m"`     // antenna height above the skids
}

// DefaultPlant approximates a 0.9 kg folding quad whose hover point matches
// the default controller tuning at zero altitude error.
func DefaultPlant() PlantConfig {
	return PlantConfig{
		MassKg:         0.9,
		GravityMPS2:    9.81,
		HoverVelocity:  69.148,
		ArmM:           0.15,
		InertiaKgM2:    r3.Vector{X: 0.01, Y: 0.01, Z: 0.02},
		YawTorqueCoeff: 1e-6,
		LinearDrag:     1.0,
		AngularDrag:    2.0,
		GPSHeightM:     0.06,
	}
}

func (c PlantConfig) Validate() error {
	switch {
	case c.MassKg <= 0:
		return fmt.Errorf("mass_kg must be positive")
	case c.GravityMPS2 <= 0:
		return fmt.Errorf("gravity_mps2 must be positive")
	case c.HoverVelocity <= 0:
		return fmt.Errorf("hover_velocity must be positive")
	case c.ArmM <= 0:
		return fmt.Errorf("arm_m must be positive")
	case c.InertiaKgM2.X <= 0 || c.InertiaKgM2.Y <= 0 || c.InertiaKgM2.Z <= 0:
		return fmt.Errorf("inertia_kgm2 components must be positive")
	case c.LinearDrag < 0 || c.AngularDrag < 0:
		return fmt.Errorf("drag must be non-negative")
	}
	return nil
}

// Plant is a minimal quad model standing in for the simulator host. It is
// both the sensor source and the actuator sink of the control loop.
type Plant struct {
	cfg    PlantConfig
	thrust float64 // N per (rad/s)^2

	pos, vel    r3.Vector // world frame, z up
	att, rates  r3.Vector // roll, pitch, yaw and their rates
	motors      control.MotorCommandSet
	gimbal      control.GimbalCommand
	leds        control.LEDState
	motorWrites int
	lastWriteAt float64
	clock       float64
}

func NewPlant(cfg PlantConfig, init InitialConditions) *Plant {
	return &Plant{
		cfg:    cfg,
		thrust: cfg.MassKg * cfg.GravityMPS2 / (4 * cfg.HoverVelocity * cfg.HoverVelocity),
		pos:    r3.Vector{Z: math.Max(0, init.AltitudeM)},
		att:    r3.Vector{X: init.RollRad, Y: init.PitchRad},
	}
}

func (p *Plant) ReadSensors(context.Context) (control.SensorSnapshot, error) {
	return control.SensorSnapshot{
		Orientation:     p.att,
		Position:        p.pos.Add(r3.Vector{Z: p.cfg.GPSHeightM}),
		AngularVelocity: p.rates,
	}, nil
}

func (p *Plant) SetMotorVelocities(_ context.Context, m control.MotorCommandSet) error {
	p.motors = m
	p.motorWrites++
	p.lastWriteAt = p.clock
	return nil
}

func (p *Plant) SetGimbal(_ context.Context, g control.GimbalCommand) error {
	p.gimbal = g
	return nil
}

func (p *Plant) SetLEDs(_ context.Context, l control.LEDState) error {
	p.leds = l
	return nil
}

// Altitude is the true height of the skids above ground.
func (p *Plant) Altitude() float64 { return p.pos.Z }

// Advance integrates the model over dt with the last motor command
// (semi-implicit Euler).
func (p *Plant) Advance(dt float64) {
	m := p.motors
	fl := p.thrust * m.FrontLeft * m.FrontLeft
	fr := p.thrust * m.FrontRight * m.FrontRight
	rl := p.thrust * m.RearLeft * m.RearLeft
	rr := p.thrust * m.RearRight * m.RearRight
	total := fl + fr + rl + rr

	// Signed velocities carry the spin direction, so the reaction torque is
	// the imbalance of v*|v| across the four rotors.
	spin := m.FrontLeft*math.Abs(m.FrontLeft) + m.FrontRight*math.Abs(m.FrontRight) +
		m.RearLeft*math.Abs(m.RearLeft) + m.RearRight*math.Abs(m.RearRight)

	torque := r3.Vector{
		X: -p.cfg.ArmM * ((fr + rr) - (fl + rl)),
		Y: -p.cfg.ArmM * ((fl + fr) - (rl + rr)),
		Z: -p.cfg.YawTorqueCoeff * spin,
	}
	angAcc := r3.Vector{
		X: torque.X/p.cfg.InertiaKgM2.X - p.cfg.AngularDrag*p.rates.X,
		Y: torque.Y/p.cfg.InertiaKgM2.Y - p.cfg.AngularDrag*p.rates.Y,
		Z: torque.Z/p.cfg.InertiaKgM2.Z - p.cfg.AngularDrag*p.rates.Z,
	}

	roll, pitch, yaw := p.att.X, p.att.Y, p.att.Z
	// Body thrust tilted into the world frame: positive pitch is nose down
	// (forward), positive roll is right side down.
	body := r3.Vector{
		X: math.Sin(pitch) * math.Cos(roll),
		Y: -math.Sin(roll),
		Z: math.Cos(roll) * math.Cos(pitch),
	}
	heading := r3.Vector{
		X: body.X*math.Cos(yaw) - body.Y*math.Sin(yaw),
		Y: body.X*math.Sin(yaw) + body.Y*math.Cos(yaw),
		Z: body.Z,
	}
	acc := heading.Mul(total / p.cfg.MassKg).
		Sub(r3.Vector{Z: p.cfg.GravityMPS2}).
		Sub(p.vel.Mul(p.cfg.LinearDrag))

	p.rates = p.rates.Add(angAcc.Mul(dt))
	p.att = p.att.Add(p.rates.Mul(dt))
	p.vel = p.vel.Add(acc.Mul(dt))
	p.pos = p.pos.Add(p.vel.Mul(dt))

	if p.pos.Z <= 0 {
		p.pos.Z = 0
		p.vel = r3.Vector{}
		p.att = r3.Vector{Z: p.att.Z}
		p.rates = r3.Vector{}
	}
	p.clock += dt
}
