package control

// AxisInputs are the per-axis corrections fed to the mixer.
type AxisInputs struct {
	Roll        float64
	Pitch       float64
	Yaw         float64
	Vertical    float64
	AltitudeErr float64 // clamped error the vertical term was computed from
}

// ComputeAxes is the proportional control law. Roll and pitch are saturated
// before the gain so extreme tilt cannot swamp the mixer; the vertical term
// is the cube of the clamped altitude error, which is soft near the setpoint
// and strong far from it.
func ComputeAxes(cfg Config, in Inputs, dist DisturbanceCommand, targetAltitude float64) AxisInputs {
	g := cfg.Gains

	roll := g.RollP*clampSym(in.Attitude.Roll, cfg.Limits.AttitudeClamp) + in.Rates.RollRate + dist.Roll
	pitch := g.PitchP*clampSym(in.Attitude.Pitch, cfg.Limits.AttitudeClamp) + in.Rates.PitchRate + dist.Pitch

	altErr := clampSym(targetAltitude-in.Altitude+g.VerticalOffset, cfg.Limits.AltitudeErrClamp)

	return AxisInputs{
		Roll:        roll,
		Pitch:       pitch,
		Yaw:         dist.Yaw,
		Vertical:    g.VerticalP * altErr * altErr * altErr,
		AltitudeErr: altErr,
	}
}

// MotorCommandSet holds one velocity per rotor, in mixer order.
type MotorCommandSet struct {
	FrontLeft  float64
	FrontRight float64
	RearLeft   float64
	RearRight  float64
}

// Mix applies the X-quad mixer around the base thrust. Results are the raw
// magnitudes, before the per-rotor spin direction is applied.
func Mix(base float64, a AxisInputs) MotorCommandSet {
	common := base + a.Vertical
	return MotorCommandSet{
		FrontLeft:  common - a.Roll + a.Pitch - a.Yaw,
		FrontRight: common + a.Roll + a.Pitch + a.Yaw,
		RearLeft:   common - a.Roll - a.Pitch + a.Yaw,
		RearRight:  common + a.Roll - a.Pitch - a.Yaw,
	}
}

// Actuated returns the commands as written to the motors. The front-right
// and rear-left propellers spin the other way, so their velocities are
// negated.
func (m MotorCommandSet) Actuated() MotorCommandSet {
	return MotorCommandSet{
		FrontLeft:  m.FrontLeft,
		FrontRight: -m.FrontRight,
		RearLeft:   -m.RearLeft,
		RearRight:  m.RearRight,
	}
}

// Clamp limits each command to [-limit, limit]; a non-positive limit is a
// no-op.
func (m MotorCommandSet) Clamp(limit float64) MotorCommandSet {
	return MotorCommandSet{
		FrontLeft:  clampSym(m.FrontLeft, limit),
		FrontRight: clampSym(m.FrontRight, limit),
		RearLeft:   clampSym(m.RearLeft, limit),
		RearRight:  clampSym(m.RearRight, limit),
	}
}

// Slice returns the commands in FL, FR, RL, RR order.
func (m MotorCommandSet) Slice() [4]float64 {
	return [4]float64{m.FrontLeft, m.FrontRight, m.RearLeft, m.RearRight}
}

// Uniform sets all four rotors to v.
func Uniform(v float64) MotorCommandSet {
	return MotorCommandSet{FrontLeft: v, FrontRight: v, RearLeft: v, RearRight: v}
}
