package control

import "fmt"

// Phase is the lifecycle of the stabilization loop.
type Phase int

const (
	PhasePreflight Phase = iota // motors at stand-by, control law idle
	PhaseRunning
	PhaseLanded // terminal, no re-arm
)

func (p Phase) String() string {
	switch p {
	case PhasePreflight:
		return "PREFLIGHT"
	case PhaseRunning:
		return "RUNNING"
	case PhaseLanded:
		return "LANDED"
	default:
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
}

// State is the only thing carried from one tick to the next.
type State struct {
	TargetAltitude float64
	Phase          Phase
}

// InitialState is the state before the first tick.
func InitialState(cfg Config) State {
	return State{
		TargetAltitude: cfg.Timing.InitialTargetAlt,
		Phase:          PhasePreflight,
	}
}

// TickInput is what the host provides for one tick.
type TickInput struct {
	Time    float64 // simulated seconds since initialization
	Sensors SensorSnapshot
	Keys    []KeyEvent
}

// TickOutput is what the tick asks the actuators to do. When Active is
// false nothing must be written.
type TickOutput struct {
	Active      bool
	Motors      MotorCommandSet // signed, as written to the motors
	Raw         MotorCommandSet // mixer output before spin-direction signs
	Axes        AxisInputs
	Disturbance DisturbanceCommand
	Gimbal      GimbalCommand
	LEDs        LEDState
}

// Status reports the outcome of a tick to the host.
type Status struct {
	Phase      Phase
	Terminate  bool // host should stop driving ticks
	Degenerate bool // non-finite sensor values were replaced by zero
}

// Step advances the controller by one tick. It does not mutate anything; the
// returned State must be passed to the next call.
func Step(cfg Config, st State, in TickInput) (State, TickOutput, Status) {
	switch st.Phase {
	case PhaseLanded:
		return st, TickOutput{}, Status{Phase: PhaseLanded, Terminate: true}
	case PhasePreflight:
		if in.Time <= cfg.Timing.PreflightDelayS {
			standby := Uniform(cfg.Timing.StandbyVelocity)
			return st, TickOutput{Active: true, Motors: standby, Raw: standby}, Status{Phase: PhasePreflight}
		}
		st.Phase = PhaseRunning
	}

	sensed := Aggregate(in.Sensors)
	clean, degenerate := sensed.sanitize()

	dist := FoldKeys(cfg.Timing.TargetAltitudeStep, in.Keys)
	st.TargetAltitude = cfg.Limits.clampTarget(st.TargetAltitude + dist.TargetAltitudeDelta)

	axes := ComputeAxes(cfg, clean, dist, st.TargetAltitude)
	raw := Mix(cfg.Gains.VerticalThrust, axes).Clamp(cfg.Limits.MaxMotorVelocity)

	out := TickOutput{
		Active:      true,
		Motors:      raw.Actuated(),
		Raw:         raw,
		Axes:        axes,
		Disturbance: dist,
		Gimbal:      Stabilize(cfg.Gimbal, clean.Rates),
		LEDs:        BlinkLEDs(in.Time),
	}
	status := Status{Phase: PhaseRunning, Degenerate: degenerate}

	// Checked on the raw reading: a NaN altitude never lands the airframe.
	if sensed.Altitude < cfg.Timing.LandingAltitude {
		st.Phase = PhaseLanded
		status.Phase = PhaseLanded
		status.Terminate = true
	}
	return st, out, status
}

func (l Limits) clampTarget(v float64) float64 {
	if !l.targetClamped() {
		return v
	}
	return ClampFloat(v, l.MinTargetAlt, l.MaxTargetAlt)
}

// Controller owns a State for drivers that prefer an object to threading the
// state through Step themselves. Not safe for concurrent use.
type Controller struct {
	cfg   Config
	state State

	ticks      uint64
	last       TickOutput
	lastStatus Status
}

// NewController creates a controller in the preflight phase.
func NewController(cfg Config) *Controller {
	return &Controller{
		cfg:   cfg,
		state: InitialState(cfg),
	}
}

// Tick runs one control cycle.
func (c *Controller) Tick(in TickInput) (TickOutput, Status) {
	var out TickOutput
	var status Status
	c.state, out, status = Step(c.cfg, c.state, in)
	c.ticks++
	c.last = out
	c.lastStatus = status
	return out, status
}

// Reset returns the controller to its initial state, including re-arming
// after a landing.
func (c *Controller) Reset() {
	c.state = InitialState(c.cfg)
	c.ticks = 0
	c.last = TickOutput{}
	c.lastStatus = Status{}
}

func (c *Controller) State() State   { return c.state }
func (c *Controller) Config() Config { return c.cfg }

// Diagnostics contains controller internals for monitoring
type Diagnostics struct {
	Ticks          uint64
	Phase          Phase
	TargetAltitude float64
	AltitudeErr    float64
	Axes           AxisInputs
	Raw            MotorCommandSet
	Degenerate     bool
}

// GetDiagnostics returns the state after the most recent tick.
func (c *Controller) GetDiagnostics() Diagnostics {
	return Diagnostics{
		Ticks:          c.ticks,
		Phase:          c.state.Phase,
		TargetAltitude: c.state.TargetAltitude,
		AltitudeErr:    c.last.Axes.AltitudeErr,
		Axes:           c.last.Axes,
		Raw:            c.last.Raw,
		Degenerate:     c.lastStatus.Degenerate,
	}
}
