package control

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingCapability is returned when a required sensor or actuator
// cannot be bound at startup.
var ErrMissingCapability = errors.New("missing capability")

// SensorSource delivers the latest sensor vectors.
type SensorSource interface {
	ReadSensors(ctx context.Context) (SensorSnapshot, error)
}

// KeySource drains the pilot key events queued since the previous poll.
type KeySource interface {
	PollKeys() []KeyEvent
}

// Actuators accepts the outputs of a tick. Motors are expected to be in
// velocity mode already.
type Actuators interface {
	SetMotorVelocities(ctx context.Context, m MotorCommandSet) error
	SetGimbal(ctx context.Context, g GimbalCommand) error
	SetLEDs(ctx context.Context, l LEDState) error
}

// Capabilities bundles the collaborators one control loop needs.
type Capabilities struct {
	Sensors   SensorSource
	Keys      KeySource
	Actuators Actuators
}

// Validate reports the first capability that is not bound.
func (c Capabilities) Validate() error {
	switch {
	case c.Sensors == nil:
		return fmt.Errorf("%w: sensors", ErrMissingCapability)
	case c.Keys == nil:
		return fmt.Errorf("%w: keyboard", ErrMissingCapability)
	case c.Actuators == nil:
		return fmt.Errorf("%w: actuators", ErrMissingCapability)
	}
	return nil
}

// Dispatch writes a tick's output. Inactive outputs (after landing) write
// nothing.
func Dispatch(ctx context.Context, act Actuators, out TickOutput) error {
	if !out.Active {
		return nil
	}
	if err := act.SetMotorVelocities(ctx, out.Motors); err != nil {
		return fmt.Errorf("set motors: %w", err)
	}
	if err := act.SetGimbal(ctx, out.Gimbal); err != nil {
		return fmt.Errorf("set gimbal: %w", err)
	}
	if err := act.SetLEDs(ctx, out.LEDs); err != nil {
		return fmt.Errorf("set leds: %w", err)
	}
	return nil
}

// RunTick performs one full cycle: read sensors and keys, step the
// controller, dispatch the result.
func RunTick(ctx context.Context, c *Controller, caps Capabilities, simTime float64) (TickOutput, Status, error) {
	snap, err := caps.Sensors.ReadSensors(ctx)
	if err != nil {
		return TickOutput{}, Status{Phase: c.State().Phase}, fmt.Errorf("read sensors: %w", err)
	}

	out, status := c.Tick(TickInput{
		Time:    simTime,
		Sensors: snap,
		Keys:    caps.Keys.PollKeys(),
	})

	if err := Dispatch(ctx, caps.Actuators, out); err != nil {
		return out, status, err
	}
	return out, status, nil
}
