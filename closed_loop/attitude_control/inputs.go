package control

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
)

// SensorSnapshot is one tick of raw sensor vectors as delivered by the host.
type SensorSnapshot struct {
	Orientation     r3.Vector // roll, pitch, yaw (rad)
	Position        r3.Vector // x, y, z (m); z is altitude
	AngularVelocity r3.Vector // roll rate, pitch rate, yaw rate (rad/s)
}

// AttitudeSample is the instantaneous orientation used by the control law.
type AttitudeSample struct {
	Roll  float64
	Pitch float64
}

// RateSample is the angular velocity used by the control law and the gimbal.
type RateSample struct {
	RollRate  float64
	PitchRate float64
}

// Inputs is everything the control law reads from the sensors for one tick.
type Inputs struct {
	Attitude AttitudeSample
	Rates    RateSample
	Altitude float64
}

// Aggregate projects the raw vectors onto the fields the control law uses.
// No filtering or range checks happen here.
func Aggregate(s SensorSnapshot) Inputs {
	return Inputs{
		Attitude: AttitudeSample{Roll: s.Orientation.X, Pitch: s.Orientation.Y},
		Rates:    RateSample{RollRate: s.AngularVelocity.X, PitchRate: s.AngularVelocity.Y},
		Altitude: s.Position.Z,
	}
}

// sanitize replaces non-finite fields with zero and reports whether any were
// replaced.
func (in Inputs) sanitize() (Inputs, bool) {
	var bad, b bool
	in.Attitude.Roll, b = finiteOr(in.Attitude.Roll, 0)
	bad = bad || b
	in.Attitude.Pitch, b = finiteOr(in.Attitude.Pitch, 0)
	bad = bad || b
	in.Rates.RollRate, b = finiteOr(in.Rates.RollRate, 0)
	bad = bad || b
	in.Rates.PitchRate, b = finiteOr(in.Rates.PitchRate, 0)
	bad = bad || b
	in.Altitude, b = finiteOr(in.Altitude, 0)
	bad = bad || b
	return in, bad
}

// KeyEvent is a pilot key code. Arrow keys combine with KeyShift.
type KeyEvent uint8

const (
	KeyNone  KeyEvent = 0
	KeyUp    KeyEvent = 1
	KeyDown  KeyEvent = 2
	KeyRight KeyEvent = 3
	KeyLeft  KeyEvent = 4

	KeyShift KeyEvent = 0x80
)

var keyNames = map[KeyEvent]string{
	KeyUp:    "UP",
	KeyDown:  "DOWN",
	KeyRight: "RIGHT",
	KeyLeft:  "LEFT",
}

func (k KeyEvent) String() string {
	if k == KeyNone {
		return "NONE"
	}
	name, ok := keyNames[k&^KeyShift]
	if !ok {
		return fmt.Sprintf("KEY(0x%02X)", uint8(k))
	}
	if k&KeyShift != 0 {
		return "SHIFT+" + name
	}
	return name
}

// ParseKey accepts the String form, e.g. "UP" or "shift+left".
func ParseKey(s string) (KeyEvent, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	var mod KeyEvent
	if rest, ok := strings.CutPrefix(name, "SHIFT+"); ok {
		mod = KeyShift
		name = rest
	}
	for k, n := range keyNames {
		if n == name {
			return k | mod, nil
		}
	}
	return KeyNone, fmt.Errorf("unknown key %q", s)
}

// DisturbanceCommand is the pilot's input for one tick.
type DisturbanceCommand struct {
	Roll                float64
	Pitch               float64
	Yaw                 float64
	TargetAltitudeDelta float64 // m, added to the carried target altitude
}

type disturbanceChannel int

const (
	channelRoll disturbanceChannel = iota
	channelPitch
	channelYaw
	channelTarget
)

type keyEffect struct {
	channel disturbanceChannel
	value   float64 // absolute disturbance, or step multiplier for channelTarget
}

var keyEffects = map[KeyEvent]keyEffect{
	KeyUp:               {channelPitch, -2.0},
	KeyDown:             {channelPitch, 2.0},
	KeyRight:            {channelYaw, -1.3},
	KeyLeft:             {channelYaw, 1.3},
	KeyShift | KeyRight: {channelRoll, -1.0},
	KeyShift | KeyLeft:  {channelRoll, 1.0},
	KeyShift | KeyUp:    {channelTarget, 1},
	KeyShift | KeyDown:  {channelTarget, -1},
}

// Apply folds one key event into d. Roll, pitch and yaw are overwritten by
// the latest event on that channel; the target altitude delta accumulates.
// Unknown keys leave d unchanged.
func (d DisturbanceCommand) Apply(k KeyEvent, altitudeStep float64) DisturbanceCommand {
	eff, ok := keyEffects[k]
	if !ok {
		return d
	}
	switch eff.channel {
	case channelRoll:
		d.Roll = eff.value
	case channelPitch:
		d.Pitch = eff.value
	case channelYaw:
		d.Yaw = eff.value
	case channelTarget:
		d.TargetAltitudeDelta += eff.value * altitudeStep
	}
	return d
}

// FoldKeys reduces all key events of a tick into one command, starting from
// zero. Disturbances are therefore never carried into the next tick.
func FoldKeys(altitudeStep float64, keys []KeyEvent) DisturbanceCommand {
	var d DisturbanceCommand
	for _, k := range keys {
		d = d.Apply(k, altitudeStep)
	}
	return d
}
