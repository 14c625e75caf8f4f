package control

import "math"

// GimbalCommand is the camera mount position for one tick.
type GimbalCommand struct {
	Roll  float64 // rad
	Pitch float64 // rad
}

// Stabilize damps the camera against the airframe's angular rate. It is
// independent of the attitude loop.
func Stabilize(cfg GimbalConfig, r RateSample) GimbalCommand {
	return GimbalCommand{
		Roll:  ClampFloat(-cfg.RollGain*r.RollRate, -cfg.Limit, cfg.Limit),
		Pitch: ClampFloat(-cfg.PitchGain*r.PitchRate, -cfg.Limit, cfg.Limit),
	}
}

// LEDState drives the two front LEDs.
type LEDState struct {
	FrontLeft  bool
	FrontRight bool
}

// Blink is on during odd whole seconds of simulated time.
func Blink(simTime float64) bool {
	return int64(math.Floor(simTime))%2 != 0
}

// BlinkLEDs alternates the two front LEDs once per second.
func BlinkLEDs(simTime float64) LEDState {
	on := Blink(simTime)
	return LEDState{FrontLeft: on, FrontRight: !on}
}
