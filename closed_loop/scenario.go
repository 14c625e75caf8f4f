package main

import (
	"encoding/json"
	"fmt"
	"os"

	control "quad-stabilizer-core/closed_loop/attitude_control"
)

// Scenario defines a scripted flight: timing, starting conditions and the
// pilot keys held over time.
type Scenario struct {
	Meta     ScenarioMeta      `json:"meta"`
	Timing   ScenarioTiming    `json:"timing"`
	Initial  InitialConditions `json:"initial"`
	Airframe *PlantConfig      `json:"airframe,omitempty"` // Optional plant override for sim mode
	Segments []ScenarioSegment `json:"segments"`
}

// ScenarioMeta contains scenario metadata
type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// ScenarioTiming defines timing parameters
type ScenarioTiming struct {
	DtS          float64 `json:"dt_s"`
	DurationS    float64 `json:"duration_s"`
	LogHz        float64 `json:"log_hz"`
	RealTimeMode bool    `json:"real_time_mode"`
}

// InitialConditions place the airframe at t=0 (sim mode only).
type InitialConditions struct {
	AltitudeM float64 `json:"altitude_m"`
	RollRad   float64 `json:"roll_rad"`
	PitchRad  float64 `json:"pitch_rad"`
}

// ScenarioSegment holds a set of keys down for t0 <= t < t1. A negative t1
// runs to the end of the scenario.
type ScenarioSegment struct {
	T0      float64  `json:"t0"`
	T1      float64  `json:"t1"`
	Keys    []string `json:"keys"`
	Comment string   `json:"comment,omitempty"`

	parsed []control.KeyEvent
}

const defaultDtS = 0.008

// LoadScenario loads a scenario from JSON file
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (Scenario, error) {
	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if scen.Timing.DtS == 0 {
		scen.Timing.DtS = defaultDtS
	}
	if scen.Timing.DtS < 0 || scen.Timing.DtS > scen.Timing.DurationS {
		return Scenario{}, fmt.Errorf("invalid dt_s: %f", scen.Timing.DtS)
	}
	if scen.Timing.LogHz < 0 {
		return Scenario{}, fmt.Errorf("invalid log_hz: %f", scen.Timing.LogHz)
	}

	for i := range scen.Segments {
		seg := &scen.Segments[i]
		if seg.T1 >= 0 && seg.T1 < seg.T0 {
			return Scenario{}, fmt.Errorf("segment %d: t1 %.3f before t0 %.3f", i, seg.T1, seg.T0)
		}
		seg.parsed = make([]control.KeyEvent, 0, len(seg.Keys))
		for _, name := range seg.Keys {
			k, err := control.ParseKey(name)
			if err != nil {
				return Scenario{}, fmt.Errorf("segment %d: %w", i, err)
			}
			seg.parsed = append(seg.parsed, k)
		}
	}

	if scen.Airframe != nil {
		if err := scen.Airframe.Validate(); err != nil {
			return Scenario{}, fmt.Errorf("airframe: %w", err)
		}
	}

	return scen, nil
}

// EvalKeys returns the keys held at time t, in segment order. Overlapping
// segments contribute all their keys.
func EvalKeys(scen *Scenario, t float64) []control.KeyEvent {
	var keys []control.KeyEvent
	for _, seg := range scen.Segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = scen.Timing.DurationS
		}
		if t >= seg.T0 && t < t1 {
			keys = append(keys, seg.parsed...)
		}
	}
	return keys
}
