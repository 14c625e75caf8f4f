package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	control "quad-stabilizer-core/closed_loop/attitude_control"
	"quad-stabilizer-core/utils"
)

// TracePoint is one logged sample of a simulated flight.
type TracePoint struct {
	T        float64
	Altitude float64 // GPS reading
	Target   float64
	Roll     float64
	Pitch    float64
	Yaw      float64
	Motors   control.MotorCommandSet // as written, signed
	Phase    control.Phase
}

// SimResult summarizes a headless run.
type SimResult struct {
	Ticks           int
	SimTime         float64
	Landed          bool
	LandedAt        float64
	MotorWrites     int
	LastWriteAt     float64
	MaxAltitude     float64
	FinalAltitude   float64
	DegenerateTicks int
	Trace           []TracePoint
}

// Simulate flies the scenario against the built-in plant until the duration
// elapses or the controller signals termination.
func Simulate(ctx context.Context, cfg control.Config, scen Scenario, log *utils.Logger) (SimResult, error) {
	plantCfg := DefaultPlant()
	if scen.Airframe != nil {
		plantCfg = *scen.Airframe
	}
	plant := NewPlant(plantCfg, scen.Initial)
	keys := &keyQueue{}
	caps := control.Capabilities{Sensors: plant, Keys: keys, Actuators: plant}
	if err := caps.Validate(); err != nil {
		return SimResult{}, err
	}

	ctrl := control.NewController(cfg)
	dt := scen.Timing.DtS
	steps := int(math.Ceil(scen.Timing.DurationS/dt - 1e-9))

	logEvery := 1
	if scen.Timing.LogHz > 0 {
		logEvery = max(1, int(math.Round(1/(scen.Timing.LogHz*dt))))
	}

	var ticker *time.Ticker
	if scen.Timing.RealTimeMode {
		ticker = time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
	}

	log.Info("Starting sim: scenario=%s dt=%.4fs duration=%.2fs steps=%d real_time=%v",
		scen.Meta.Name, dt, scen.Timing.DurationS, steps, scen.Timing.RealTimeMode)
	log.Info("Start the drone...")

	var res SimResult
	phase := control.PhasePreflight
	for i := 0; i < steps; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return res, err
		}

		t := float64(i+1) * dt
		keys.Push(EvalKeys(&scen, t)...)

		_, status, err := control.RunTick(ctx, ctrl, caps, t)
		if err != nil {
			return res, fmt.Errorf("tick %d at t=%.3f: %w", i, t, err)
		}
		res.Ticks++
		res.SimTime = t
		if status.Degenerate {
			res.DegenerateTicks++
			log.Warn("Non-finite sensor input at t=%.3f, replaced by zero", t)
		}
		announcePhase(log, phase, status.Phase)
		phase = status.Phase

		snap, _ := plant.ReadSensors(ctx)
		res.MaxAltitude = math.Max(res.MaxAltitude, snap.Position.Z)
		if i%logEvery == 0 || status.Terminate {
			res.Trace = append(res.Trace, TracePoint{
				T:        t,
				Altitude: snap.Position.Z,
				Target:   ctrl.State().TargetAltitude,
				Roll:     snap.Orientation.X,
				Pitch:    snap.Orientation.Y,
				Yaw:      snap.Orientation.Z,
				Motors:   plant.motors,
				Phase:    status.Phase,
			})
			if log.Enabled(utils.TRACE) {
				d := ctrl.GetDiagnostics()
				log.Trace("t=%.3f alt=%.3f target=%.3f err=%.3f roll=%.3f pitch=%.3f motors=%.2f",
					t, snap.Position.Z, d.TargetAltitude, d.AltitudeErr, snap.Orientation.X, snap.Orientation.Y, d.Raw.Slice())
			}
		}

		if status.Terminate {
			res.Landed = true
			res.LandedAt = t
			break
		}
		plant.Advance(dt)
	}

	res.MotorWrites = plant.motorWrites
	res.LastWriteAt = plant.lastWriteAt
	final, _ := plant.ReadSensors(ctx)
	res.FinalAltitude = final.Position.Z

	log.Info("Sim complete: ticks=%d t=%.3f landed=%v max_alt=%.3f final_alt=%.3f target=%.3f",
		res.Ticks, res.SimTime, res.Landed, res.MaxAltitude, res.FinalAltitude, ctrl.State().TargetAltitude)
	return res, nil
}

// WriteTraceCSV dumps the trace for offline analysis.
func WriteTraceCSV(path string, trace []TracePoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"t_s", "altitude_m", "target_m", "roll_rad", "pitch_rad", "yaw_rad",
		"front_left", "front_right", "rear_left", "rear_right", "phase",
	}); err != nil {
		return err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 5, 64) }
	for _, p := range trace {
		rec := []string{ff(p.T), ff(p.Altitude), ff(p.Target), ff(p.Roll), ff(p.Pitch), ff(p.Yaw)}
		for _, m := range p.Motors.Slice() {
			rec = append(rec, ff(m))
		}
		rec = append(rec, p.Phase.String())
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
