package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/golang/geo/r3"

	control "quad-stabilizer-core/closed_loop/attitude_control"
	"quad-stabilizer-core/utils"
)

type RunnerConfig struct {
	Interface     string
	MapPath       string
	ScenarioPath  string // optional, scripted keys on top of PILOT_KEYS
	SensorTimeout time.Duration
}

const (
	frameAttitude = "IMU_ATTITUDE"
	framePosition = "GPS_POSITION"
	frameGyro     = "GYRO_RATES"
	frameKeys     = "PILOT_KEYS"
	frameClock    = "SIM_CLOCK"

	frameMotorFront = "MOTOR_CMD_FRONT"
	frameMotorRear  = "MOTOR_CMD_REAR"
	frameGimbal     = "GIMBAL_CMD"
	frameLED        = "LED_CMD"
	frameStatus     = "CONTROL_STATUS"

	pilotKeySlots = 8
)

var requiredSensorFrames = map[string][]string{
	frameAttitude: {"roll", "pitch", "yaw"},
	framePosition: {"x", "y", "z"},
	frameGyro:     {"x", "y", "z"},
	frameKeys:     {"key_0"},
}

var requiredCommandFrames = map[string][]string{
	frameMotorFront: {"front_left", "front_right"},
	frameMotorRear:  {"rear_left", "rear_right"},
	frameGimbal:     {"camera_roll", "camera_pitch"},
	frameLED:        {"led_front_left", "led_front_right"},
	frameStatus:     {"phase", "degenerate", "target_altitude"},
}

type Runner struct {
	cfg    RunnerConfig
	log    *utils.Logger
	cmap   *utils.CANMap
	scen   *Scenario
	writer utils.CANWriter
	reader utils.CANReader
	period time.Duration

	ctrl    *control.Controller
	sensors *busSensors
	keys    *keyQueue
	act     *canActuators
}

func NewRunner(ctx context.Context, cfg RunnerConfig, ctrlCfg control.Config, log *utils.Logger) (*Runner, error) {
	cmap, err := utils.LoadCANMap(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}
	if err := checkCANCapabilities(cmap); err != nil {
		return nil, err
	}

	fd, _ := cmap.FrameByName(frameMotorFront)
	if fd.CycleMS <= 0 {
		return nil, fmt.Errorf("frame %s has invalid cycle_ms %d", fd.Name, fd.CycleMS)
	}

	var scen *Scenario
	if cfg.ScenarioPath != "" {
		s, err := LoadScenario(cfg.ScenarioPath)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
		scen = &s
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	if cfg.SensorTimeout <= 0 {
		cfg.SensorTimeout = 2 * time.Second
	}

	return newRunner(cfg, ctrlCfg, log, cmap, scen, writer, reader, time.Duration(fd.CycleMS)*time.Millisecond), nil
}

func newRunner(cfg RunnerConfig, ctrlCfg control.Config, log *utils.Logger, cmap *utils.CANMap,
	scen *Scenario, writer utils.CANWriter, reader utils.CANReader, period time.Duration) *Runner {
	return &Runner{
		cfg:     cfg,
		log:     log,
		cmap:    cmap,
		scen:    scen,
		writer:  writer,
		reader:  reader,
		period:  period,
		ctrl:    control.NewController(ctrlCfg),
		sensors: newBusSensors(),
		keys:    &keyQueue{},
		act:     &canActuators{cmap: cmap, w: writer},
	}
}

// checkCANCapabilities makes sure every sensor and actuator channel the loop
// needs is described in the CAN map.
func checkCANCapabilities(cmap *utils.CANMap) error {
	if err := cmap.RequireFrames(utils.DirectionRX, requiredSensorFrames); err != nil {
		return fmt.Errorf("%w: %v", control.ErrMissingCapability, err)
	}
	if err := cmap.RequireFrames(utils.DirectionTX, requiredCommandFrames); err != nil {
		return fmt.Errorf("%w: %v", control.ErrMissingCapability, err)
	}
	return nil
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
}

func (r *Runner) capabilities() control.Capabilities {
	return control.Capabilities{Sensors: r.sensors, Keys: r.keys, Actuators: r.act}
}

func (r *Runner) Run(ctx context.Context) error {
	scenName := "none"
	if r.scen != nil {
		scenName = r.scen.Meta.Name
	}
	r.log.Info("Starting control loop: iface=%s period=%s scenario=%s", r.cfg.Interface, r.period, scenName)
	r.log.Info("Start the drone...")

	rxChan := make(chan busFrame, 100)
	go r.receiveLoop(ctx, rxChan)

	if err := r.awaitSensors(ctx, rxChan); err != nil {
		return err
	}
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	return r.loop(ctx, rxChan, ticker.C, time.Now())
}

// awaitSensors blocks until every sensor frame has been seen once.
func (r *Runner) awaitSensors(ctx context.Context, rx <-chan busFrame) error {
	timer := time.NewTimer(r.cfg.SensorTimeout)
	defer timer.Stop()

	for len(r.sensors.missing()) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fr := <-rx:
			r.apply(fr)
		case <-timer.C:
			return fmt.Errorf("%w: no %s frames within %s", control.ErrMissingCapability,
				strings.Join(r.sensors.missing(), ", "), r.cfg.SensorTimeout)
		}
	}
	r.log.Debug("All sensor frames present")
	return nil
}

func (r *Runner) loop(ctx context.Context, rx <-chan busFrame, tick <-chan time.Time, start time.Time) error {
	caps := r.capabilities()
	if err := caps.Validate(); err != nil {
		return err
	}

	var ticks uint64
	phase := r.ctrl.State().Phase

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping control loop")
			r.log.Info("Completed. ticks=%d", ticks)
			return ctx.Err()

		case fr := <-rx:
			r.apply(fr)

		case now := <-tick:
			t := now.Sub(start).Seconds()
			if r.sensors.hasClock {
				t = r.sensors.hostTime
			}
			if r.scen != nil {
				r.keys.Push(EvalKeys(r.scen, t)...)
			}

			out, status, err := control.RunTick(ctx, r.ctrl, caps, t)
			if err != nil {
				r.log.Critical("Tick failed at t=%.3f: %v", t, err)
				return err
			}
			ticks++

			if status.Degenerate {
				r.log.Warn("Non-finite sensor input at t=%.3f, replaced by zero", t)
			}
			if err := r.act.publishStatus(ctx, r.ctrl.State(), status); err != nil {
				r.log.Error("Status transmit failed at t=%.3f: %v", t, err)
			}
			announcePhase(r.log, phase, status.Phase)
			phase = status.Phase

			if ticks%100 == 0 {
				d := r.ctrl.GetDiagnostics()
				r.log.Debug("CTRL: phase=%s target=%.2f err=%.3f roll=%.2f pitch=%.2f yaw=%.2f vertical=%.3f",
					d.Phase, d.TargetAltitude, d.AltitudeErr, d.Axes.Roll, d.Axes.Pitch, d.Axes.Yaw, d.Axes.Vertical)
			}
			r.log.Trace("TX t=%.3f fl=%.2f fr=%.2f rl=%.2f rr=%.2f cam=(%.3f,%.3f) led=%v",
				t, out.Motors.FrontLeft, out.Motors.FrontRight, out.Motors.RearLeft, out.Motors.RearRight,
				out.Gimbal.Roll, out.Gimbal.Pitch, out.LEDs.FrontLeft)

			if status.Terminate {
				r.log.Info("Completed. ticks=%d", ticks)
				return nil
			}
		}
	}
}

// busFrame is a decoded frame handed from the RX goroutine to the tick loop.
type busFrame struct {
	name   string
	values map[string]float64
}

func (r *Runner) apply(fr busFrame) {
	if fr.name == frameKeys {
		r.keys.Push(decodeKeys(fr.values)...)
		return
	}
	r.sensors.apply(fr)
}

// receiveLoop continuously reads CAN frames and forwards the ones in the map
func (r *Runner) receiveLoop(ctx context.Context, out chan<- busFrame) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Error("RX error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		fd, values, err := r.cmap.DecodeFrame(frame)
		if err != nil || fd.Direction != utils.DirectionRX {
			r.log.Trace("RX skip id=0x%X len=%d", frame.ID, frame.Length)
			continue
		}

		select {
		case out <- busFrame{name: fd.Name, values: values}:
		case <-ctx.Done():
			return
		}
	}
}

func decodeKeys(values map[string]float64) []control.KeyEvent {
	keys := make([]control.KeyEvent, 0, pilotKeySlots)
	for i := 0; i < pilotKeySlots; i++ {
		v, ok := values[fmt.Sprintf("key_%d", i)]
		if !ok || v <= 0 {
			continue
		}
		keys = append(keys, control.KeyEvent(uint8(v)))
	}
	return keys
}

// busSensors keeps the most recent value of each sensor frame.
type busSensors struct {
	snap     control.SensorSnapshot
	seen     map[string]bool
	hostTime float64
	hasClock bool
}

func newBusSensors() *busSensors {
	return &busSensors{seen: map[string]bool{}}
}

func vec(v map[string]float64) r3.Vector {
	return r3.Vector{X: v["x"], Y: v["y"], Z: v["z"]}
}

func (b *busSensors) apply(fr busFrame) {
	switch fr.name {
	case frameAttitude:
		b.snap.Orientation = r3.Vector{X: fr.values["roll"], Y: fr.values["pitch"], Z: fr.values["yaw"]}
	case framePosition:
		b.snap.Position = vec(fr.values)
	case frameGyro:
		b.snap.AngularVelocity = vec(fr.values)
	case frameClock:
		b.hostTime = fr.values["time_s"]
		b.hasClock = true
	default:
		return
	}
	b.seen[fr.name] = true
}

func (b *busSensors) missing() []string {
	var out []string
	for _, name := range []string{frameAttitude, framePosition, frameGyro} {
		if !b.seen[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (b *busSensors) ReadSensors(context.Context) (control.SensorSnapshot, error) {
	if m := b.missing(); len(m) > 0 {
		return control.SensorSnapshot{}, fmt.Errorf("no data yet from %s", strings.Join(m, ", "))
	}
	return b.snap, nil
}

// canActuators encodes controller outputs onto the bus.
type canActuators struct {
	cmap *utils.CANMap
	w    utils.CANWriter
}

func (a *canActuators) send(ctx context.Context, frameName string, values map[string]float64) error {
	frame, err := a.cmap.EncodeFrame(frameName, values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", frameName, err)
	}
	if err := a.w.WriteFrame(ctx, frame); err != nil {
		return fmt.Errorf("transmit %s: %w", frameName, err)
	}
	return nil
}

func (a *canActuators) SetMotorVelocities(ctx context.Context, m control.MotorCommandSet) error {
	if err := a.send(ctx, frameMotorFront, map[string]float64{
		"front_left":  m.FrontLeft,
		"front_right": m.FrontRight,
	}); err != nil {
		return err
	}
	return a.send(ctx, frameMotorRear, map[string]float64{
		"rear_left":  m.RearLeft,
		"rear_right": m.RearRight,
	})
}

func (a *canActuators) SetGimbal(ctx context.Context, g control.GimbalCommand) error {
	return a.send(ctx, frameGimbal, map[string]float64{
		"camera_roll":  g.Roll,
		"camera_pitch": g.Pitch,
	})
}

func (a *canActuators) SetLEDs(ctx context.Context, l control.LEDState) error {
	return a.send(ctx, frameLED, map[string]float64{
		"led_front_left":  control.BoolToFloat(l.FrontLeft),
		"led_front_right": control.BoolToFloat(l.FrontRight),
	})
}

func (a *canActuators) publishStatus(ctx context.Context, st control.State, status control.Status) error {
	return a.send(ctx, frameStatus, map[string]float64{
		"phase":           float64(status.Phase),
		"degenerate":      control.BoolToFloat(status.Degenerate),
		"target_altitude": st.TargetAltitude,
	})
}
