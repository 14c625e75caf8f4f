package main

import (
	"context"
	"errors"
	"math"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.einride.tech/can"

	control "quad-stabilizer-core/closed_loop/attitude_control"
	"quad-stabilizer-core/utils"
)

const testMapPath = "../config/can/can_map.csv"

type recordingWriter struct {
	frames []can.Frame
}

func (w *recordingWriter) WriteFrame(_ context.Context, f can.Frame) error {
	w.frames = append(w.frames, f)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type chanReader struct {
	frames chan can.Frame
}

func (r *chanReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f := <-r.frames:
		return f, nil
	}
}

func (r *chanReader) Close() error { return nil }

func loadTestMap(t *testing.T) *utils.CANMap {
	t.Helper()
	cmap, err := utils.LoadCANMap(testMapPath)
	if err != nil {
		t.Fatalf("LoadCANMap: %v", err)
	}
	return cmap
}

func newTestRunner(t *testing.T, w utils.CANWriter, r utils.CANReader) *Runner {
	t.Helper()
	cfg := RunnerConfig{Interface: "test", SensorTimeout: 20 * time.Millisecond}
	return newRunner(cfg, control.DefaultConfig(), quietLogger(), loadTestMap(t), nil, w, r, 8*time.Millisecond)
}

func TestBundledMapSatisfiesCapabilities(t *testing.T) {
	if err := checkCANCapabilities(loadTestMap(t)); err != nil {
		t.Fatalf("checkCANCapabilities: %v", err)
	}
}

func TestMissingLEDFrameIsMissingCapability(t *testing.T) {
	data, err := os.ReadFile(testMapPath)
	if err != nil {
		t.Fatal(err)
	}
	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.Contains(line, "LED_CMD") {
			kept = append(kept, line)
		}
	}
	cmap, err := utils.ParseCANMap(strings.NewReader(strings.Join(kept, "\n")))
	if err != nil {
		t.Fatalf("ParseCANMap: %v", err)
	}
	err = checkCANCapabilities(cmap)
	if !errors.Is(err, control.ErrMissingCapability) {
		t.Fatalf("err = %v, want ErrMissingCapability", err)
	}
	if !strings.Contains(err.Error(), "LED_CMD") {
		t.Errorf("error %q does not name the frame", err)
	}
}

func TestAwaitSensorsTimesOut(t *testing.T) {
	r := newTestRunner(t, &recordingWriter{}, &chanReader{})
	rx := make(chan busFrame, 1)
	rx <- busFrame{name: frameAttitude, values: map[string]float64{"roll": 0, "pitch": 0, "yaw": 0}}

	err := r.awaitSensors(context.Background(), rx)
	if !errors.Is(err, control.ErrMissingCapability) {
		t.Fatalf("err = %v, want ErrMissingCapability", err)
	}
	if !strings.Contains(err.Error(), frameGyro) || !strings.Contains(err.Error(), framePosition) {
		t.Errorf("error %q should list the silent frames", err)
	}
}

func TestDecodeKeys(t *testing.T) {
	got := decodeKeys(map[string]float64{"key_0": 0x81, "key_1": 0, "key_2": 3})
	want := []control.KeyEvent{control.KeyShift | control.KeyUp, control.KeyRight}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decodeKeys = %v, want %v", got, want)
	}
}

func TestBusSensorsRequireEveryFrame(t *testing.T) {
	b := newBusSensors()
	if _, err := b.ReadSensors(context.Background()); err == nil {
		t.Fatal("expected error before any frame")
	}
	b.apply(busFrame{name: frameAttitude, values: map[string]float64{"roll": 0.1, "pitch": -0.2, "yaw": 0.3}})
	b.apply(busFrame{name: framePosition, values: map[string]float64{"x": 1, "y": 2, "z": 3}})
	if got := b.missing(); !reflect.DeepEqual(got, []string{frameGyro}) {
		t.Fatalf("missing = %v", got)
	}
	b.apply(busFrame{name: frameGyro, values: map[string]float64{"x": 0.01, "y": 0.02, "z": 0.03}})

	snap, err := b.ReadSensors(context.Background())
	if err != nil {
		t.Fatalf("ReadSensors: %v", err)
	}
	if snap.Orientation.X != 0.1 || snap.Position.Z != 3 || snap.AngularVelocity.Y != 0.02 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestReceiveLoopForwardsOnlyMappedRXFrames(t *testing.T) {
	cmap := loadTestMap(t)
	reader := &chanReader{frames: make(chan can.Frame, 4)}
	r := newTestRunner(t, &recordingWriter{}, reader)

	motor, err := cmap.EncodeFrame(frameMotorFront, map[string]float64{"front_left": 1, "front_right": 1})
	if err != nil {
		t.Fatal(err)
	}
	imu, err := cmap.EncodeFrame(frameAttitude, map[string]float64{"roll": 0.25, "pitch": 0, "yaw": 0})
	if err != nil {
		t.Fatal(err)
	}
	reader.frames <- can.Frame{ID: 0x7FF, Length: 1}
	reader.frames <- motor
	reader.frames <- imu

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan busFrame)
	done := make(chan struct{})
	go func() {
		r.receiveLoop(ctx, out)
		close(done)
	}()

	select {
	case fr := <-out:
		if fr.name != frameAttitude || math.Abs(fr.values["roll"]-0.25) > 1e-4 {
			t.Errorf("forwarded %+v", fr)
		}
	case <-time.After(time.Second):
		t.Fatal("no frame forwarded")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receive loop did not stop")
	}
}

func TestLoopFliesAndStopsTransmittingAfterLanding(t *testing.T) {
	w := &recordingWriter{}
	r := newTestRunner(t, w, &chanReader{})

	rx := make(chan busFrame)
	tick := make(chan time.Time)
	errc := make(chan error, 1)
	go func() { errc <- r.loop(context.Background(), rx, tick, time.Now()) }()

	send := func(name string, values map[string]float64) { rx <- busFrame{name: name, values: values} }
	zero := map[string]float64{"x": 0, "y": 0, "z": 0}
	step := func(clock float64) {
		send(frameClock, map[string]float64{"time_s": clock})
		tick <- time.Now()
	}

	send(frameAttitude, map[string]float64{"roll": 0, "pitch": 0, "yaw": 0})
	send(frameGyro, zero)
	send(framePosition, map[string]float64{"x": 0, "y": 0, "z": 1.0})
	step(0.5) // preflight
	step(1.5) // running at the target
	send(frameKeys, map[string]float64{"key_0": float64(control.KeyShift | control.KeyUp)})
	step(1.6)
	send(framePosition, map[string]float64{"x": 0, "y": 0, "z": 0.04})
	step(1.7) // lands

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("loop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after landing")
	}

	cmap := loadTestMap(t)
	var fronts, statuses []map[string]float64
	for _, f := range w.frames {
		fd, values, err := cmap.DecodeFrame(f)
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		switch fd.Name {
		case frameMotorFront:
			fronts = append(fronts, values)
		case frameStatus:
			statuses = append(statuses, values)
		}
	}
	if len(fronts) != 4 || len(statuses) != 4 {
		t.Fatalf("got %d motor and %d status frames, want 4 each", len(fronts), len(statuses))
	}
	if got := fronts[1]["front_left"]; math.Abs(got-69.148) > 0.01 {
		t.Errorf("hover front_left = %v, want ~69.15", got)
	}
	if got := fronts[1]["front_right"]; math.Abs(got+69.148) > 0.01 {
		t.Errorf("hover front_right = %v, want ~-69.15", got)
	}
	if got := statuses[2]["target_altitude"]; math.Abs(got-1.05) > 0.001 {
		t.Errorf("target after SHIFT+UP = %v, want 1.05", got)
	}
	wantPhases := []control.Phase{control.PhasePreflight, control.PhaseRunning, control.PhaseRunning, control.PhaseLanded}
	for i, st := range statuses {
		if control.Phase(st["phase"]) != wantPhases[i] {
			t.Errorf("status %d phase = %v, want %v", i, st["phase"], wantPhases[i])
		}
	}
}
