package control

import (
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestClampFloatIdentityInsideRange(t *testing.T) {
	for _, v := range []float64{-1, -0.75, -0.001, 0, 0.3, 0.999, 1} {
		if got := ClampFloat(v, -1, 1); got != v {
			t.Errorf("ClampFloat(%v) = %v, want identity", v, got)
		}
	}
}

func TestClampFloatSaturatesPreservingSign(t *testing.T) {
	for _, v := range []float64{-1e9, -3.2, -1.0001, 1.0001, 2.5, 1e9, math.Inf(1), math.Inf(-1)} {
		got := ClampFloat(v, -1, 1)
		if math.Abs(got) != 1 {
			t.Errorf("ClampFloat(%v) = %v, want magnitude 1", v, got)
		}
		if math.Signbit(got) != math.Signbit(v) {
			t.Errorf("ClampFloat(%v) = %v, sign flipped", v, got)
		}
	}
}

func TestVerticalTermIsOddMonotonicCubic(t *testing.T) {
	cfg := DefaultConfig()
	vertical := func(errIn float64) float64 {
		// altitude chosen so that target - altitude + offset == errIn
		in := Inputs{Altitude: 1.0 + cfg.Gains.VerticalOffset - errIn}
		return ComputeAxes(cfg, in, DisturbanceCommand{}, 1.0).Vertical
	}

	if v := vertical(0); !approx(v, 0, eps) {
		t.Fatalf("vertical(0) = %v, want 0", v)
	}

	prev := math.Inf(-1)
	for e := -1.0; e <= 1.0+eps; e += 0.05 {
		v := vertical(e)
		if v <= prev {
			t.Fatalf("vertical not strictly increasing at err=%v: %v <= %v", e, v, prev)
		}
		prev = v
		if odd := vertical(-e); !approx(odd, -v, 1e-9) {
			t.Errorf("vertical(-%v) = %v, want %v", e, odd, -v)
		}
		if want := cfg.Gains.VerticalP * e * e * e; !approx(v, want, 1e-9) {
			t.Errorf("vertical(%v) = %v, want %v", e, v, want)
		}
	}
}

func TestAltitudeErrorSaturates(t *testing.T) {
	cfg := DefaultConfig()
	high := ComputeAxes(cfg, Inputs{Altitude: -50}, DisturbanceCommand{}, 1.0)
	if high.AltitudeErr != 1 || !approx(high.Vertical, cfg.Gains.VerticalP, eps) {
		t.Errorf("far below target: err=%v vertical=%v", high.AltitudeErr, high.Vertical)
	}
	low := ComputeAxes(cfg, Inputs{Altitude: 50}, DisturbanceCommand{}, 1.0)
	if low.AltitudeErr != -1 || !approx(low.Vertical, -cfg.Gains.VerticalP, eps) {
		t.Errorf("far above target: err=%v vertical=%v", low.AltitudeErr, low.Vertical)
	}
}

func TestAttitudeTermsClampBeforeGain(t *testing.T) {
	cfg := DefaultConfig()
	in := Inputs{
		Attitude: AttitudeSample{Roll: 2.0, Pitch: -3.0},
		Rates:    RateSample{RollRate: 0.5, PitchRate: -0.25},
		Altitude: 1.0,
	}
	dist := DisturbanceCommand{Roll: 1.0, Pitch: -2.0, Yaw: 1.3}
	a := ComputeAxes(cfg, in, dist, 1.0)

	if want := 50.0*1 + 0.5 + 1.0; !approx(a.Roll, want, eps) {
		t.Errorf("roll input = %v, want %v", a.Roll, want)
	}
	if want := 30.0*-1 - 0.25 - 2.0; !approx(a.Pitch, want, eps) {
		t.Errorf("pitch input = %v, want %v", a.Pitch, want)
	}
	if a.Yaw != 1.3 {
		t.Errorf("yaw input = %v, want 1.3", a.Yaw)
	}
}

func TestMixSymmetricWithoutAttitudeInputs(t *testing.T) {
	for _, v := range []float64{-3, -0.2, 0, 0.648, 3} {
		m := Mix(68.5, AxisInputs{Vertical: v})
		for i, got := range m.Slice() {
			if !approx(got, 68.5+v, eps) {
				t.Errorf("vertical=%v motor %d = %v, want %v", v, i, got, 68.5+v)
			}
		}
	}
}

func TestMixSigns(t *testing.T) {
	m := Mix(0, AxisInputs{Roll: 1, Pitch: 10, Yaw: 100})
	want := MotorCommandSet{
		FrontLeft:  -1 + 10 - 100,
		FrontRight: 1 + 10 + 100,
		RearLeft:   -1 - 10 + 100,
		RearRight:  1 - 10 - 100,
	}
	if m != want {
		t.Errorf("Mix = %+v, want %+v", m, want)
	}
}

func TestActuatedInvertsDiagonalPair(t *testing.T) {
	raw := MotorCommandSet{FrontLeft: 1, FrontRight: 2, RearLeft: 3, RearRight: 4}
	got := raw.Actuated()
	want := MotorCommandSet{FrontLeft: 1, FrontRight: -2, RearLeft: -3, RearRight: 4}
	if got != want {
		t.Errorf("Actuated = %+v, want %+v", got, want)
	}
}

func TestMotorClampDisabledByZero(t *testing.T) {
	m := MotorCommandSet{FrontLeft: 500, FrontRight: -500, RearLeft: 1, RearRight: 0}
	if got := m.Clamp(0); got != m {
		t.Errorf("Clamp(0) = %+v, want unchanged", got)
	}
	got := m.Clamp(100)
	want := MotorCommandSet{FrontLeft: 100, FrontRight: -100, RearLeft: 1, RearRight: 0}
	if got != want {
		t.Errorf("Clamp(100) = %+v, want %+v", got, want)
	}
}
