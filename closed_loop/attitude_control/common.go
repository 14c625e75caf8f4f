package control

import "math"

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// clampSym clamps v to [-limit, limit]. A non-positive limit disables it.
func clampSym(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return ClampFloat(v, -limit, limit)
}

// finiteOr returns v, or fallback when v is NaN or infinite. The second
// result reports whether the fallback was used.
func finiteOr(v, fallback float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback, true
	}
	return v, false
}

// BoolToFloat converts bool to float64 (for CAN encoding)
func BoolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
