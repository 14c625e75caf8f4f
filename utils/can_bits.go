package utils

import "math"

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampRaw(raw int64, bitLen int, signed bool) int64 {
	if bitLen <= 0 || bitLen > 63 {
		return raw
	}
	if !signed {
		max := int64((1 << bitLen) - 1)
		if raw < 0 {
			return 0
		}
		if raw > max {
			return max
		}
		return raw
	}
	min := -int64(1 << (bitLen - 1))
	max := int64((1 << (bitLen - 1)) - 1)
	if raw < min {
		return min
	}
	if raw > max {
		return max
	}
	return raw
}

// physToRaw scales a physical value into the signal's integer range.
// Non-finite values encode as the signal default.
func physToRaw(s SignalDef, v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = s.Default
	}
	if s.Min < s.Max {
		v = clamp(v, s.Min, s.Max)
	}
	factor := s.Factor
	if factor == 0 {
		factor = 1
	}
	raw := int64(math.Round((v - s.Offset) / factor))
	return clampRaw(raw, s.BitLength, s.Signed)
}

func rawToPhys(s SignalDef, raw int64) float64 {
	factor := s.Factor
	if factor == 0 {
		factor = 1
	}
	return float64(raw)*factor + s.Offset
}
