package engine

import "math"

// SafeBaseline substitutes 1 for a zero or non-finite current value so drift
// is always computed against a usable divisor.
func SafeBaseline(v float64) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return v
}

// ComputeDrift is the percentage deviation of value from baseline, rounded to
// two decimals. baseline must be non-zero; use SafeBaseline first.
func ComputeDrift(baseline, value float64) float64 {
	return round2((value - baseline) / baseline * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
