package indicator

import (
	"math"

	"signalbench/internal/model"
)

// Gradient returns the discrete derivative of x: central differences in the
// interior, one-sided differences at both ends. Inputs shorter than two
// samples yield all zeros.
func Gradient(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) < 2 {
		return out
	}
	last := len(x) - 1
	out[0] = x[1] - x[0]
	out[last] = x[last] - x[last-1]
	for i := 1; i < last; i++ {
		out[i] = (x[i+1] - x[i-1]) / 2
	}
	return out
}

// sign classifies v as -1, 0 or +1. NaN reports ok=false.
func sign(v float64) (s int, ok bool) {
	switch {
	case math.IsNaN(v):
		return 0, false
	case v > 0:
		return 1, true
	case v < 0:
		return -1, true
	}
	return 0, true
}

// DetectSignChanges returns, in ascending order, every index i such that
// sign(series[i]) != sign(series[i+1]). Zero is its own sign class, so a
// move from 0 to positive counts as a change. Pairs touching NaN are skipped.
func DetectSignChanges(series []float64) []int {
	var out []int
	for i := 0; i+1 < len(series); i++ {
		a, okA := sign(series[i])
		b, okB := sign(series[i+1])
		if !okA || !okB {
			continue
		}
		if a != b {
			out = append(out, i)
		}
	}
	return out
}

// DetectZeroCrossings returns the indices i where series[i+1] takes the
// opposite non-zero sign to the last non-zero value at or before i. Runs of
// zero between two signs produce one crossing, at the last zero; leading
// zeros and touches that return to the same side produce none.
func DetectZeroCrossings(series []float64) []int {
	var out []int
	prev := 0
	for i := 0; i+1 < len(series); i++ {
		if s, ok := sign(series[i]); ok && s != 0 {
			prev = s
		}
		next, ok := sign(series[i+1])
		if !ok || next == 0 || prev == 0 {
			continue
		}
		if next != prev {
			out = append(out, i)
		}
	}
	return out
}

// Crossovers returns the indices where a crosses b, i.e. the sign changes
// of a-b. Both inputs are index-aligned; a longer tail on either is ignored.
func Crossovers(a, b []float64) []int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = a[i] - b[i]
	}
	return DetectSignChanges(diff)
}

// Events wraps indices as structural events of kind, taking each event's
// value from series.
func Events(kind model.EventKind, indices []int, series []float64) []model.StructuralEvent {
	out := make([]model.StructuralEvent, len(indices))
	for i, idx := range indices {
		out[i] = model.StructuralEvent{Kind: kind, Index: idx, Value: series[idx]}
	}
	return out
}

// Default oscillator thresholds for oversold / overbought filtering.
const (
	OversoldLevel   = 30.0
	OverboughtLevel = 70.0
)

// BelowThreshold keeps events whose oscillator value is strictly below level.
func BelowThreshold(events []model.StructuralEvent, osc []float64, level float64) []model.StructuralEvent {
	var out []model.StructuralEvent
	for _, e := range events {
		if osc[e.Index] < level {
			out = append(out, e)
		}
	}
	return out
}

// AboveThreshold keeps events whose oscillator value is strictly above level.
func AboveThreshold(events []model.StructuralEvent, osc []float64, level float64) []model.StructuralEvent {
	var out []model.StructuralEvent
	for _, e := range events {
		if osc[e.Index] > level {
			out = append(out, e)
		}
	}
	return out
}
