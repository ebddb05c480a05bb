package indicator

import (
	"fmt"
	"math"
	"strings"
)

// MAKind selects the moving-average weighting.
type MAKind string

const (
	Simple      MAKind = "simple"
	Exponential MAKind = "exponential"
)

// ParseMAKind accepts "simple"/"sma" and "exponential"/"ema".
func ParseMAKind(s string) (MAKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple", "sma":
		return Simple, nil
	case "exponential", "ema", "exp":
		return Exponential, nil
	}
	return "", fmt.Errorf("unknown moving average kind %q", s)
}

// Weights returns the normalized convolution kernel for an n-period average.
// Simple is uniform; Exponential is proportional to exp(linspace(-1, 0, n)).
// weights[m] multiplies the sample m bars back from the output position.
func Weights(n int, kind MAKind) []float64 {
	w := make([]float64, n)
	if kind == Exponential && n > 1 {
		step := 1.0 / float64(n-1)
		for i := range w {
			w[i] = math.Exp(-1.0 + float64(i)*step)
		}
	} else {
		for i := range w {
			w[i] = 1.0
		}
	}

	var sum float64
	for _, v := range w {
		sum += v
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// MovingAverage computes an n-period moving average as a causal convolution
// truncated to len(x):
//
//	out[k] = Σ_{m=0}^{min(k, n-1)} w[m] * x[k-m]
//
// The first n positions are not partial-window averages: they are all set to
// out[n], so the series starts flat instead of ramping up from zero.
// Requires len(x) >= n+1.
func MovingAverage(x []float64, n int, kind MAKind) ([]float64, error) {
	if n < 1 {
		return nil, &InsufficientDataError{Indicator: "moving_average", Need: 2, Have: len(x)}
	}
	if err := requireLen("moving_average", len(x), n+1); err != nil {
		return nil, err
	}

	w := Weights(n, kind)
	out := make([]float64, len(x))
	for k := n; k < len(x); k++ {
		var acc float64
		for m := 0; m < n; m++ {
			acc += w[m] * x[k-m]
		}
		out[k] = acc
	}
	for k := 0; k < n; k++ {
		out[k] = out[n]
	}
	return out, nil
}
