package indicator

// Oscillator computes the n-period relative strength index using Wilder's
// smoothing. Indices [0, n) carry the seed value computed from the average
// gain and loss of the first n deltas; from index n on each bar updates
//
//	avgGain = (avgGain*(n-1) + gain) / n
//	avgLoss = (avgLoss*(n-1) + loss) / n
//
// An average loss of zero yields 100 (all-gain window). Output length equals
// input length; values lie in [0, 100].
func Oscillator(prices []float64, n int) ([]float64, error) {
	if n < 1 {
		return nil, &InsufficientDataError{Indicator: "oscillator", Need: 2, Have: len(prices)}
	}
	if err := requireLen("oscillator", len(prices), n+1); err != nil {
		return nil, err
	}

	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		gain, loss := split(prices[i] - prices[i-1])
		avgGain += gain
		avgLoss += loss
	}
	p := float64(n)
	avgGain /= p
	avgLoss /= p

	out := make([]float64, len(prices))
	seed := strength(avgGain, avgLoss)
	for i := 0; i < n; i++ {
		out[i] = seed
	}

	for i := n; i < len(prices); i++ {
		gain, loss := split(prices[i] - prices[i-1])
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = strength(avgGain, avgLoss)
	}
	return out, nil
}

// split returns the (gain, loss) magnitudes of a price delta.
func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func strength(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
