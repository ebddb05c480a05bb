package indicator

// FibLevels are the retracement percentages drawn between the low and high
// of the lookback window.
var FibLevels = []float64{0, 14.6, 23.6, 38.2, 50, 61.8, 100}

// Retracement describes support/resistance levels over a lookback window.
// Start and End are absolute indices of the earlier and later extreme.
type Retracement struct {
	Start  int       `json:"start"`
	End    int       `json:"end"`
	Levels []float64 `json:"levels"` // one price per FibLevels entry
}

// FibonacciRetracement finds the minimum and maximum of the last n prices
// and interpolates FibLevels between the chronologically first and second
// extreme.
func FibonacciRetracement(prices []float64, n int) (*Retracement, error) {
	if n < 1 {
		n = 1
	}
	if err := requireLen("fibonacci_retracement", len(prices), n); err != nil {
		return nil, err
	}
	offset := len(prices) - n
	window := prices[offset:]

	minIdx, maxIdx := 0, 0
	for i, v := range window {
		if v < window[minIdx] {
			minIdx = i
		}
		if v > window[maxIdx] {
			maxIdx = i
		}
	}
	t1, t2 := minIdx, maxIdx
	if t2 < t1 {
		t1, t2 = t2, t1
	}
	p1, p2 := window[t1], window[t2]
	diff := p2 - p1

	levels := make([]float64, len(FibLevels))
	for i, pct := range FibLevels {
		levels[i] = p1 + diff*pct/100.0
	}
	return &Retracement{Start: offset + t1, End: offset + t2, Levels: levels}, nil
}
