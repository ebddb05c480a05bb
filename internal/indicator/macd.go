package indicator

import "fmt"

// MACDResult holds the moving average convergence/divergence family.
type MACDResult struct {
	EMASlow []float64 `json:"ema_slow"`
	EMAFast []float64 `json:"ema_fast"`
	Line    []float64 `json:"line"` // EMAFast - EMASlow
}

// MACD computes the slow and fast exponential averages of prices and their
// difference. Conventional periods are slow=26, fast=12.
func MACD(prices []float64, slow, fast int) (*MACDResult, error) {
	longest := slow
	if fast > longest {
		longest = fast
	}
	if err := requireLen("macd", len(prices), longest+1); err != nil {
		return nil, err
	}
	emaSlow, err := MovingAverage(prices, slow, Exponential)
	if err != nil {
		return nil, fmt.Errorf("macd slow: %w", err)
	}
	emaFast, err := MovingAverage(prices, fast, Exponential)
	if err != nil {
		return nil, fmt.Errorf("macd fast: %w", err)
	}
	line := make([]float64, len(prices))
	for i := range line {
		line[i] = emaFast[i] - emaSlow[i]
	}
	return &MACDResult{EMASlow: emaSlow, EMAFast: emaFast, Line: line}, nil
}
