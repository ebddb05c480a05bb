package pipeline

import (
	"fmt"
	"sort"

	"signalbench/internal/indicator"
	"signalbench/internal/model"
)

// Ranked is one ticker's standing at its last bar.
type Ranked struct {
	Ticker       string  `json:"ticker"`
	Score        float64 `json:"score"`
	Oscillator   float64 `json:"oscillator"`
	OscillatorMA float64 `json:"oscillator_ma"`
}

// Rank scores each series by the mean of the oscillator and its moving
// average at the last bar and returns them most oversold first.
// Series that cannot be scored are returned in skipped with their error.
func Rank(series []*model.PriceSeries, params indicator.Params) (ranked []Ranked, skipped map[string]error) {
	skipped = make(map[string]error)
	kind := params.MAKind
	if kind == "" {
		kind = indicator.Exponential
	}
	for _, s := range series {
		if err := s.Validate(); err != nil {
			skipped[s.Ticker] = err
			continue
		}
		osc, err := indicator.Oscillator(s.AdjCloses(), params.OscPeriod)
		if err != nil {
			skipped[s.Ticker] = fmt.Errorf("rank %s: %w", s.Ticker, err)
			continue
		}
		ma, err := indicator.MovingAverage(osc, params.MAPeriod, kind)
		if err != nil {
			skipped[s.Ticker] = fmt.Errorf("rank %s: %w", s.Ticker, err)
			continue
		}
		last := len(osc) - 1
		ranked = append(ranked, Ranked{
			Ticker:       s.Ticker,
			Score:        (osc[last] + ma[last]) / 2,
			Oscillator:   osc[last],
			OscillatorMA: ma[last],
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score < ranked[j].Score })
	return ranked, skipped
}
