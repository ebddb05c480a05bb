package strategy

import (
	"signalbench/internal/indicator"
	"signalbench/internal/matching"
	"signalbench/internal/model"
)

const MACDZeroCrossName = "macd_zero"

// MACDZeroCross emits a buy where the MACD line turns upward through zero
// and a sell where it turns downward. A line that rests on zero before
// changing side is one crossing, at its last zero. Buys carry full
// confidence. A Set computed without the MACD family yields no candidates.
type MACDZeroCross struct{}

func (MACDZeroCross) Name() string { return MACDZeroCrossName }

func (MACDZeroCross) ComputeCandidates(_ *model.PriceSeries, set *indicator.Set) (buys, sells []int) {
	if set.MACD == nil {
		return nil, nil
	}
	line := set.MACD.Line
	for _, e := range set.ZeroCrosses {
		k := e.Index
		if k+1 >= len(line) {
			continue
		}
		if signum(line[k+1]) > signum(line[k]) {
			buys = appendUnique(buys, k)
		} else {
			sells = appendUnique(sells, k)
		}
	}
	return buys, sells
}

func (MACDZeroCross) BuyConfidence(_ *indicator.Set, buys []int) []float64 {
	out := make([]float64, len(buys))
	for i := range out {
		out[i] = 10
	}
	return out
}

func (MACDZeroCross) Matcher() matching.Matcher { return matching.CursorWalk{} }

func (MACDZeroCross) IndicatorParams(base indicator.Params) indicator.Params {
	return base.WithMACD()
}

func signum(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
