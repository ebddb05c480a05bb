package strategy

import (
	"sort"

	"signalbench/internal/indicator"
	"signalbench/internal/matching"
	"signalbench/internal/model"
)

const DirectionChangeBackwardName = "direction_backward"

// DirectionChangeBackward classifies each direction change by looking back
// to the nearest crossover strictly before it. A direction change reached
// by a falling oscillator is a buy, a rising one a sell. Direction changes
// with no earlier crossover are skipped.
type DirectionChangeBackward struct{}

func (DirectionChangeBackward) Name() string { return DirectionChangeBackwardName }

func (DirectionChangeBackward) ComputeCandidates(_ *model.PriceSeries, set *indicator.Set) (buys, sells []int) {
	crosses := model.Indices(set.SignalCrosses)
	osc := set.Oscillator

	for _, dc := range model.Indices(set.DirectionChanges) {
		j := sort.SearchInts(crosses, dc) - 1
		if j < 0 {
			continue
		}
		if osc[crosses[j]] > osc[dc] {
			buys = appendUnique(buys, dc)
		} else {
			sells = appendUnique(sells, dc)
		}
	}
	return buys, sells
}

func (DirectionChangeBackward) BuyConfidence(set *indicator.Set, buys []int) []float64 {
	return oscillatorConfidence(set, buys)
}

func (DirectionChangeBackward) Matcher() matching.Matcher {
	return matching.FutureQualifying{Basis: matching.BasisOscillator}
}

func (DirectionChangeBackward) IndicatorParams(base indicator.Params) indicator.Params {
	return base.WithoutMACD()
}
