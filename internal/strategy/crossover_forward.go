package strategy

import (
	"signalbench/internal/indicator"
	"signalbench/internal/matching"
	"signalbench/internal/model"
)

const CrossoverForwardName = "crossover_forward"

// CrossoverForward scans forward from each oscillator/MA crossover to the
// next direction change.
//
// A single direction-change cursor persists across crossovers. For each
// crossover it advances while the direction change precedes the crossover,
// stopping at the last one when the list runs out. If the oscillator fell
// from the crossover to that direction change the change is a buy,
// otherwise a sell. Signals are emitted at the direction-change index.
// Without direction changes there are no candidates.
type CrossoverForward struct{}

func (CrossoverForward) Name() string { return CrossoverForwardName }

func (CrossoverForward) ComputeCandidates(_ *model.PriceSeries, set *indicator.Set) (buys, sells []int) {
	dcs := model.Indices(set.DirectionChanges)
	if len(dcs) == 0 {
		return nil, nil
	}
	osc := set.Oscillator

	cursor := 0
	for _, cross := range model.Indices(set.SignalCrosses) {
		for cursor < len(dcs)-1 && dcs[cursor] < cross {
			cursor++
		}
		dc := dcs[cursor]
		if osc[dc] < osc[cross] {
			buys = appendUnique(buys, dc)
		} else {
			sells = appendUnique(sells, dc)
		}
	}
	return buys, sells
}

func (CrossoverForward) BuyConfidence(set *indicator.Set, buys []int) []float64 {
	return oscillatorConfidence(set, buys)
}

func (CrossoverForward) Matcher() matching.Matcher { return matching.CursorWalk{} }

func (CrossoverForward) IndicatorParams(base indicator.Params) indicator.Params {
	return base.WithoutMACD()
}
