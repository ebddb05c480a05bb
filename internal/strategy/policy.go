// Package strategy provides the decision policies that turn structural
// indicator events into buy/sell candidates.
//
// A Policy reads an immutable PriceSeries and its indicator.Set and returns
// candidate indices. Each policy names the matcher that pairs its candidates
// into orders, since the pairing rule is part of how its signals are meant
// to be read.
package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"signalbench/internal/indicator"
	"signalbench/internal/matching"
	"signalbench/internal/model"
)

// Policy is the interface that all decision policies implement.
type Policy interface {
	// Name returns the unique name of the policy.
	Name() string

	// ComputeCandidates returns ascending, de-duplicated buy and sell indices.
	ComputeCandidates(series *model.PriceSeries, set *indicator.Set) (buys, sells []int)

	// BuyConfidence returns one weight in [0, 10] per buy.
	BuyConfidence(set *indicator.Set, buys []int) []float64

	// Matcher returns the pairing rule for this policy's candidates.
	Matcher() matching.Matcher

	// IndicatorParams adjusts base to the indicator families the policy
	// reads, so a run never requires lookback for an unused indicator.
	IndicatorParams(base indicator.Params) indicator.Params
}

var registry = map[string]func() Policy{
	CrossoverForwardName:        func() Policy { return CrossoverForward{} },
	DirectionChangeBackwardName: func() Policy { return DirectionChangeBackward{} },
	MACDZeroCrossName:           func() Policy { return MACDZeroCross{} },
}

// DefaultPolicy is used when no policy is named.
const DefaultPolicy = CrossoverForwardName

// ByName returns the policy registered under name. Empty selects DefaultPolicy.
func ByName(name string) (Policy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultPolicy
	}
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown policy %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// Names lists the registered policy names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// oscillatorConfidence weights a buy by how oversold the oscillator was:
// 10 - floor(osc/10), clamped to [0, 10].
func oscillatorConfidence(set *indicator.Set, buys []int) []float64 {
	out := make([]float64, len(buys))
	for i, b := range buys {
		c := 10 - math.Floor(set.Oscillator[b]/10)
		out[i] = math.Max(0, math.Min(10, c))
	}
	return out
}

// appendUnique appends idx unless it repeats the previous element.
func appendUnique(list []int, idx int) []int {
	if n := len(list); n > 0 && list[n-1] == idx {
		return list
	}
	return append(list, idx)
}
