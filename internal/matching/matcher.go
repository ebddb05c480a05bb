// Package matching pairs buy candidates with later sell candidates.
//
// Candidate indices are assumed ascending; since PriceSeries index order is
// date order, comparing indices is comparing dates.
package matching

import (
	"fmt"
	"strings"

	"signalbench/internal/indicator"
	"signalbench/internal/model"
)

// Matcher turns candidate buy/sell indices into an order list.
// confidence is parallel to buys; the returned orders carry the confidence
// of the buy they were built from.
type Matcher interface {
	Name() string
	Match(series *model.PriceSeries, set *indicator.Set, buys, sells []int, confidence []float64) []model.Order
}

// ByName returns the matcher registered under name.
// "future" defaults to the oscillator basis.
func ByName(name string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cursor", "cursor_walk":
		return CursorWalk{}, nil
	case "future", "future_oscillator":
		return FutureQualifying{Basis: BasisOscillator}, nil
	case "future_price":
		return FutureQualifying{Basis: BasisPrice}, nil
	}
	return nil, fmt.Errorf("unknown matcher %q", name)
}

func confidenceAt(confidence []float64, k int) float64 {
	if k < len(confidence) {
		return confidence[k]
	}
	return 0
}
