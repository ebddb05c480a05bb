package matching

import (
	"signalbench/internal/indicator"
	"signalbench/internal/model"
)

// Basis is the series a FutureQualifying matcher compares at buy and sell.
type Basis string

const (
	BasisPrice      Basis = "price"      // adjusted close
	BasisOscillator Basis = "oscillator" // Set.Oscillator
)

// FutureQualifying pairs each buy with the earliest sell on or after it
// whose basis value strictly exceeds the value at the buy. Buys with no
// qualifying sell are dropped. Trades may overlap.
type FutureQualifying struct {
	Basis Basis
}

func (f FutureQualifying) Name() string { return "future_" + string(f.basis()) }

func (f FutureQualifying) basis() Basis {
	if f.Basis == "" {
		return BasisOscillator
	}
	return f.Basis
}

func (f FutureQualifying) Match(series *model.PriceSeries, set *indicator.Set, buys, sells []int, confidence []float64) []model.Order {
	var values []float64
	if f.basis() == BasisPrice || set == nil {
		values = series.AdjCloses()
	} else {
		values = set.Oscillator
	}

	var orders []model.Order
	for k, b := range buys {
		for _, s := range sells {
			if s < b {
				continue
			}
			if values[s] > values[b] {
				orders = append(orders, model.Order{
					BuyIndex:   b,
					SellIndex:  s,
					Confidence: confidenceAt(confidence, k),
				})
				break
			}
		}
	}
	return orders
}
