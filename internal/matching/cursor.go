package matching

import (
	"signalbench/internal/indicator"
	"signalbench/internal/model"
)

// CursorWalk pairs buys and sells in a single pass with at most one open
// trade at a time.
//
// A buy dated before the open trade's sell is discarded. Otherwise the sell
// cursor advances to the first sell strictly after the buy and the pair is
// accepted. When the sells run out, the last sell is reused as a
// placeholder; that trade stays open to the end of the data, so no further
// buys are paired.
type CursorWalk struct{}

func (CursorWalk) Name() string { return "cursor_walk" }

func (CursorWalk) Match(_ *model.PriceSeries, _ *indicator.Set, buys, sells []int, confidence []float64) []model.Order {
	if len(sells) == 0 {
		return nil
	}

	var orders []model.Order
	cursor := 0
	openSell := -1

	for k, b := range buys {
		if openSell >= 0 && b < openSell {
			continue
		}
		for cursor < len(sells) && sells[cursor] <= b {
			cursor++
		}
		if cursor == len(sells) {
			orders = append(orders, model.Order{
				BuyIndex:    b,
				SellIndex:   sells[len(sells)-1],
				Confidence:  confidenceAt(confidence, k),
				Placeholder: true,
			})
			break
		}
		orders = append(orders, model.Order{
			BuyIndex:   b,
			SellIndex:  sells[cursor],
			Confidence: confidenceAt(confidence, k),
		})
		openSell = sells[cursor]
	}
	return orders
}
