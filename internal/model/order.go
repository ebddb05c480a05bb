package model

// Order is one matched round trip: buy at BuyIndex, sell at SellIndex.
// SellIndex is never dated before BuyIndex unless Placeholder is set,
// in which case the last available sell was reused to keep the trade
// list aligned.
type Order struct {
	BuyIndex    int     `json:"buy_index"`
	SellIndex   int     `json:"sell_index"`
	Confidence  float64 `json:"confidence"` // 0..10
	Placeholder bool    `json:"placeholder,omitempty"`
}

// SplitOrders returns the parallel cleanBuy, cleanSell and confidence arrays.
func SplitOrders(orders []Order) (buys, sells []int, confidence []float64) {
	buys = make([]int, len(orders))
	sells = make([]int, len(orders))
	confidence = make([]float64, len(orders))
	for i, o := range orders {
		buys[i] = o.BuyIndex
		sells[i] = o.SellIndex
		confidence[i] = o.Confidence
	}
	return buys, sells, confidence
}
