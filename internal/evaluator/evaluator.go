// Package evaluator scores an order list against the asset's own open prices.
package evaluator

import (
	"fmt"

	"signalbench/internal/model"
)

// Evaluate computes per-trade value, total value, performance percent and
// the cumulative value curve for orders.
//
//	perTrade[k] = confidence[k] * (open[sell[k]] - open[buy[k]])
//	pct         = 100 * Σ perTrade / open[last]
//
// An empty order list yields a zero result. A zero final open yields 0%.
func Evaluate(series *model.PriceSeries, orders []model.Order) (*model.EvaluationResult, error) {
	res := &model.EvaluationResult{
		PerTrade:        make([]float64, 0, len(orders)),
		CumulativeCurve: make([]model.CurvePoint, 0, len(orders)),
	}
	if len(orders) == 0 {
		return res, nil
	}
	n := series.Len()

	var running float64
	for k, o := range orders {
		if o.BuyIndex < 0 || o.BuyIndex >= n || o.SellIndex < 0 || o.SellIndex >= n {
			return nil, fmt.Errorf("evaluate %s: order %d (%d→%d) outside %d bars",
				series.Key(), k, o.BuyIndex, o.SellIndex, n)
		}
		v := o.Confidence * (series.Bars[o.SellIndex].Open - series.Bars[o.BuyIndex].Open)
		running += v
		res.PerTrade = append(res.PerTrade, v)
		res.CumulativeCurve = append(res.CumulativeCurve, model.CurvePoint{
			Date:  series.Date(o.SellIndex),
			Value: running,
		})
	}
	res.TotalValue = running

	if last := series.Last().Open; last != 0 {
		res.PerformancePct = 100 * running / last
	}
	return res, nil
}
