// Package pipeline composes the evaluation stages for one price series:
// indicators → events → policy candidates → matching → evaluation.
//
// Run is synchronous and performs no I/O. Every stage reads the outputs of
// the stage before it and never modifies them, so a Result can be shared
// between goroutines once returned.
package pipeline

import (
	"fmt"
	"sort"
	"time"

	"signalbench/internal/evaluator"
	"signalbench/internal/indicator"
	"signalbench/internal/matching"
	"signalbench/internal/model"
	"signalbench/internal/strategy"
)

// Options tunes a pipeline run.
type Options struct {
	// Params is the base indicator configuration. The policy enables or
	// drops the families it does not read before Compute runs.
	Params indicator.Params

	// Matcher overrides the policy's own pairing rule when non-nil.
	Matcher matching.Matcher
}

// DefaultOptions returns indicator.DefaultParams and the policy's matcher.
func DefaultOptions() Options {
	return Options{Params: indicator.DefaultParams()}
}

// Result holds the series snapshot and the output of every stage.
type Result struct {
	Series  *model.PriceSeries `json:"-"`
	Policy  string             `json:"policy"`
	Matcher string             `json:"matcher"`

	Set *indicator.Set `json:"indicators"`

	Buys       []int     `json:"buys"`
	Sells      []int     `json:"sells"`
	Confidence []float64 `json:"confidence"`

	Orders     []model.Order           `json:"orders"`
	Evaluation *model.EvaluationResult `json:"evaluation"`
}

// Run evaluates policy over series.
func Run(series *model.PriceSeries, policy strategy.Policy, opts Options) (*Result, error) {
	if policy == nil {
		return nil, fmt.Errorf("pipeline: nil policy")
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", series.Ticker, err)
	}

	set, err := indicator.Compute(series, policy.IndicatorParams(opts.Params))
	if err != nil {
		return nil, fmt.Errorf("pipeline indicators: %w", err)
	}

	buys, sells := policy.ComputeCandidates(series, set)
	confidence := policy.BuyConfidence(set, buys)

	matcher := opts.Matcher
	if matcher == nil {
		matcher = policy.Matcher()
	}
	orders := matcher.Match(series, set, buys, sells, confidence)

	eval, err := evaluator.Evaluate(series, orders)
	if err != nil {
		return nil, fmt.Errorf("pipeline evaluate: %w", err)
	}

	return &Result{
		Series:     series,
		Policy:     policy.Name(),
		Matcher:    matcher.Name(),
		Set:        set,
		Buys:       buys,
		Sells:      sells,
		Confidence: confidence,
		Orders:     orders,
		Evaluation: eval,
	}, nil
}

// RecentEvents returns up to lastN structural events, newest first.
func (r *Result) RecentEvents(lastN int) []model.StructuralEvent {
	events := r.Set.Events()
	sort.SliceStable(events, func(i, j int) bool { return events[i].Index > events[j].Index })
	if lastN >= 0 && len(events) > lastN {
		events = events[:lastN]
	}
	return events
}

// BarsSinceLastOrder reports how many bars separate the last bar from the
// latest order's buy and sell. ok is false when there are no orders.
func (r *Result) BarsSinceLastOrder() (sinceBuy, sinceSell int, ok bool) {
	if len(r.Orders) == 0 {
		return 0, 0, false
	}
	last := r.Series.Len() - 1
	o := r.Orders[len(r.Orders)-1]
	return last - o.BuyIndex, last - o.SellIndex, true
}

// Summary condenses the result into a storable model.Summary.
func (r *Result) Summary(runID string, evaluatedAt time.Time) *model.Summary {
	s := r.Series
	sum := &model.Summary{
		RunID:          runID,
		Ticker:         s.Ticker,
		Span:           s.Span,
		Policy:         r.Policy,
		Bars:           s.Len(),
		FirstDate:      s.Date(0),
		LastDate:       s.Last().Date,
		LastOpen:       s.Last().Open,
		Events:         len(r.Set.DirectionChanges) + len(r.Set.SignalCrosses) + len(r.Set.ZeroCrosses),
		Trades:         len(r.Orders),
		TotalValue:     r.Evaluation.TotalValue,
		PerformancePct: r.Evaluation.PerformancePct,
		Orders:         r.Orders,
		EvaluatedAt:    evaluatedAt.UTC(),
	}
	if n := len(r.Orders); n > 0 {
		buy := s.Date(r.Orders[n-1].BuyIndex)
		sell := s.Date(r.Orders[n-1].SellIndex)
		sum.LastBuy = &buy
		sum.LastSell = &sell
	}
	return sum
}
