package gateway

import (
	"strconv"
	"time"

	"signalbench/internal/indicator"
	"signalbench/internal/model"
	"signalbench/internal/pipeline"
)

// EventOut is one structural event as returned by /api/evaluate.
type EventOut struct {
	Kind  model.EventKind `json:"kind"`
	Index int             `json:"index"`
	Date  time.Time       `json:"date"`
	Value float64         `json:"value"`
	Zone  string          `json:"zone,omitempty"` // oversold | overbought, direction changes only
}

// EvaluateResponse is the /api/evaluate payload.
type EvaluateResponse struct {
	Cached       bool                `json:"cached"`
	Summary      *model.Summary      `json:"summary"`
	Matcher      string              `json:"matcher,omitempty"`
	RecentEvents []EventOut          `json:"recent_events,omitempty"`
	Curve        []model.CurvePoint  `json:"curve,omitempty"`
	BarsSince    *BarsSinceLastOrder `json:"bars_since_last_order,omitempty"`
	Support      *SupportOut         `json:"support,omitempty"`
}

// SupportOut is the Fibonacci retracement over the support window.
type SupportOut struct {
	From   time.Time          `json:"from"`
	To     time.Time          `json:"to"`
	Levels map[string]float64 `json:"levels"` // keyed by percentage, e.g. "61.8"
}

// BarsSinceLastOrder mirrors pipeline.Result.BarsSinceLastOrder.
type BarsSinceLastOrder struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
}

// RankResponse is the /api/rank payload.
type RankResponse struct {
	Span    model.Span        `json:"span"`
	Ranked  []pipeline.Ranked `json:"ranked"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// PolicyInfo is one entry of /api/policies.
type PolicyInfo struct {
	Name    string `json:"name"`
	Matcher string `json:"matcher"`
	Default bool   `json:"default"`
}

func newEvaluateResponse(res *pipeline.Result, sum *model.Summary, recent int) *EvaluateResponse {
	out := &EvaluateResponse{
		Summary: sum,
		Matcher: res.Matcher,
		Curve:   res.Evaluation.CumulativeCurve,
	}
	for _, e := range res.RecentEvents(recent) {
		out.RecentEvents = append(out.RecentEvents, EventOut{
			Kind: e.Kind, Index: e.Index, Date: res.Series.Date(e.Index), Value: e.Value,
			Zone: res.Set.Zone(e),
		})
	}
	if sup := res.Set.Support; sup != nil {
		out.Support = &SupportOut{
			From:   res.Series.Date(sup.Start),
			To:     res.Series.Date(sup.End),
			Levels: make(map[string]float64, len(sup.Levels)),
		}
		for i, pct := range indicator.FibLevels {
			out.Support.Levels[strconv.FormatFloat(pct, 'f', -1, 64)] = sup.Levels[i]
		}
	}
	if buy, sell, ok := res.BarsSinceLastOrder(); ok {
		out.BarsSince = &BarsSinceLastOrder{Buy: buy, Sell: sell}
	}
	return out
}
