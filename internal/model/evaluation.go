package model

import (
	"encoding/json"
	"time"
)

// CurvePoint is one step of the cumulative value curve, dated at the sell.
type CurvePoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// EvaluationResult scores an order list. Recomputed on every call.
type EvaluationResult struct {
	PerTrade        []float64    `json:"per_trade"`
	TotalValue      float64      `json:"total_value"`
	PerformancePct  float64      `json:"performance_pct"`
	CumulativeCurve []CurvePoint `json:"cumulative_curve"`
}

// Summary is the compact, storable outcome of one pipeline run.
// It is what gets cached, journaled, streamed and returned by the API.
type Summary struct {
	RunID          string     `json:"run_id,omitempty"`
	Ticker         string     `json:"ticker"`
	Span           Span       `json:"span"`
	Policy         string     `json:"policy"`
	Bars           int        `json:"bars"`
	FirstDate      time.Time  `json:"first_date"`
	LastDate       time.Time  `json:"last_date"`
	LastOpen       float64    `json:"last_open"`
	Events         int        `json:"events"`
	Trades         int        `json:"trades"`
	TotalValue     float64    `json:"total_value"`
	PerformancePct float64    `json:"performance_pct"`
	Orders         []Order    `json:"orders"`
	LastBuy        *time.Time `json:"last_buy,omitempty"`
	LastSell       *time.Time `json:"last_sell,omitempty"`
	EvaluatedAt    time.Time  `json:"evaluated_at"`
}

// CacheKey returns "eval:{policy}:{span}:{ticker}".
func (s *Summary) CacheKey() string {
	return "eval:" + s.Policy + ":" + string(s.Span) + ":" + s.Ticker
}

// JSON returns the JSON-encoded summary.
func (s *Summary) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
