package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PriceBar is one daily (or resampled) OHLCV bar.
// Prices are float64 in the instrument's quote currency; AdjClose carries
// split/dividend adjustments when the source provides them, else equals Close.
type PriceBar struct {
	Date     time.Time `json:"date"` // trading day, UTC midnight
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// JSON returns the JSON-encoded bar (ignoring errors).
func (b *PriceBar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// PriceSeries is an immutable snapshot of bars for one ticker and span.
// Dates are strictly increasing; index order is date order.
type PriceSeries struct {
	Ticker string     `json:"ticker"`
	Span   Span       `json:"span"`
	Bars   []PriceBar `json:"bars"`
}

// ErrEmptySeries is returned by Validate for a series without bars.
var ErrEmptySeries = errors.New("price series is empty")

// Validate checks the ordering invariant: one bar per date, ascending.
func (s *PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("%s: bar %d (%s) not after bar %d (%s)", s.Ticker,
				i, s.Bars[i].Date.Format("2006-01-02"), i-1, s.Bars[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

func (s *PriceSeries) Len() int { return len(s.Bars) }

// Date returns the date of bar i.
func (s *PriceSeries) Date(i int) time.Time { return s.Bars[i].Date }

// Last returns the final bar. Callers must check Len() first.
func (s *PriceSeries) Last() PriceBar { return s.Bars[len(s.Bars)-1] }

// Opens returns the open prices as a fresh slice.
func (s *PriceSeries) Opens() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Open
	}
	return out
}

// Closes returns the close prices as a fresh slice.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// AdjCloses returns the adjusted close prices as a fresh slice.
func (s *PriceSeries) AdjCloses() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.AdjClose
	}
	return out
}

// Key returns "ticker:span", used for cache keys and log lines.
func (s *PriceSeries) Key() string {
	return s.Ticker + ":" + string(s.Span)
}
