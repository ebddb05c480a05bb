package indicator

import (
	"fmt"

	"signalbench/internal/model"
)

// Params configures Compute.
type Params struct {
	OscPeriod  int    // oscillator lookback (default 7)
	MAPeriod   int    // oscillator moving-average period (default 10)
	MAKind     MAKind // oscillator moving-average weighting (default exponential)
	MACDSlow   int    // 0 disables the MACD family
	MACDFast   int
	BandLength int // 0 disables Bollinger bands
	BandStd    float64

	// SupportWindow is the Fibonacci retracement lookback; 0 disables it.
	// Series shorter than the window use every bar.
	SupportWindow int
}

// Conventional MACD periods.
const (
	DefaultMACDSlow = 26
	DefaultMACDFast = 12
)

// WithMACD returns p with the MACD family enabled, keeping configured
// periods when present.
func (p Params) WithMACD() Params {
	if p.MACDSlow <= 0 {
		p.MACDSlow = DefaultMACDSlow
	}
	if p.MACDFast <= 0 {
		p.MACDFast = DefaultMACDFast
	}
	return p
}

// WithoutMACD returns p with the MACD family disabled.
func (p Params) WithoutMACD() Params {
	p.MACDSlow = 0
	return p
}

// DefaultParams returns the parameters used by the evaluation pipeline.
func DefaultParams() Params {
	return Params{
		OscPeriod: 7,
		MAPeriod:  10,
		MAKind:    Exponential,
		MACDSlow:  DefaultMACDSlow,
		MACDFast:  DefaultMACDFast,
		BandStd:   2,

		SupportWindow: 90,
	}
}

// Set is the read-only indicator bundle for one PriceSeries snapshot.
// Every slice is index-aligned with the series bars.
type Set struct {
	Params Params `json:"params"`

	Oscillator   []float64 `json:"oscillator"`
	OscillatorMA []float64 `json:"oscillator_ma"`
	Derivative   []float64 `json:"derivative"`

	MACD    *MACDResult  `json:"macd,omitempty"`
	Bands   *Bands       `json:"bands,omitempty"`
	Support *Retracement `json:"support,omitempty"`

	DirectionChanges []model.StructuralEvent `json:"direction_changes"`
	SignalCrosses    []model.StructuralEvent `json:"signal_crosses"`
	ZeroCrosses      []model.StructuralEvent `json:"zero_crosses,omitempty"`

	// Direction changes below OversoldLevel / above OverboughtLevel.
	Oversold   []model.StructuralEvent `json:"oversold,omitempty"`
	Overbought []model.StructuralEvent `json:"overbought,omitempty"`
}

// Zone labels.
const (
	ZoneOversold   = "oversold"
	ZoneOverbought = "overbought"
)

// Compute derives the oscillator family (and optionally MACD and Bollinger
// bands) from the series' adjusted closes, then detects structural events.
func Compute(series *model.PriceSeries, p Params) (*Set, error) {
	prices := series.AdjCloses()

	osc, err := Oscillator(prices, p.OscPeriod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", series.Key(), err)
	}
	kind := p.MAKind
	if kind == "" {
		kind = Exponential
	}
	oscMA, err := MovingAverage(osc, p.MAPeriod, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: oscillator average: %w", series.Key(), err)
	}
	deriv := Gradient(osc)

	set := &Set{
		Params:           p,
		Oscillator:       osc,
		OscillatorMA:     oscMA,
		Derivative:       deriv,
		DirectionChanges: Events(model.DirectionChange, DetectSignChanges(deriv), osc),
		SignalCrosses:    Events(model.SignalCross, Crossovers(osc, oscMA), osc),
	}
	set.Oversold = BelowThreshold(set.DirectionChanges, osc, OversoldLevel)
	set.Overbought = AboveThreshold(set.DirectionChanges, osc, OverboughtLevel)

	if p.MACDSlow > 0 {
		m, err := MACD(prices, p.MACDSlow, p.MACDFast)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", series.Key(), err)
		}
		set.MACD = m
		set.ZeroCrosses = Events(model.ZeroCross, DetectZeroCrossings(m.Line), m.Line)
	}

	if p.BandLength > 0 {
		b, err := Bollinger(prices, p.BandLength, p.BandStd)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", series.Key(), err)
		}
		set.Bands = b
	}

	if p.SupportWindow > 0 {
		n := p.SupportWindow
		if n > len(prices) {
			n = len(prices)
		}
		r, err := FibonacciRetracement(prices, n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", series.Key(), err)
		}
		set.Support = r
	}

	return set, nil
}

// Zone reports whether direction change e turned in oversold or overbought
// territory. Other events report "".
func (s *Set) Zone(e model.StructuralEvent) string {
	if e.Kind != model.DirectionChange {
		return ""
	}
	if containsIndex(s.Oversold, e.Index) {
		return ZoneOversold
	}
	if containsIndex(s.Overbought, e.Index) {
		return ZoneOverbought
	}
	return ""
}

func containsIndex(events []model.StructuralEvent, idx int) bool {
	for _, e := range events {
		if e.Index == idx {
			return true
		}
	}
	return false
}

// Events returns every structural event in the set, ordered by kind then index.
func (s *Set) Events() []model.StructuralEvent {
	out := make([]model.StructuralEvent, 0, len(s.DirectionChanges)+len(s.SignalCrosses)+len(s.ZeroCrosses))
	out = append(out, s.DirectionChanges...)
	out = append(out, s.SignalCrosses...)
	out = append(out, s.ZeroCrosses...)
	return out
}
