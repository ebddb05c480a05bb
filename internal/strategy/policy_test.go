package strategy

import (
	"testing"
	"time"

	"signalbench/internal/indicator"
	"signalbench/internal/matching"
	"signalbench/internal/model"
)

func assertInts(t *testing.T, label string, got, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", label, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", label, got, want)
		}
	}
}

// syntheticSet: oscillator dips to 30 at 2 and peaks at 70 at 6.
func syntheticSet() *indicator.Set {
	osc := []float64{50, 40, 30, 35, 45, 60, 70, 65, 55, 50}
	return &indicator.Set{
		Oscillator:       osc,
		DirectionChanges: indicator.Events(model.DirectionChange, []int{0, 2, 6}, osc),
		SignalCrosses:    indicator.Events(model.SignalCross, []int{1, 4, 8}, osc),
	}
}

func TestCrossoverForward_Candidates(t *testing.T) {
	// cross 1 → dc 2 (osc fell 40→30): buy
	// cross 4 → dc 6 (osc rose 45→70): sell
	// cross 8 → dc list exhausted, reuse 6 (70 ≥ 55): sell, deduplicated
	set := syntheticSet()
	p := CrossoverForward{}
	buys, sells := p.ComputeCandidates(nil, set)
	assertInts(t, "buys", buys, []int{2})
	assertInts(t, "sells", sells, []int{6})

	conf := p.BuyConfidence(set, buys)
	if len(conf) != 1 || conf[0] != 7 {
		t.Errorf("confidence = %v, want [7]", conf)
	}
	if _, ok := p.Matcher().(matching.CursorWalk); !ok {
		t.Errorf("matcher = %T, want CursorWalk", p.Matcher())
	}
}

func TestCrossoverForward_NoDirectionChanges(t *testing.T) {
	set := syntheticSet()
	set.DirectionChanges = nil
	buys, sells := CrossoverForward{}.ComputeCandidates(nil, set)
	if len(buys) != 0 || len(sells) != 0 {
		t.Errorf("expected no candidates, got %v / %v", buys, sells)
	}
}

func TestCrossoverForward_MonotonicRiseNoBuys(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, 30)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = model.PriceBar{Date: start.AddDate(0, 0, i), Open: p, Close: p, AdjClose: p}
	}
	series := &model.PriceSeries{Ticker: "RISE", Span: model.SpanDaily, Bars: bars}
	set, err := indicator.Compute(series, indicator.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	oversold := indicator.BelowThreshold(set.DirectionChanges, set.Oscillator, indicator.OversoldLevel)
	if len(oversold) != 0 {
		t.Errorf("oversold direction changes = %v, want none", oversold)
	}
	buys, _ := CrossoverForward{}.ComputeCandidates(series, set)
	if len(buys) != 0 {
		t.Errorf("buys = %v, want none", buys)
	}
}

func TestDirectionChangeBackward_Candidates(t *testing.T) {
	// dc 0 has no earlier crossover: skipped
	// dc 2 ← cross 1 (40 > 30): buy
	// dc 6 ← cross 4 (45 < 70): sell
	set := syntheticSet()
	p := DirectionChangeBackward{}
	buys, sells := p.ComputeCandidates(nil, set)
	assertInts(t, "buys", buys, []int{2})
	assertInts(t, "sells", sells, []int{6})

	m, ok := p.Matcher().(matching.FutureQualifying)
	if !ok || m.Basis != matching.BasisOscillator {
		t.Errorf("matcher = %#v, want FutureQualifying on the oscillator", p.Matcher())
	}
}

func TestOscillatorConfidence_Clamped(t *testing.T) {
	set := &indicator.Set{Oscillator: []float64{0, 5, 30, 99.9, 100}}
	got := oscillatorConfidence(set, []int{0, 1, 2, 3, 4})
	want := []float64{10, 10, 7, 1, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("confidence[%d] = %f, want %f", i, got[i], want[i])
		}
		if got[i] < 0 || got[i] > 10 {
			t.Errorf("confidence[%d] = %f outside [0,10]", i, got[i])
		}
	}
}

func macdSet(line []float64) *indicator.Set {
	return &indicator.Set{
		MACD:        &indicator.MACDResult{Line: line},
		ZeroCrosses: indicator.Events(model.ZeroCross, indicator.DetectZeroCrossings(line), line),
	}
}

func TestMACDZeroCross_SingleDownwardFlip(t *testing.T) {
	buys, sells := MACDZeroCross{}.ComputeCandidates(nil, macdSet([]float64{1, 1, 1, -1, -1, -1, -1}))
	if len(buys) != 0 {
		t.Errorf("buys = %v, want none", buys)
	}
	assertInts(t, "sells", sells, []int{2})
}

func TestMACDZeroCross_UpwardFlips(t *testing.T) {
	p := MACDZeroCross{}
	buys, sells := p.ComputeCandidates(nil, macdSet([]float64{-2, -1, 0, 3, 2, -1}))
	// -1→0→3 is one upward crossing at the zero; 2→-1 at 4 is downward.
	assertInts(t, "buys", buys, []int{2})
	assertInts(t, "sells", sells, []int{4})

	for _, c := range p.BuyConfidence(nil, buys) {
		if c != 10 {
			t.Errorf("confidence = %f, want 10", c)
		}
	}
}

func TestMACDZeroCross_RestingOnZero(t *testing.T) {
	p := MACDZeroCross{}

	// +→0→− is a single sell at the zero.
	buys, sells := p.ComputeCandidates(nil, macdSet([]float64{2, 1, 0, -1, -2}))
	if len(buys) != 0 {
		t.Errorf("buys = %v, want none", buys)
	}
	assertInts(t, "sells", sells, []int{2})

	// touching zero and returning to the same side is no crossing.
	buys, sells = p.ComputeCandidates(nil, macdSet([]float64{0, 0, 1, 0, 0, 2, 1}))
	if len(buys) != 0 || len(sells) != 0 {
		t.Errorf("buys=%v sells=%v, want none", buys, sells)
	}
}

func TestIndicatorParams(t *testing.T) {
	base := indicator.DefaultParams()
	base.MACDSlow = 0

	if got := (MACDZeroCross{}).IndicatorParams(base); got.MACDSlow != indicator.DefaultMACDSlow || got.MACDFast != 12 {
		t.Errorf("macd_zero params = %+v, want MACD enabled", got)
	}
	custom := base
	custom.MACDSlow, custom.MACDFast = 20, 8
	if got := (MACDZeroCross{}).IndicatorParams(custom); got.MACDSlow != 20 || got.MACDFast != 8 {
		t.Errorf("macd_zero overrode configured periods: %+v", got)
	}

	withMACD := indicator.DefaultParams()
	for _, p := range []Policy{CrossoverForward{}, DirectionChangeBackward{}} {
		got := p.IndicatorParams(withMACD)
		if got.MACDSlow != 0 {
			t.Errorf("%s keeps MACD: %+v", p.Name(), got)
		}
		if got.OscPeriod != withMACD.OscPeriod || got.MAPeriod != withMACD.MAPeriod {
			t.Errorf("%s changed oscillator params: %+v", p.Name(), got)
		}
	}
}

func TestMACDZeroCross_WithoutMACD(t *testing.T) {
	buys, sells := MACDZeroCross{}.ComputeCandidates(nil, &indicator.Set{})
	if buys != nil || sells != nil {
		t.Errorf("expected no candidates, got %v / %v", buys, sells)
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		p, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("ByName(%q).Name() = %q", name, p.Name())
		}
	}
	p, err := ByName("")
	if err != nil || p.Name() != DefaultPolicy {
		t.Errorf("ByName(\"\") = %v, %v", p, err)
	}
	if _, err := ByName("momentum"); err == nil {
		t.Error("expected error for unknown policy")
	}
	if len(Names()) != 3 {
		t.Errorf("Names() = %v", Names())
	}
}
