package pipeline

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"signalbench/internal/indicator"
	"signalbench/internal/matching"
	"signalbench/internal/model"
	"signalbench/internal/strategy"
)

func seriesFrom(ticker string, prices []float64) *model.PriceSeries {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, len(prices))
	for i, p := range prices {
		bars[i] = model.PriceBar{
			Date: start.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p, AdjClose: p, Volume: 100,
		}
	}
	return &model.PriceSeries{Ticker: ticker, Span: model.SpanDaily, Bars: bars}
}

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(float64(i)/4) + 4*math.Cos(float64(i)*1.3)
	}
	return out
}

func TestRun_InvariantsForEveryPolicy(t *testing.T) {
	series := seriesFrom("WAVE", wave(250))
	for _, name := range strategy.Names() {
		p, _ := strategy.ByName(name)
		res, err := Run(series, p, DefaultOptions())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if res.Policy != name {
			t.Errorf("policy = %q, want %q", res.Policy, name)
		}
		if len(res.Evaluation.PerTrade) != len(res.Orders) {
			t.Errorf("%s: %d per-trade values for %d orders", name, len(res.Evaluation.PerTrade), len(res.Orders))
		}
		b, s, c := model.SplitOrders(res.Orders)
		if len(b) != len(s) || len(s) != len(c) {
			t.Errorf("%s: parallel arrays differ", name)
		}
		for i, o := range res.Orders {
			if o.Confidence < 0 || o.Confidence > 10 {
				t.Errorf("%s: order %d confidence %f", name, i, o.Confidence)
			}
			if !o.Placeholder && series.Date(o.SellIndex).Before(series.Date(o.BuyIndex)) {
				t.Errorf("%s: order %d sells before it buys", name, i)
			}
		}
		for i := 1; i < len(res.Buys); i++ {
			if res.Buys[i] <= res.Buys[i-1] {
				t.Errorf("%s: buys not strictly ascending: %v", name, res.Buys)
			}
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	series := seriesFrom("DET", wave(180))
	p, _ := strategy.ByName(strategy.CrossoverForwardName)

	a, err := Run(series, p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(series, p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Orders, b.Orders) {
		t.Errorf("orders differ between runs:\n%+v\n%+v", a.Orders, b.Orders)
	}
	if a.Evaluation.PerformancePct != b.Evaluation.PerformancePct {
		t.Errorf("performance differs: %f vs %f", a.Evaluation.PerformancePct, b.Evaluation.PerformancePct)
	}
}

func TestRun_MonotonicRiseIsFlat(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	p, _ := strategy.ByName(strategy.CrossoverForwardName)
	res, err := Run(seriesFrom("RISE", prices), p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Buys) != 0 || len(res.Orders) != 0 {
		t.Errorf("buys=%v orders=%v, want none", res.Buys, res.Orders)
	}
	if res.Evaluation.PerformancePct != 0 {
		t.Errorf("pct = %f, want 0", res.Evaluation.PerformancePct)
	}
}

// vShape falls 100 → 80 in steps of 2 and climbs back to 100 (21 bars).
func vShape() []float64 {
	prices := make([]float64, 21)
	for i := 0; i <= 10; i++ {
		prices[i] = 100 - 2*float64(i)
	}
	for i := 11; i <= 20; i++ {
		prices[i] = 80 + 2*float64(i-10)
	}
	return prices
}

func TestRun_VShapeTrough(t *testing.T) {
	series := seriesFrom("VEE", vShape())

	// The oscillator sits at 0 through bar 10 and the average only
	// separates from it at 11, so the single crossover (10) comes after
	// the single direction change (9). crossover_forward reuses the
	// exhausted cursor at 9, and osc[9] == osc[10] == 0 classifies it as
	// a sell. With no buys the cursor walk yields no trade.
	fwd, err := Run(series, strategy.CrossoverForward{}, DefaultOptions())
	if err != nil {
		t.Fatalf("crossover_forward: %v", err)
	}
	if got := model.Indices(fwd.Set.DirectionChanges); !reflect.DeepEqual(got, []int{9}) {
		t.Errorf("direction changes = %v, want [9]", got)
	}
	if got := model.Indices(fwd.Set.SignalCrosses); !reflect.DeepEqual(got, []int{10}) {
		t.Errorf("signal crosses = %v, want [10]", got)
	}
	if fwd.Set.MACD != nil {
		t.Error("crossover_forward should not compute MACD")
	}
	if len(fwd.Buys) != 0 || !reflect.DeepEqual(fwd.Sells, []int{9}) {
		t.Errorf("buys=%v sells=%v, want none / [9]", fwd.Buys, fwd.Sells)
	}
	if len(fwd.Orders) != 0 || fwd.Evaluation.PerformancePct != 0 {
		t.Errorf("orders=%+v pct=%f, want none", fwd.Orders, fwd.Evaluation.PerformancePct)
	}
	if z := fwd.Set.Zone(fwd.Set.DirectionChanges[0]); z != indicator.ZoneOversold {
		t.Errorf("trough turn zone = %q, want oversold", z)
	}

	// direction_backward finds no crossover before the turn at 9.
	back, err := Run(series, strategy.DirectionChangeBackward{}, DefaultOptions())
	if err != nil {
		t.Fatalf("direction_backward: %v", err)
	}
	if len(back.Buys) != 0 || len(back.Sells) != 0 || len(back.Orders) != 0 {
		t.Errorf("buys=%v sells=%v orders=%v, want none", back.Buys, back.Sells, back.Orders)
	}

	// macd_zero needs 27 bars and names the indicator that is short.
	_, err = Run(series, strategy.MACDZeroCross{}, DefaultOptions())
	var ide *indicator.InsufficientDataError
	if !errors.As(err, &ide) || ide.Indicator != "macd" {
		t.Errorf("macd_zero err = %v, want macd insufficient data", err)
	}
}

func TestRun_MACDSingleDownwardFlip(t *testing.T) {
	// A steady 40-bar decline: the back-filled head puts the MACD line at
	// about +5.85, it falls 1 per bar and crosses zero between 17 and 18,
	// then settles near -8.15 and never returns.
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 200 - float64(i)
	}
	opts := DefaultOptions()
	opts.Params.MACDSlow = 0 // the policy enables the MACD family itself

	res, err := Run(seriesFrom("FALL", prices), strategy.MACDZeroCross{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Set.MACD == nil || res.Set.Params.MACDSlow != indicator.DefaultMACDSlow {
		t.Fatalf("MACD not computed: params %+v", res.Set.Params)
	}
	if got := model.Indices(res.Set.ZeroCrosses); !reflect.DeepEqual(got, []int{17}) {
		t.Errorf("zero crosses = %v, want [17]", got)
	}
	if len(res.Buys) != 0 || !reflect.DeepEqual(res.Sells, []int{17}) {
		t.Errorf("buys=%v sells=%v, want none / [17]", res.Buys, res.Sells)
	}
	if len(res.Orders) != 0 || res.Evaluation.TotalValue != 0 {
		t.Errorf("orders=%+v, want none", res.Orders)
	}
}

func TestRun_MatcherOverride(t *testing.T) {
	p, _ := strategy.ByName(strategy.CrossoverForwardName)
	opts := DefaultOptions()
	opts.Matcher = matching.FutureQualifying{Basis: matching.BasisPrice}
	res, err := Run(seriesFrom("OVR", wave(120)), p, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Matcher != "future_price" {
		t.Errorf("matcher = %q, want future_price", res.Matcher)
	}
	for _, o := range res.Orders {
		if res.Series.Bars[o.SellIndex].AdjClose <= res.Series.Bars[o.BuyIndex].AdjClose {
			t.Errorf("order %+v does not qualify on price", o)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	p, _ := strategy.ByName("")
	if _, err := Run(seriesFrom("SHORT", []float64{1, 2, 3}), p, DefaultOptions()); err == nil {
		t.Error("expected insufficient data error")
	}
	if _, err := Run(&model.PriceSeries{Ticker: "EMPTY"}, p, DefaultOptions()); err == nil {
		t.Error("expected empty series error")
	}
	if _, err := Run(seriesFrom("NIL", wave(60)), nil, DefaultOptions()); err == nil {
		t.Error("expected nil policy error")
	}
}

func TestResult_SummaryAndRecentEvents(t *testing.T) {
	series := seriesFrom("SUM", wave(200))
	p, _ := strategy.ByName(strategy.DirectionChangeBackwardName)
	res, err := Run(series, p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	sum := res.Summary("run-1", now)

	if sum.Ticker != "SUM" || sum.Bars != 200 || sum.Policy != strategy.DirectionChangeBackwardName {
		t.Errorf("unexpected summary header %+v", sum)
	}
	if sum.Trades != len(res.Orders) || sum.PerformancePct != res.Evaluation.PerformancePct {
		t.Errorf("summary totals do not match result")
	}
	if sum.CacheKey() != "eval:direction_backward:daily:SUM" {
		t.Errorf("cache key = %q", sum.CacheKey())
	}
	if len(res.Orders) > 0 && (sum.LastBuy == nil || sum.LastSell == nil) {
		t.Error("expected last buy/sell dates")
	}

	recent := res.RecentEvents(5)
	if len(recent) > 5 {
		t.Fatalf("got %d recent events", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].Index > recent[i-1].Index {
			t.Errorf("recent events not newest first: %+v", recent)
		}
	}
}

func TestRank_MostOversoldFirst(t *testing.T) {
	up := make([]float64, 40)
	down := make([]float64, 40)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}
	ranked, skipped := Rank([]*model.PriceSeries{
		seriesFrom("UP", up),
		seriesFrom("DOWN", down),
		seriesFrom("WAVE", wave(40)),
		seriesFrom("TINY", []float64{1, 2}),
	}, indicator.DefaultParams())

	if _, ok := skipped["TINY"]; !ok || len(skipped) != 1 {
		t.Errorf("skipped = %v, want TINY only", skipped)
	}
	if len(ranked) != 3 {
		t.Fatalf("ranked = %+v", ranked)
	}
	if ranked[0].Ticker != "DOWN" || ranked[2].Ticker != "UP" {
		t.Errorf("order = %s, %s, %s", ranked[0].Ticker, ranked[1].Ticker, ranked[2].Ticker)
	}
	if math.Abs(ranked[0].Score) > 1e-9 || math.Abs(ranked[2].Score-100) > 1e-9 {
		t.Errorf("scores = %f / %f, want 0 / 100", ranked[0].Score, ranked[2].Score)
	}
}
