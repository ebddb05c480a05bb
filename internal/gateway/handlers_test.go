package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"signalbench/internal/batch"
	"signalbench/internal/metrics"
	"signalbench/internal/model"
	"signalbench/internal/pipeline"
)

type memSource struct {
	series map[string]*model.PriceSeries
}

func (m *memSource) GetSeries(_ context.Context, ticker string, _, _ time.Time) (*model.PriceSeries, error) {
	s, ok := m.series[ticker]
	if !ok {
		return nil, fmt.Errorf("mem %s: %w", ticker, model.ErrEmptySeries)
	}
	return s, nil
}

func waveSeries(ticker string, n int, phase float64) *model.PriceSeries {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, n)
	for i := range bars {
		p := 100 + 10*math.Sin(float64(i)/5+phase) + 0.05*float64(i)
		bars[i] = model.PriceBar{Date: start.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p, AdjClose: p, Volume: 1000}
	}
	return &model.PriceSeries{Ticker: ticker, Span: model.SpanDaily, Bars: bars}
}

// vShapeSeries falls 100 → 80 and climbs back to 100 over 21 bars.
func vShapeSeries(ticker string) *model.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, 21)
	for i := range bars {
		p := 100 - 2*float64(i)
		if i > 10 {
			p = 80 + 2*float64(i-10)
		}
		bars[i] = model.PriceBar{Date: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, AdjClose: p, Volume: 1000}
	}
	return &model.PriceSeries{Ticker: ticker, Span: model.SpanDaily, Bars: bars}
}

type memCache struct {
	mu   sync.Mutex
	sums map[string]*model.Summary
}

func (c *memCache) SaveSummary(_ context.Context, s *model.Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sums[s.CacheKey()] = s
	return nil
}

func (c *memCache) GetSummary(_ context.Context, key string) (*model.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sums[key], nil
}

func newTestServer(t *testing.T) (*Server, *memCache, *metrics.Metrics, *httptest.Server) {
	t.Helper()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	cache := &memCache{sums: make(map[string]*model.Summary)}
	src := &memSource{series: map[string]*model.PriceSeries{
		"WAV":  waveSeries("WAV", 300, 0),
		"WAV2": waveSeries("WAV2", 300, 1.5),
		"VEE":  vShapeSeries("VEE"),
	}}
	hub := NewHub(m)
	runner := &batch.Runner{
		Source:  src,
		Options: pipeline.DefaultOptions(),
		Workers: 2,
		Cache:   cache,
		Metrics: m,
		OnResult: func(_ context.Context, _ *pipeline.Result, sum *model.Summary) {
			hub.Publish(sum)
		},
	}
	s := NewServer(hub, runner)
	s.Cache = cache
	s.Metrics = m

	mux := http.NewServeMux()
	RegisterRoutes(mux, s)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return s, cache, m, ts
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestEvaluate_MissThenHit(t *testing.T) {
	s, cache, m, ts := newTestServer(t)

	var first EvaluateResponse
	if code := getJSON(t, ts.URL+"/api/evaluate?ticker=wav&span=daily&policy=macd_zero", &first); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if first.Cached || first.Summary == nil {
		t.Fatalf("first response = %+v, want fresh evaluation", first)
	}
	if first.Summary.Ticker != "WAV" || first.Summary.Policy != "macd_zero" || first.Summary.Bars != 300 {
		t.Errorf("summary = %+v", first.Summary)
	}
	if first.Matcher == "" {
		t.Error("fresh evaluation should name its matcher")
	}
	if _, ok := cache.sums["eval:macd_zero:daily:WAV"]; !ok {
		t.Error("summary was not cached")
	}
	if got := s.Hub.GetChannelSeq("eval:macd_zero:daily:WAV"); got != 1 {
		t.Errorf("hub channel seq = %d, want 1", got)
	}

	var second EvaluateResponse
	getJSON(t, ts.URL+"/api/evaluate?ticker=WAV&policy=macd_zero", &second)
	if !second.Cached || second.Summary.Trades != first.Summary.Trades {
		t.Errorf("second response = %+v, want cached copy", second)
	}

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}

	// force bypasses the cache
	var forced EvaluateResponse
	getJSON(t, ts.URL+"/api/evaluate?ticker=WAV&policy=macd_zero&force=1", &forced)
	if forced.Cached {
		t.Error("force=1 must re-evaluate")
	}
}

func TestEvaluate_BadRequests(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"bad_span", "ticker=WAV&span=hourly", http.StatusBadRequest},
		{"bad_policy", "ticker=WAV&policy=nope", http.StatusBadRequest},
		{"unknown_ticker", "ticker=NONE", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			if code := getJSON(t, ts.URL+"/api/evaluate?"+tt.query, &body); code != tt.want {
				t.Errorf("status = %d, want %d (%v)", code, tt.want, body)
			}
			if body["error"] == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestRank(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	var resp RankResponse
	if code := getJSON(t, ts.URL+"/api/rank?tickers=WAV,WAV2,NONE", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(resp.Ranked) != 2 {
		t.Fatalf("ranked = %+v, want 2 entries", resp.Ranked)
	}
	if resp.Ranked[0].Score > resp.Ranked[1].Score {
		t.Errorf("ranking not ascending: %+v", resp.Ranked)
	}
	if _, ok := resp.Skipped["NONE"]; !ok {
		t.Errorf("skipped = %v, want NONE", resp.Skipped)
	}

	var bad map[string]string
	if code := getJSON(t, ts.URL+"/api/rank?universe=dow", &bad); code != http.StatusBadRequest {
		t.Errorf("unknown universe status = %d", code)
	}
}

func TestPolicies(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	var got []PolicyInfo
	getJSON(t, ts.URL+"/api/policies", &got)
	if len(got) != 3 {
		t.Fatalf("policies = %+v", got)
	}
	defaults := 0
	for _, p := range got {
		if p.Matcher == "" {
			t.Errorf("%s has no matcher", p.Name)
		}
		if p.Default {
			defaults++
		}
	}
	if defaults != 1 {
		t.Errorf("default policies = %d, want 1", defaults)
	}
}

func TestMissedAndHistory(t *testing.T) {
	s, _, _, ts := newTestServer(t)
	sum := testSummary("GLD", "crossover_forward", model.SpanDaily, time.Now().UTC())
	s.Hub.Publish(sum)
	s.Hub.Publish(sum)

	var envs []envelope
	if code := getJSON(t, ts.URL+"/api/missed?channel="+sum.CacheKey()+"&from=2&to=2", &envs); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(envs) != 1 || envs[0].ChannelSeq != 2 {
		t.Errorf("missed = %+v", envs)
	}

	if code := getJSON(t, ts.URL+"/api/missed?channel=x", nil); code != http.StatusBadRequest {
		t.Errorf("missing range status = %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/history", nil); code != http.StatusServiceUnavailable {
		t.Errorf("history without journal status = %d", code)
	}
}

func TestHealthAndCORS(t *testing.T) {
	s, _, _, ts := newTestServer(t)
	s.Ping = func(context.Context) error { return fmt.Errorf("redis down") }

	var body map[string]interface{}
	getJSON(t, ts.URL+"/health", &body)
	if body["status"] != "degraded" || body["cache"] != "redis down" {
		t.Errorf("health = %v", body)
	}

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/policies", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight: %d %v", resp.StatusCode, resp.Header)
	}
}

func TestWebSocket_SubscribeAndFilter(t *testing.T) {
	s, _, m, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(SubscribeMsg{Type: "SUBSCRIBE", ReqID: "r1", Tickers: []string{"GLD"}}); err != nil {
		t.Fatal(err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var snap SnapshotResponse
	if err := json.Unmarshal(msg, &snap); err != nil || snap.Type != "SNAPSHOT" || snap.ReqID != "r1" {
		t.Fatalf("snapshot = %s (%v)", msg, err)
	}
	if got := testutil.ToFloat64(m.WSClients); got != 1 {
		t.Errorf("ws clients gauge = %v, want 1", got)
	}

	at := time.Now().UTC()
	s.Hub.Publish(testSummary("SPY", "crossover_forward", model.SpanDaily, at))
	s.Hub.Publish(testSummary("GLD", "crossover_forward", model.SpanDaily, at))

	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(string(msg), "\n") {
		var env envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			t.Fatalf("bad frame line %q: %v", line, err)
		}
		if env.Channel != "eval:crossover_forward:daily:GLD" {
			t.Errorf("received unsubscribed channel %s", env.Channel)
		}
	}
}

func TestEvaluate_ShortSeriesZonesAndSupport(t *testing.T) {
	_, _, _, ts := newTestServer(t)

	var resp EvaluateResponse
	if code := getJSON(t, ts.URL+"/api/evaluate?ticker=VEE&policy=crossover_forward&events=10", &resp); code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for a 21-bar series", code)
	}
	var trough *EventOut
	for i := range resp.RecentEvents {
		e := &resp.RecentEvents[i]
		if e.Kind == model.DirectionChange && e.Index == 9 {
			trough = e
		}
		if e.Kind != model.DirectionChange && e.Zone != "" {
			t.Errorf("zone set on %s event: %+v", e.Kind, e)
		}
	}
	if trough == nil || trough.Zone != "oversold" {
		t.Fatalf("recent events = %+v, want oversold direction change at 9", resp.RecentEvents)
	}

	if resp.Support == nil {
		t.Fatal("expected support levels")
	}
	if resp.Support.Levels["0"] != 100 || resp.Support.Levels["100"] != 80 {
		t.Errorf("support levels = %v", resp.Support.Levels)
	}
	if _, ok := resp.Support.Levels["61.8"]; !ok {
		t.Errorf("missing 61.8 level: %v", resp.Support.Levels)
	}

	// macd_zero needs more history than VEE has.
	if code := getJSON(t, ts.URL+"/api/evaluate?ticker=VEE&policy=macd_zero", nil); code != http.StatusUnprocessableEntity {
		t.Errorf("macd_zero status = %d, want 422", code)
	}
}
