package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"signalbench/internal/batch"
	"signalbench/internal/indicator"
	"signalbench/internal/marketdata/csvfile"
	"signalbench/internal/marketdata/resample"
	"signalbench/internal/metrics"
	"signalbench/internal/model"
	"signalbench/internal/pipeline"
	"signalbench/internal/strategy"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// HistoryReader lists journaled summaries, newest first.
type HistoryReader interface {
	RecentSummaries(ctx context.Context, ticker string, limit int) ([]model.Summary, error)
}

// Server holds the collaborators behind the REST and WS routes.
type Server struct {
	Hub *Hub

	// Runner is a template: each /api/evaluate request runs a copy with
	// the requested policy, span and force flag.
	Runner *batch.Runner

	Cache   model.ResultCache // optional read-through for /api/evaluate
	History HistoryReader     // optional, serves /api/history
	Metrics *metrics.Metrics  // optional
	Ping    func(ctx context.Context) error

	started time.Time
}

// NewServer returns a Server with its uptime clock started.
func NewServer(hub *Hub, runner *batch.Runner) *Server {
	return &Server{Hub: hub, Runner: runner, started: time.Now()}
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// rest wraps a GET handler with CORS preflight handling.
func rest(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			SetCORS(w)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			h(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func RegisterRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		s.Hub.HandleWSRequest(conn, r.URL.Query().Get("last_ts"))
	})

	mux.HandleFunc("/api/evaluate", rest(s.handleEvaluate))
	mux.HandleFunc("/api/rank", rest(s.handleRank))
	mux.HandleFunc("/api/policies", rest(s.handlePolicies))
	mux.HandleFunc("/api/history", rest(s.handleHistory))
	mux.HandleFunc("/api/latest", rest(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Hub.GetLatestAll())
	}))
	mux.HandleFunc("/api/missed", rest(s.handleMissed))
	mux.HandleFunc("/api/system", rest(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CollectMetrics(s.started, s.Hub))
	}))
	mux.HandleFunc("/health", rest(s.handleHealth))
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func queryInt(r *http.Request, key string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// errorStatus maps an evaluation failure to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrEmptySeries), errors.Is(err, csvfile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, indicator.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// handleEvaluate serves GET /api/evaluate?ticker=GLD&span=weekly&policy=macd_zero&force=1&events=5.
// Without force a cached summary is returned as is.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticker := strings.ToUpper(strings.TrimSpace(q.Get("ticker")))
	if ticker == "" {
		ticker = batch.DefaultTicker
	}
	span, err := model.ParseSpan(q.Get("span"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	policy, err := strategy.ByName(q.Get("policy"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	force := parseBool(q.Get("force"))

	if !force && s.Cache != nil {
		key := (&model.Summary{Ticker: ticker, Span: span, Policy: policy.Name()}).CacheKey()
		cached, err := s.Cache.GetSummary(r.Context(), key)
		switch {
		case err != nil:
			s.countLookup("error")
			log.Printf("[gateway] cache lookup %s: %v", key, err)
		case cached != nil:
			s.countLookup("hit")
			writeJSON(w, http.StatusOK, &EvaluateResponse{Cached: true, Summary: cached})
			return
		default:
			s.countLookup("miss")
		}
	}

	runner := *s.Runner
	runner.Policy = policy
	runner.Span = span
	runner.Force = force
	runner.Workers = 1
	runner.AbortOnError = true
	runner.Archive = nil

	report, err := runner.Run(r.Context(), []string{ticker})
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	out := report.Results[0]
	writeJSON(w, http.StatusOK, newEvaluateResponse(out.Result, out.Summary, queryInt(r, "events", 5, 100)))
}

func (s *Server) countLookup(result string) {
	if s.Metrics != nil {
		s.Metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

// handleRank serves GET /api/rank?tickers=AAPL,MSFT&span=weekly or
// /api/rank?universe=ndx. The default universe is the favorites list.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	span, err := model.ParseSpan(q.Get("span"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tickers := batch.ParseTickers(q.Get("tickers"))
	if len(tickers) == 0 {
		name := q.Get("universe")
		if name == "" {
			name = "favorites"
		}
		if tickers, err = batch.Universe(name); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	series, skipped := s.fetchAll(r.Context(), tickers, span)
	ranked, rankSkipped := pipeline.Rank(series, s.Runner.Options.Params)

	resp := RankResponse{Span: span, Ranked: ranked, Skipped: make(map[string]string)}
	for t, err := range skipped {
		resp.Skipped[t] = err.Error()
	}
	for t, err := range rankSkipped {
		resp.Skipped[t] = err.Error()
	}
	if resp.Ranked == nil {
		resp.Ranked = []pipeline.Ranked{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// fetchAll loads and resamples every ticker with the runner's worker limit.
func (s *Server) fetchAll(ctx context.Context, tickers []string, span model.Span) ([]*model.PriceSeries, map[string]error) {
	var (
		mu      sync.Mutex
		series  []*model.PriceSeries
		skipped = make(map[string]error)
	)
	g, gctx := errgroup.WithContext(ctx)
	workers := s.Runner.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for _, t := range tickers {
		t := t
		g.Go(func() error {
			daily, err := s.Runner.Source.GetSeries(gctx, t, s.Runner.Start, time.Time{})
			var sp *model.PriceSeries
			if err == nil {
				sp, err = resample.ToSpan(daily, span)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped[t] = err
				return nil
			}
			series = append(series, sp)
			return nil
		})
	}
	g.Wait()
	return series, skipped
}

func (s *Server) handlePolicies(w http.ResponseWriter, r *http.Request) {
	names := strategy.Names()
	out := make([]PolicyInfo, 0, len(names))
	for _, name := range names {
		p, err := strategy.ByName(name)
		if err != nil {
			continue
		}
		out = append(out, PolicyInfo{
			Name:    name,
			Matcher: p.Matcher().Name(),
			Default: name == strategy.DefaultPolicy,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHistory serves GET /api/history?ticker=GLD&limit=20.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusServiceUnavailable, "no journal configured")
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	sums, err := s.History.RecentSummaries(r.Context(), ticker, queryInt(r, "limit", 20, 500))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sums == nil {
		sums = []model.Summary{}
	}
	writeJSON(w, http.StatusOK, sums)
}

// handleMissed serves GET /api/missed?channel=eval:...&from=3&to=7 with the
// buffered envelopes as a JSON array.
func (s *Server) handleMissed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channel := q.Get("channel")
	from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
	to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
	if channel == "" || err1 != nil || err2 != nil || from > to {
		writeError(w, http.StatusBadRequest, "channel, from and to are required")
		return
	}

	entries := s.Hub.GetReplayRange(channel, from, to)
	buf := make([]byte, 0, 64*len(entries)+2)
	buf = append(buf, '[')
	for i, e := range entries {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, e...)
	}
	buf = append(buf, ']')

	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":     "ok",
		"ws_clients": s.Hub.ClientCount(),
		"uptime_sec": int64(time.Since(s.started).Seconds()),
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
	}
	status := http.StatusOK
	if s.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["cache"] = err.Error()
		} else {
			body["cache"] = "ok"
		}
	}
	writeJSON(w, status, body)
}
