// Package batch evaluates one policy over many tickers with a bounded
// worker pool and fans each outcome out to the cache, journal, archive,
// metrics and notifiers.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"signalbench/internal/logger"
	"signalbench/internal/marketdata/resample"
	"signalbench/internal/metrics"
	"signalbench/internal/model"
	"signalbench/internal/notification"
	"signalbench/internal/pipeline"
	"signalbench/internal/strategy"
)

// Refresher is implemented by sources that can drop and refetch a ticker.
type Refresher interface {
	Refresh(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error)
}

// Archiver stores a finished batch report.
type Archiver interface {
	Archive(ctx context.Context, runID string, at time.Time, summaries []model.Summary) (string, error)
}

// Runner evaluates a policy over a ticker list.
type Runner struct {
	Source  model.SeriesSource
	Policy  strategy.Policy
	Options pipeline.Options
	Span    model.Span
	Start   time.Time // first date requested from Source

	Workers      int  // <= 0 means 1
	AbortOnError bool // stop the batch on the first failure
	Force        bool // refetch history when Source is a Refresher

	// Optional collaborators.
	Cache           model.ResultCache
	Journal         model.ResultJournal
	Archive         Archiver
	Metrics         *metrics.Metrics
	Notifier        notification.Notifier
	AlertWithinBars int // 0 disables alerts
	Logger          *slog.Logger

	// OnResult is called from worker goroutines for every success.
	OnResult func(ctx context.Context, res *pipeline.Result, sum *model.Summary)

	now func() time.Time
}

// Outcome is one successful evaluation.
type Outcome struct {
	Ticker  string
	Result  *pipeline.Result
	Summary *model.Summary
}

// Report is the result of a batch run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []Outcome        // ordered by ticker
	Failed     map[string]error // ticker -> error
	ArchiveKey string
}

// Summaries returns the summaries of all successful outcomes.
func (r *Report) Summaries() []model.Summary {
	out := make([]model.Summary, 0, len(r.Results))
	for _, o := range r.Results {
		out = append(out, *o.Summary)
	}
	return out
}

// FailedTickers returns the failed tickers in sorted order.
func (r *Report) FailedTickers() []string {
	out := make([]string, 0, len(r.Failed))
	for t := range r.Failed {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Run evaluates every ticker. In log-and-continue mode failures are
// collected in Report.Failed and Run returns a nil error; with AbortOnError
// the first failure cancels the remaining work and is returned alongside
// the partial report.
func (r *Runner) Run(ctx context.Context, tickers []string) (*Report, error) {
	if r.Source == nil || r.Policy == nil {
		return nil, fmt.Errorf("batch: runner needs a Source and a Policy")
	}
	span := r.Span
	if span == "" {
		span = model.SpanDaily
	}
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	report := &Report{
		RunID:     logger.NewRunID(),
		StartedAt: r.clock(),
		Failed:    make(map[string]error),
	}
	ctx = logger.WithRunID(ctx, report.RunID)
	r.log().Info("batch started", append(logger.LogWithRun(ctx),
		slog.String("policy", r.Policy.Name()), slog.String("span", string(span)),
		slog.Int("tickers", len(tickers)), slog.Int("workers", workers))...)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			tctx := logger.WithTicker(gctx, ticker)
			out, err := r.evaluate(tctx, report.RunID, ticker, span)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if r.Metrics != nil {
					r.Metrics.ObserveFailure(r.Policy.Name(), string(span))
				}
				r.log().Warn("evaluation failed", append(logger.LogWithRun(tctx), slog.String("error", err.Error()))...)
				report.Failed[ticker] = err
				if r.AbortOnError {
					return fmt.Errorf("batch %s: %w", ticker, err)
				}
				return nil
			}
			report.Results = append(report.Results, *out)
			return nil
		})
	}
	runErr := g.Wait()

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Ticker < report.Results[j].Ticker })
	report.FinishedAt = r.clock()

	if r.Metrics != nil {
		r.Metrics.BatchRunsTotal.Inc()
		r.Metrics.BatchDur.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}

	if runErr == nil && r.Archive != nil && len(report.Results) > 0 {
		key, err := r.Archive.Archive(ctx, report.RunID, report.FinishedAt, report.Summaries())
		if err != nil {
			r.log().Warn("archive failed", append(logger.LogWithRun(ctx), slog.String("error", err.Error()))...)
		}
		report.ArchiveKey = key
	}

	r.log().Info("batch finished", append(logger.LogWithRun(ctx),
		slog.Int("ok", len(report.Results)), slog.Int("failed", len(report.Failed)),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))...)
	return report, runErr
}

func (r *Runner) fetch(ctx context.Context, ticker string) (*model.PriceSeries, error) {
	if r.Force {
		if rf, ok := r.Source.(Refresher); ok {
			return rf.Refresh(ctx, ticker, r.Start, time.Time{})
		}
	}
	return r.Source.GetSeries(ctx, ticker, r.Start, time.Time{})
}

func (r *Runner) evaluate(ctx context.Context, runID, ticker string, span model.Span) (*Outcome, error) {
	daily, err := r.fetch(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if err := daily.Validate(); err != nil {
		return nil, err
	}
	series, err := resample.ToSpan(daily, span)
	if err != nil {
		return nil, err
	}

	t0 := time.Now()
	res, err := pipeline.Run(series, r.Policy, r.Options)
	if err != nil {
		return nil, err
	}
	sum := res.Summary(runID, r.clock())
	if r.Metrics != nil {
		r.Metrics.ObserveEvaluation(ticker, res.Policy, string(span), sum.Trades, sum.PerformancePct, time.Since(t0))
	}
	r.log().Debug("evaluated", append(logger.LogWithRun(ctx),
		slog.Int("bars", sum.Bars), slog.Int("trades", sum.Trades),
		slog.Float64("performance_pct", sum.PerformancePct))...)

	// Persistence failures are logged, not fatal: the evaluation itself succeeded.
	if r.Cache != nil {
		if err := r.Cache.SaveSummary(ctx, sum); err != nil {
			r.log().Warn("cache save failed", append(logger.LogWithRun(ctx), slog.String("error", err.Error()))...)
		}
	}
	if r.Journal != nil {
		if err := r.Journal.RecordSummary(ctx, sum); err != nil {
			r.log().Warn("journal failed", append(logger.LogWithRun(ctx), slog.String("error", err.Error()))...)
		}
	}
	r.alert(ctx, res)

	if r.OnResult != nil {
		r.OnResult(ctx, res, sum)
	}
	return &Outcome{Ticker: ticker, Result: res, Summary: sum}, nil
}

// alert notifies when the latest order's buy or sell falls within
// AlertWithinBars of the last bar. Placeholder sells are not new signals.
func (r *Runner) alert(ctx context.Context, res *pipeline.Result) {
	if r.Notifier == nil || r.AlertWithinBars <= 0 {
		return
	}
	sinceBuy, sinceSell, ok := res.BarsSinceLastOrder()
	if !ok {
		return
	}
	last := res.Orders[len(res.Orders)-1]
	s := res.Series

	var alerts []notification.Alert
	if sinceBuy <= r.AlertWithinBars {
		alerts = append(alerts, notification.SignalAlert(s.Ticker, res.Policy, "buy",
			s.Date(last.BuyIndex), sinceBuy, last.Confidence))
	}
	if !last.Placeholder && sinceSell <= r.AlertWithinBars {
		alerts = append(alerts, notification.SignalAlert(s.Ticker, res.Policy, "sell",
			s.Date(last.SellIndex), sinceSell, last.Confidence))
	}
	for _, a := range alerts {
		if err := r.Notifier.Send(ctx, a); err != nil {
			r.log().Warn("alert failed", append(logger.LogWithRun(ctx), slog.String("error", err.Error()))...)
			continue
		}
		if r.Metrics != nil {
			r.Metrics.AlertsSent.WithLabelValues(string(a.Level)).Inc()
		}
	}
}
