// cmd/evaluate runs a signal policy over one or more tickers and prints
// the recent events, the matched orders and the scored performance.
//
// Usage:
//
//	go run ./cmd/evaluate --tickers=GLD,SPY --span=weekly --policy=macd_zero --verbose
//	go run ./cmd/evaluate --ndx --workers=8 --force
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"signalbench/config"
	"signalbench/internal/app"
	"signalbench/internal/batch"
	"signalbench/internal/indicator"
	"signalbench/internal/logger"
	"signalbench/internal/metrics"
	"signalbench/internal/model"
	"signalbench/internal/pipeline"
	"signalbench/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()

	spanStr := flag.String("span", cfg.Span, "Bar span: daily, weekly or monthly")
	policyName := flag.String("policy", cfg.Policy, "Decision policy: "+fmt.Sprint(strategy.Names()))
	tickerList := flag.String("tickers", "", "Comma-separated tickers (default "+batch.DefaultTicker+")")
	ndx := flag.Bool("ndx", false, "Evaluate the NASDAQ-100 list")
	verbose := flag.Bool("verbose", false, "Print recent events and every order")
	force := flag.Bool("force", false, "Drop cached bars and refetch the full history")
	workers := flag.Int("workers", cfg.Workers, "Concurrent evaluations")
	abort := flag.Bool("abort", false, "Stop at the first failing ticker")
	events := flag.Int("events", 5, "Recent events to print per ticker with --verbose")
	serveMetrics := flag.Bool("metrics", false, "Expose /metrics and /healthz on METRICS_ADDR while running")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	slogger := logger.InitWriter(os.Stderr, "evaluate", logger.ParseLevel(*logLevel))

	span, err := model.ParseSpan(*spanStr)
	if err != nil {
		log.Fatalf("[evaluate] %v", err)
	}
	policy, err := strategy.ByName(*policyName)
	if err != nil {
		log.Fatalf("[evaluate] %v", err)
	}

	tickers := batch.ParseTickers(*tickerList)
	if *ndx {
		tickers, _ = batch.Universe("ndx")
	}
	if len(tickers) == 0 {
		tickers = []string{batch.DefaultTicker}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	deps, err := app.Build(ctx, cfg, m)
	if err != nil {
		log.Fatalf("[evaluate] init failed: %v", err)
	}
	defer deps.Close()

	if *serveMetrics {
		deps.StartLiveness(ctx)
		metricsSrv := metrics.NewServer(cfg.MetricsAddr, deps.Health, nil)
		metricsSrv.Start()
		defer metricsSrv.Stop(context.Background())
	}

	opts := pipeline.DefaultOptions()
	opts.Params = cfg.IndicatorParams()

	runner := &batch.Runner{
		Source:          deps.Source,
		Policy:          policy,
		Options:         opts,
		Span:            span,
		Start:           cfg.StartDate,
		Workers:         *workers,
		AbortOnError:    *abort,
		Force:           *force,
		Cache:           deps.ResultCache(),
		Journal:         deps.Journal,
		Archive:         deps.ReportArchive(),
		Metrics:         m,
		Notifier:        deps.Notifier,
		AlertWithinBars: cfg.AlertWithinBars,
		Logger:          slogger,
	}

	report, runErr := runner.Run(ctx, tickers)
	if report != nil {
		deps.Health.RecordRun(report.FinishedAt, len(tickers), len(report.Failed))
		for _, out := range report.Results {
			printOutcome(out, *verbose, *events)
		}
		printSummary(report, policy.Name(), span)
	}
	if runErr != nil {
		log.Fatalf("[evaluate] %v", runErr)
	}
}

func printOutcome(out batch.Outcome, verbose bool, events int) {
	res, sum := out.Result, out.Summary
	fmt.Printf("%-6s %s..%s  bars=%-5d trades=%-3d value=%10.2f  perf=%8.2f%%\n",
		sum.Ticker, sum.FirstDate.Format("2006-01-02"), sum.LastDate.Format("2006-01-02"),
		sum.Bars, sum.Trades, sum.TotalValue, sum.PerformancePct)
	if !verbose {
		return
	}

	s := res.Series
	fmt.Println("  recent events:")
	for _, e := range res.RecentEvents(events) {
		zone := res.Set.Zone(e)
		if zone != "" {
			zone = "  " + zone
		}
		fmt.Printf("    %s  %-16s %8.2f%s\n", s.Date(e.Index).Format("2006-01-02"), e.Kind, e.Value, zone)
	}
	if sup := res.Set.Support; sup != nil {
		fmt.Printf("  support %s..%s:", s.Date(sup.Start).Format("2006-01-02"), s.Date(sup.End).Format("2006-01-02"))
		for i, pct := range indicator.FibLevels {
			fmt.Printf(" %g%%=%.2f", pct, sup.Levels[i])
		}
		fmt.Println()
	}
	fmt.Println("  orders:")
	for k, o := range res.Orders {
		mark := ""
		if o.Placeholder {
			mark = " (open)"
		}
		fmt.Printf("    buy %s @ %8.2f  sell %s @ %8.2f  conf=%4.1f  value=%9.2f%s\n",
			s.Date(o.BuyIndex).Format("2006-01-02"), s.Bars[o.BuyIndex].Open,
			s.Date(o.SellIndex).Format("2006-01-02"), s.Bars[o.SellIndex].Open,
			o.Confidence, res.Evaluation.PerTrade[k], mark)
	}
	if buy, sell, ok := res.BarsSinceLastOrder(); ok {
		fmt.Printf("  last buy %d bars ago, last sell %d bars ago\n", buy, sell)
	}
	fmt.Println()
}

func printSummary(r *batch.Report, policy string, span model.Span) {
	var best, worst *model.Summary
	for i := range r.Results {
		sum := r.Results[i].Summary
		if best == nil || sum.PerformancePct > best.PerformancePct {
			best = sum
		}
		if worst == nil || sum.PerformancePct < worst.PerformancePct {
			worst = sum
		}
	}

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        EVALUATION COMPLETE           ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Policy:      %-22s ║\n", policy)
	fmt.Printf("║  Span:        %-22s ║\n", span)
	fmt.Printf("║  Evaluated:   %-22d ║\n", len(r.Results))
	fmt.Printf("║  Failed:      %-22d ║\n", len(r.Failed))
	if best != nil {
		fmt.Printf("║  Best:        %-22s ║\n", fmt.Sprintf("%s %.2f%%", best.Ticker, best.PerformancePct))
		fmt.Printf("║  Worst:       %-22s ║\n", fmt.Sprintf("%s %.2f%%", worst.Ticker, worst.PerformancePct))
	}
	fmt.Printf("║  Elapsed:     %-22s ║\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.ArchiveKey != "" {
		fmt.Printf("║  Archived:    %-22s ║\n", truncate(r.ArchiveKey, 22))
	}
	fmt.Println("╚══════════════════════════════════════╝")

	for _, t := range r.FailedTickers() {
		fmt.Printf("  failed %s: %v\n", t, r.Failed[t])
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}
