// cmd/evalserver serves on-demand evaluations over HTTP and streams every
// new summary to WebSocket clients.
//
// Routes: /api/evaluate, /api/rank, /api/policies, /api/history,
// /api/latest, /api/missed, /api/system, /health and /ws. Prometheus
// metrics and /healthz are served separately on METRICS_ADDR.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"signalbench/config"
	"signalbench/internal/app"
	"signalbench/internal/batch"
	"signalbench/internal/gateway"
	"signalbench/internal/logger"
	"signalbench/internal/metrics"
	"signalbench/internal/model"
	"signalbench/internal/pipeline"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	slogger := logger.Init("evalserver", logger.ParseLevel(*logLevel))
	log.Println("[evalserver] starting...")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	deps, err := app.Build(ctx, cfg, m)
	if err != nil {
		log.Fatalf("[evalserver] init failed: %v", err)
	}
	defer deps.Close()
	deps.StartLiveness(ctx)

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, deps.Health, nil)
	metricsSrv.Start()

	opts := pipeline.DefaultOptions()
	opts.Params = cfg.IndicatorParams()

	hub := gateway.NewHub(m)
	runner := &batch.Runner{
		Source:          deps.Source,
		Options:         opts,
		Start:           cfg.StartDate,
		Workers:         cfg.Workers,
		Cache:           deps.ResultCache(),
		Journal:         deps.Journal,
		Metrics:         m,
		Notifier:        deps.Notifier,
		AlertWithinBars: cfg.AlertWithinBars,
		Logger:          slogger,
	}

	// With Redis every saved summary comes back over pub:eval, including
	// those written by evaluate runs in other processes. Without it the
	// runner feeds the hub directly.
	if deps.Redis != nil {
		summaries := make(chan model.Summary, 256)
		go func() {
			if err := deps.Redis.Subscribe(ctx, summaries); err != nil {
				log.Printf("[evalserver] redis subscribe: %v", err)
			}
		}()
		go hub.Run(ctx, summaries)
	} else {
		runner.OnResult = func(_ context.Context, _ *pipeline.Result, sum *model.Summary) {
			hub.Publish(sum)
		}
	}
	warmHub(ctx, hub, deps.Journal)

	srv := gateway.NewServer(hub, runner)
	srv.Cache = deps.ResultCache()
	srv.History = deps.Journal
	srv.Metrics = m
	if deps.Redis != nil {
		srv.Ping = func(ctx context.Context) error { return deps.Redis.Client().Ping(ctx).Err() }
	}

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, srv)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[evalserver] listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[evalserver] http server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("[evalserver] shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
	log.Println("[evalserver] stopped")
}

// warmHub replays the latest journaled summaries so new WS clients get an
// initial state before the first evaluation of this process.
func warmHub(ctx context.Context, hub *gateway.Hub, journal app.Journal) {
	recent, err := journal.RecentSummaries(ctx, "", 200)
	if err != nil {
		log.Printf("[evalserver] warm hub: %v", err)
		return
	}
	// Oldest first so the newest summary per channel wins.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	hub.Seed(recent)
	log.Printf("[evalserver] hub warmed with %d summaries", len(recent))
}
