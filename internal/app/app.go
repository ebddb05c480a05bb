// Package app wires configuration into the collaborators shared by the
// evaluate CLI and the evaluation server.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"signalbench/config"
	"signalbench/internal/batch"
	"signalbench/internal/marketdata/cache"
	"signalbench/internal/marketdata/csvfile"
	"signalbench/internal/marketdata/smartapi"
	"signalbench/internal/markethours"
	"signalbench/internal/metrics"
	"signalbench/internal/model"
	"signalbench/internal/notification"
	"signalbench/internal/store/postgres"
	redisstore "signalbench/internal/store/redis"
	s3store "signalbench/internal/store/s3"
	sqlitestore "signalbench/internal/store/sqlite"
)

// Journal records summaries and lists them back.
type Journal interface {
	model.ResultJournal
	RecentSummaries(ctx context.Context, ticker string, limit int) ([]model.Summary, error)
}

// Deps are the wired collaborators. Optional ones are nil when disabled.
type Deps struct {
	Store  *sqlitestore.Store
	Source *cache.Syncer

	Redis *redisstore.Cache         // nil without REDIS_ADDR
	Cache *redisstore.BufferedCache // wraps Redis

	Journal  Journal
	Archive  *s3store.Archiver
	Notifier notification.Notifier
	Health   *metrics.HealthStatus

	closers []func()
}

// Build opens every configured collaborator. Only SQLite is mandatory;
// Redis, Postgres and S3 failures are logged and the feature is disabled.
func Build(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Deps, error) {
	d := &Deps{Health: metrics.NewHealthStatus(cfg.Source, cfg.RedisAddr != "")}

	if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}
	store, err := sqlitestore.Open(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		return nil, err
	}
	d.Store = store
	d.closers = append(d.closers, func() { store.Close() })
	d.Health.SetSQLiteOK(true)

	remote, err := remoteSource(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Source = cache.NewSyncer(store, remote, cfg.StartDate)
	d.Source.Metrics = m
	d.Source.Source = cfg.Source
	if cfg.Source == "smartapi" {
		// NSE daily candles are final only after the session close.
		d.Source.LastSession = markethours.LastCompletedSession
	}

	if cfg.RedisAddr != "" {
		d.wireRedis(cfg, m)
	}

	d.Journal = store
	if cfg.JournalDSN != "" {
		pg, err := postgres.New(ctx, postgres.ClientConfig{DSN: cfg.JournalDSN})
		if err == nil {
			err = pg.RunMigrations(ctx)
		}
		if err != nil {
			log.Printf("[app] WARNING: postgres journal unavailable: %v (using sqlite)", err)
			if pg != nil {
				pg.Close()
			}
		} else {
			d.Journal = postgres.NewJournal(pg.Pool())
			d.closers = append(d.closers, pg.Close)
			log.Println("[app] postgres journal ready")
		}
	}

	if cfg.ArchiveBucket != "" {
		arch, err := s3store.New(ctx, s3store.Config{
			Endpoint:       cfg.ArchiveEndpoint,
			Region:         cfg.ArchiveRegion,
			Bucket:         cfg.ArchiveBucket,
			Prefix:         cfg.ArchivePrefix,
			ForcePathStyle: cfg.ArchiveEndpoint != "",
		})
		if err != nil {
			log.Printf("[app] WARNING: report archive disabled: %v", err)
		} else {
			d.Archive = arch
		}
	}

	d.Notifier = notifiers(cfg)
	return d, nil
}

func remoteSource(cfg *config.Config) (model.SeriesSource, error) {
	switch cfg.Source {
	case "sqlite":
		return nil, nil
	case "csv":
		return csvfile.New(cfg.CSVDir), nil
	case "smartapi":
		return smartapi.New(smartapi.Config{
			APIKey:     cfg.AngelAPIKey,
			ClientCode: cfg.AngelClientCode,
			Password:   cfg.AngelPassword,
			TOTPSecret: cfg.AngelTOTPSecret,
			Exchange:   cfg.AngelExchange,
		}), nil
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}

func (d *Deps) wireRedis(cfg *config.Config, m *metrics.Metrics) {
	rc, err := redisstore.New(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		TTL:      cfg.ResultTTL,
	})
	if err != nil {
		log.Printf("[app] WARNING: redis init failed: %v (continuing without cache)", err)
		d.Health.SetRedisConnected(false)
		return
	}
	d.Redis = rc
	d.closers = append(d.closers, func() { rc.Close() })
	d.Health.SetRedisConnected(true)

	cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
	if m != nil {
		cb.OnStateChange = func(from, to redisstore.State) {
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				m.RedisCircuitBreakerTrips.Inc()
			}
		}
	}
	d.Cache = redisstore.NewBufferedCache(rc, cb, 1000)
	if m != nil {
		d.Cache.OnBuffer = m.RedisBufferedWrites.Inc
	}
}

func notifiers(cfg *config.Config) notification.Notifier {
	multi := notification.Multi{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		tg, err := notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("[app] WARNING: telegram disabled: %v", err)
		} else {
			multi = append(multi, tg)
		}
	}
	if cfg.WebhookURL != "" {
		multi = append(multi, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	return multi
}

// ResultCache returns the buffered cache, or nil when Redis is disabled.
// The nil interface keeps Runner and Server from calling a nil pointer.
func (d *Deps) ResultCache() model.ResultCache {
	if d.Cache == nil {
		return nil
	}
	return d.Cache
}

// ReportArchive returns the S3 archiver, or nil when archiving is disabled.
func (d *Deps) ReportArchive() batch.Archiver {
	if d.Archive == nil {
		return nil
	}
	return d.Archive
}

// StartLiveness runs periodic Redis and SQLite probes for /healthz.
func (d *Deps) StartLiveness(ctx context.Context) {
	if d.Redis != nil {
		d.Health.StartLivenessChecker(ctx, d.Redis.Client(), d.Store.DB(), 10*time.Second)
		return
	}
	d.Health.StartLivenessChecker(ctx, nil, d.Store.DB(), 10*time.Second)
}

// Close releases everything Build opened, newest first.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
