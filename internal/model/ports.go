package model

import (
	"context"
	"time"
)

// ── Collaborator Port Interfaces ──
// The evaluation core never calls these; batch runners and servers wire
// concrete implementations (SQLite, CSV, SmartAPI, Redis) through them.

// SeriesSource provides daily price history for a ticker.
type SeriesSource interface {
	// GetSeries returns bars with start <= date <= end, ascending.
	// A zero end means "up to the latest available bar".
	GetSeries(ctx context.Context, ticker string, start, end time.Time) (*PriceSeries, error)
}

// BarWriter persists daily bars for a ticker.
type BarWriter interface {
	// SaveBars upserts bars keyed by (ticker, date).
	SaveBars(ctx context.Context, ticker string, bars []PriceBar) error

	// LastDate returns the newest stored date, or the zero time if none.
	LastDate(ctx context.Context, ticker string) (time.Time, error)

	// DeleteTicker drops every stored bar for ticker (forced refetch).
	DeleteTicker(ctx context.Context, ticker string) error
}

// ResultCache stores and publishes the latest summary per key.
type ResultCache interface {
	SaveSummary(ctx context.Context, s *Summary) error
	GetSummary(ctx context.Context, key string) (*Summary, error)
}

// ResultJournal appends evaluation summaries for later analysis.
type ResultJournal interface {
	RecordSummary(ctx context.Context, s *Summary) error
}
