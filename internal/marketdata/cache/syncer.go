// Package cache keeps a local bar store in sync with a remote series source.
// Reads are served locally; only the missing tail is fetched remotely.
package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"signalbench/internal/metrics"
	"signalbench/internal/model"
)

// Store is the local side: readable and writable bar storage.
type Store interface {
	model.SeriesSource
	model.BarWriter
}

// Syncer implements model.SeriesSource over a local Store, refreshing each
// ticker from Remote at most once per process unless forced.
type Syncer struct {
	Local   Store
	Remote  model.SeriesSource // nil serves the local store as-is
	Start   time.Time          // first date fetched for a ticker with no history
	Metrics *metrics.Metrics   // optional
	Source  string             // metrics label for Remote

	// LastSession maps "now" to the newest date whose bar is final.
	// Nil means the current UTC calendar day.
	LastSession func(now time.Time) time.Time

	now func() time.Time

	mu     sync.Mutex
	synced map[string]bool
	locks  map[string]*sync.Mutex
}

// NewSyncer creates a Syncer.
func NewSyncer(local Store, remote model.SeriesSource, start time.Time) *Syncer {
	return &Syncer{
		Local:  local,
		Remote: remote,
		Start:  start,
		Source: "remote",
		now:    time.Now,
		synced: make(map[string]bool),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Syncer) tickerLock(ticker string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ticker]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ticker] = l
	}
	return l
}

// Sync brings the local copy of ticker up to date. With force, stored bars
// are dropped and the full history is fetched again. It returns the number
// of bars written.
func (s *Syncer) Sync(ctx context.Context, ticker string, force bool) (int, error) {
	if s.Remote == nil {
		return 0, nil
	}
	l := s.tickerLock(ticker)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	done := s.synced[ticker]
	s.mu.Unlock()
	if done && !force {
		return 0, nil
	}

	if force {
		if err := s.Local.DeleteTicker(ctx, ticker); err != nil {
			return 0, fmt.Errorf("sync %s: %w", ticker, err)
		}
	}

	last, err := s.Local.LastDate(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("sync %s: %w", ticker, err)
	}
	from := s.Start
	if !last.IsZero() {
		from = last.AddDate(0, 0, 1)
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if s.LastSession != nil {
		today = s.LastSession(s.now())
	}

	written := 0
	if from.Before(today) || from.Equal(today) {
		t0 := time.Now()
		tail, err := s.Remote.GetSeries(ctx, ticker, from, today)
		if err != nil {
			return 0, fmt.Errorf("sync %s: fetch: %w", ticker, err)
		}
		if s.Metrics != nil {
			s.Metrics.ObserveFetch(s.Source, tail.Len(), time.Since(t0))
		}
		if err := s.Local.SaveBars(ctx, ticker, tail.Bars); err != nil {
			return 0, fmt.Errorf("sync %s: save: %w", ticker, err)
		}
		written = tail.Len()
		if written > 0 {
			log.Printf("[sync] %s: +%d bars from %s", ticker, written, from.Format("2006-01-02"))
		}
	}

	s.mu.Lock()
	s.synced[ticker] = true
	s.mu.Unlock()
	return written, nil
}

// GetSeries syncs ticker, then reads the requested window locally.
func (s *Syncer) GetSeries(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error) {
	if _, err := s.Sync(ctx, ticker, false); err != nil {
		return nil, err
	}
	return s.Local.GetSeries(ctx, ticker, start, end)
}

// Refresh forces a full refetch of ticker and returns the stored series.
func (s *Syncer) Refresh(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error) {
	if _, err := s.Sync(ctx, ticker, true); err != nil {
		return nil, err
	}
	return s.Local.GetSeries(ctx, ticker, start, end)
}
