package redis

import (
	"context"
	"errors"
	"log"
	"sync"

	"signalbench/internal/model"
)

// summaryStore is the subset of Cache used by BufferedCache.
type summaryStore interface {
	SaveSummary(ctx context.Context, s *model.Summary) error
	GetSummary(ctx context.Context, key string) (*model.Summary, error)
}

// BufferedCache wraps a Cache with a circuit breaker.
// While the circuit is open, saves are buffered locally and replayed when
// it closes again; reads report a miss so callers recompute.
type BufferedCache struct {
	store summaryStore
	cb    *CircuitBreaker

	mu     sync.Mutex
	buffer []*model.Summary
	maxBuf int

	// Callbacks
	OnBuffer func()          // called when a save is buffered (for metrics)
	OnFlush  func(count int) // called after flushing buffered saves
}

// NewBufferedCache creates a BufferedCache. maxBufferSize <= 0 means 1000.
func NewBufferedCache(store summaryStore, cb *CircuitBreaker, maxBufferSize int) *BufferedCache {
	if maxBufferSize <= 0 {
		maxBufferSize = 1000
	}
	bc := &BufferedCache{
		store:  store,
		cb:     cb,
		buffer: make([]*model.Summary, 0, 64),
		maxBuf: maxBufferSize,
	}

	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bc.flush()
		}
	}
	return bc
}

// SaveSummary writes through the circuit breaker, buffering when open.
func (bc *BufferedCache) SaveSummary(ctx context.Context, s *model.Summary) error {
	err := bc.cb.Execute(func() error {
		return bc.store.SaveSummary(ctx, s)
	})
	if errors.Is(err, ErrCircuitOpen) {
		bc.bufferSave(s)
		return nil
	}
	return err
}

// GetSummary reads through the circuit breaker. An open circuit is a miss.
func (bc *BufferedCache) GetSummary(ctx context.Context, key string) (*model.Summary, error) {
	var out *model.Summary
	err := bc.cb.Execute(func() error {
		var err error
		out, err = bc.store.GetSummary(ctx, key)
		return err
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, nil
	}
	return out, err
}

func (bc *BufferedCache) bufferSave(s *model.Summary) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if len(bc.buffer) >= bc.maxBuf {
		bc.buffer = bc.buffer[1:]
	}
	bc.buffer = append(bc.buffer, s)

	if bc.OnBuffer != nil {
		bc.OnBuffer()
	}
}

// flush replays buffered saves through the underlying store.
func (bc *BufferedCache) flush() {
	bc.mu.Lock()
	if len(bc.buffer) == 0 {
		bc.mu.Unlock()
		return
	}
	toFlush := bc.buffer
	bc.buffer = make([]*model.Summary, 0, 64)
	bc.mu.Unlock()

	ctx := context.Background()
	flushed := 0
	for _, s := range toFlush {
		if err := bc.store.SaveSummary(ctx, s); err != nil {
			log.Printf("[buffered-cache] replay %s failed: %v", s.CacheKey(), err)
			continue
		}
		flushed++
	}

	log.Printf("[buffered-cache] flushed %d buffered summaries", flushed)
	if bc.OnFlush != nil {
		bc.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered saves waiting to be flushed.
func (bc *BufferedCache) PendingCount() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}
