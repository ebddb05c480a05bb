// Package redis caches evaluation summaries and fans them out to
// subscribers.
//
// Each saved summary is written as a latest-value key with a TTL, appended
// to a capped stream for history, and published on a Pub/Sub channel so
// gateways can push it to WebSocket clients.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"signalbench/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// SummaryChannel carries every saved summary as JSON.
	SummaryChannel = "pub:eval"
	summaryStream  = "eval:stream"
	streamMaxLen   = 5000
	defaultTTL     = 12 * time.Hour
)

// Config configures the Redis result cache.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // lifetime of cached summaries (default 12h)
}

// Cache stores the latest summary per (policy, span, ticker).
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New creates a Cache and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	log.Printf("[redis] connected to %s (ttl=%s)", cfg.Addr, ttl)
	return &Cache{client: client, ttl: ttl}, nil
}

// SaveSummary pipelines SET latest + XADD history + PUBLISH in one round trip.
func (c *Cache) SaveSummary(ctx context.Context, s *model.Summary) error {
	data := string(s.JSON())

	pipe := c.client.Pipeline()
	pipe.Set(ctx, s.CacheKey(), data, c.ttl)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: summaryStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": data},
	})
	pipe.Publish(ctx, SummaryChannel, data)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save summary %s: %w", s.CacheKey(), err)
	}
	return nil
}

// GetSummary returns the cached summary for key, or nil on a miss.
func (c *Cache) GetSummary(ctx context.Context, key string) (*model.Summary, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var s model.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary %s: %w", key, err)
	}
	return &s, nil
}

// Recent returns up to n summaries from the history stream, newest first.
func (c *Cache) Recent(ctx context.Context, n int64) ([]model.Summary, error) {
	msgs, err := c.client.XRevRangeN(ctx, summaryStream, "+", "-", n).Result()
	if err != nil {
		return nil, fmt.Errorf("redis XREVRANGE %s: %w", summaryStream, err)
	}
	out := make([]model.Summary, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var s model.Summary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			log.Printf("[redis] skip malformed stream entry %s: %v", m.ID, err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Subscribe forwards every published summary to out until ctx is cancelled.
// Slow consumers drop messages rather than block the subscription.
func (c *Cache) Subscribe(ctx context.Context, out chan<- model.Summary) error {
	pubsub := c.client.Subscribe(ctx, SummaryChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", SummaryChannel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var s model.Summary
			if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
				continue
			}
			select {
			case out <- s:
			default:
			}
		}
	}
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
