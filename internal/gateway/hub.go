package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signalbench/internal/metrics"
	"signalbench/internal/model"
)

// Hub manages WebSocket clients and fans evaluation summaries out to them.
// Each summary is broadcast on its cache key channel
// ("eval:{policy}:{span}:{ticker}") so clients can filter by ticker.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]latestEntry
	seq     int64

	// Per-channel monotonic sequence numbers for gap detection
	channelSeqs map[string]int64

	// Per-channel replay buffers for gap backfill
	replayBufs map[string]*ReplayBuffer

	// Evaluation-to-broadcast latency
	Latency *LatencyTracker

	Metrics *metrics.Metrics // optional

	Broadcaster *Broadcaster
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64 // per-channel seq for gap detection
}

// NewHub creates a new Hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		Latency:     NewLatencyTracker(10000),
		Metrics:     m,
	}
	h.Broadcaster = NewBroadcaster(h)
	return h
}

// Publish broadcasts one summary.
func (h *Hub) Publish(sum *model.Summary) {
	h.Broadcaster.Broadcast(sum.CacheKey(), sum.JSON())
}

// Seed stores summaries as the latest state without broadcasting them or
// recording latency. Later entries for a channel replace earlier ones.
func (h *Hub) Seed(sums []model.Summary) {
	now := time.Now().UTC()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range sums {
		channel := sums[i].CacheKey()
		h.channelSeqs[channel]++
		h.latest[channel] = latestEntry{Data: sums[i].JSON(), TS: now, Seq: h.channelSeqs[channel]}
	}
}

// Run publishes every summary received on in. Blocks until ctx is
// cancelled or in is closed.
func (h *Hub) Run(ctx context.Context, in <-chan model.Summary) {
	for {
		select {
		case <-ctx.Done():
			return
		case sum, ok := <-in:
			if !ok {
				return
			}
			h.Publish(&sum)
		}
	}
}

// HandleWSRequest registers an upgraded connection. lastTS (RFC3339Nano)
// limits the initial state to entries newer than it.
func (h *Hub) HandleWSRequest(conn *websocket.Conn, lastTS string) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]*ClientSubscription),
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.setClientGauge(count)

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()
	h.setClientGauge(count)
}

func (h *Hub) setClientGauge(n int) {
	if h.Metrics != nil {
		h.Metrics.WSClients.Set(float64(n))
	}
}

// GetLatestAll returns a snapshot of the latest summary per channel.
func (h *Hub) GetLatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// GetReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
// Used by the /api/missed REST endpoint for client gap backfill.
func (h *Hub) GetReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, exists := h.replayBufs[channel]
	h.mu.RUnlock()
	if !exists {
		return nil
	}
	return rb.Range(fromSeq, toSeq)
}

// GetChannelSeq returns the current sequence number for a channel.
func (h *Hub) GetChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
