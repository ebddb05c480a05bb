package gateway

import (
	"encoding/json"
	"strconv"
	"time"
)

// Broadcaster builds envelope JSON and sends it to matching clients.
type Broadcaster struct {
	hub *Hub
	now func() time.Time
}

// NewBroadcaster creates a Broadcaster backed by the given Hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub, now: time.Now}
}

// Broadcast sends data on a channel to all subscribed clients.
// The envelope is {"channel":..,"data":..,"ts":..,"seq":N,"channel_seq":M};
// channel_seq lets clients detect gaps and backfill via /api/missed.
func (b *Broadcaster) Broadcast(channel string, data []byte) {
	now := b.now().UTC()

	if b.hub.Latency != nil {
		if at := extractEvaluatedAt(data); !at.IsZero() {
			if ms := float64(now.Sub(at).Microseconds()) / 1000.0; ms >= 0 {
				b.hub.Latency.Record(ms)
			}
		}
	}

	b.hub.mu.Lock()
	b.hub.channelSeqs[channel]++
	channelSeq := b.hub.channelSeqs[channel]
	b.hub.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}
	b.hub.seq++
	seq := b.hub.seq
	rb, exists := b.hub.replayBufs[channel]
	if !exists {
		rb = NewReplayBuffer(100)
		b.hub.replayBufs[channel] = rb
	}
	b.hub.mu.Unlock()

	buf := buildEnvelope(channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, buf)

	b.hub.mu.RLock()
	defer b.hub.mu.RUnlock()
	for client := range b.hub.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}

// buildEnvelope hand-crafts the envelope; data is embedded as raw JSON.
func buildEnvelope(channel string, data []byte, now time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// extractEvaluatedAt reads the summary's evaluated_at field, if any.
func extractEvaluatedAt(data []byte) time.Time {
	var partial struct {
		EvaluatedAt time.Time `json:"evaluated_at"`
	}
	if err := json.Unmarshal(data, &partial); err == nil {
		return partial.EvaluatedAt
	}
	return time.Time{}
}
