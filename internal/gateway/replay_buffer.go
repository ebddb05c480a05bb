package gateway

import "sync"

// ReplayBuffer is a fixed-size ring of recent envelopes for one channel,
// queried by sequence number for client gap backfill. Safe for concurrent use.
type ReplayBuffer struct {
	mu   sync.RWMutex
	seqs []int64
	data [][]byte
	pos  int // next write position
	n    int // entries held
}

// NewReplayBuffer creates a replay buffer with the given capacity.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 100
	}
	return &ReplayBuffer{
		seqs: make([]int64, capacity),
		data: make([][]byte, capacity),
	}
}

// Push stores a copy of data, overwriting the oldest entry when full.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	cp := append([]byte(nil), data...)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.seqs[rb.pos] = seq
	rb.data[rb.pos] = cp
	rb.pos = (rb.pos + 1) % len(rb.seqs)
	if rb.n < len(rb.seqs) {
		rb.n++
	}
}

// Range returns the envelopes with seq in [fromSeq, toSeq], oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out [][]byte
	start := (rb.pos - rb.n + len(rb.seqs)) % len(rb.seqs)
	for i := 0; i < rb.n; i++ {
		idx := (start + i) % len(rb.seqs)
		if s := rb.seqs[idx]; s >= fromSeq && s <= toSeq {
			out = append(out, rb.data[idx])
		}
	}
	return out
}

// Len returns the number of entries currently in the buffer.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.n
}
