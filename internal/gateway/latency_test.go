package gateway

import (
	"math"
	"testing"
)

func TestLatencyTracker_Empty(t *testing.T) {
	lt := NewLatencyTracker(100)
	if got := lt.Stats(); got != (LatencyStats{}) {
		t.Errorf("empty tracker: got %+v, want zero stats", got)
	}
}

func TestLatencyTracker_SingleSample(t *testing.T) {
	lt := NewLatencyTracker(100)
	lt.Record(42.5)

	s := lt.Stats()
	if s.Count != 1 || s.P50 != 42.5 || s.P95 != 42.5 || s.P99 != 42.5 || s.Max != 42.5 {
		t.Errorf("single sample: got %+v", s)
	}
}

func TestLatencyTracker_Percentiles(t *testing.T) {
	lt := NewLatencyTracker(10000)
	for i := 1; i <= 100; i++ {
		lt.Record(float64(i))
	}

	s := lt.Stats()
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"p50", s.P50, 50.5},
		{"p95", s.P95, 95.05},
		{"p99", s.P99, 99.01},
		{"max", s.Max, 100},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-9 {
			t.Errorf("%s: got %f, want %f", tt.name, tt.got, tt.want)
		}
	}
}

func TestLatencyTracker_Wraparound(t *testing.T) {
	lt := NewLatencyTracker(10)

	// Only 11..20 survive.
	for i := 1; i <= 20; i++ {
		lt.Record(float64(i))
	}

	s := lt.Stats()
	if s.Count != 10 {
		t.Fatalf("Count = %d, want 10", s.Count)
	}
	if math.Abs(s.P50-15.5) > 1e-9 {
		t.Errorf("p50 after wraparound: got %f, want 15.5", s.P50)
	}
	if s.Max != 20 {
		t.Errorf("max after wraparound: got %f, want 20", s.Max)
	}
}
