package model

// EventKind classifies a structural event.
type EventKind string

const (
	// DirectionChange marks a local extremum of the oscillator
	// (sign change of its discrete derivative).
	DirectionChange EventKind = "direction_change"
	// SignalCross marks the oscillator crossing its moving average.
	SignalCross EventKind = "signal_cross"
	// ZeroCross marks the MACD line crossing zero.
	ZeroCross EventKind = "zero_cross"
)

// StructuralEvent is a position where a monitored signal changes sign.
// Index is the last bar before the change; Value is the monitored
// series at Index.
type StructuralEvent struct {
	Kind  EventKind `json:"kind"`
	Index int       `json:"index"`
	Value float64   `json:"value"`
}

// Side tags a candidate index.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Indices extracts the bar indices of events, preserving order.
func Indices(events []StructuralEvent) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = e.Index
	}
	return out
}
