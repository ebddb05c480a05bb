package model

import (
	"fmt"
	"strings"
)

// Span selects the bar granularity a pipeline run operates on.
type Span string

const (
	SpanDaily   Span = "daily"
	SpanWeekly  Span = "weekly"
	SpanMonthly Span = "monthly"
)

// ParseSpan accepts "daily", "weekly", "monthly" and the short forms
// "day", "week", "month". Empty input means daily.
func ParseSpan(s string) (Span, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "daily", "day", "d":
		return SpanDaily, nil
	case "weekly", "week", "w":
		return SpanWeekly, nil
	case "monthly", "month", "m":
		return SpanMonthly, nil
	}
	return "", fmt.Errorf("unknown span %q (want daily, weekly or monthly)", s)
}
