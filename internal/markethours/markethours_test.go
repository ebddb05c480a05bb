package markethours

import (
	"testing"
	"time"
)

func ist(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, IST)
}

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsMarketOpen(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before_open", ist(2026, 3, 10, 9, 14), false},
		{"at_open", ist(2026, 3, 10, 9, 15), true},
		{"midday", ist(2026, 3, 10, 12, 0), true},
		{"at_close", ist(2026, 3, 10, 15, 30), false},
		{"saturday", ist(2026, 3, 7, 12, 0), false},
		{"ambedkar_jayanti", ist(2026, 4, 14, 12, 0), false},
	}
	for _, tt := range tests {
		if got := IsMarketOpen(tt.at); got != tt.want {
			t.Errorf("%s: IsMarketOpen = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLastCompletedSession(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		// Tuesday 2026-03-10
		{"after_close", ist(2026, 3, 10, 16, 0), utcDate(2026, 3, 10)},
		{"during_session", ist(2026, 3, 10, 11, 0), utcDate(2026, 3, 9)},
		{"monday_morning", ist(2026, 3, 9, 8, 0), utcDate(2026, 3, 6)},
		{"sunday", ist(2026, 3, 8, 20, 0), utcDate(2026, 3, 6)},
		// Good Friday 2026-04-10 is a holiday
		{"after_holiday", ist(2026, 4, 11, 12, 0), utcDate(2026, 4, 9)},
		// 10:30 UTC is 16:00 IST, after the close
		{"utc_input", time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC), utcDate(2026, 3, 10)},
	}
	for _, tt := range tests {
		if got := LastCompletedSession(tt.at); !got.Equal(tt.want) {
			t.Errorf("%s: got %s, want %s", tt.name, got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
		}
	}
}
