// Package resample folds daily bars into weekly or monthly bars.
//
// Bars are walked once in date order. Each bar is assigned a bucket (the
// Monday of its week, or the first of its month); when a bar lands in a new
// bucket the forming bar is finalized. A finalized bar is dated at the last
// trading day that contributed to it, so the resampled series stays inside
// the daily series' date range.
package resample

import (
	"fmt"
	"time"

	"signalbench/internal/model"
)

// BucketFunc maps a trading date to the start of its period.
type BucketFunc func(time.Time) time.Time

// WeekStart returns the Monday (UTC midnight) of d's week.
func WeekStart(d time.Time) time.Time {
	d = truncateDay(d)
	offset := (int(d.Weekday()) + 6) % 7 // Monday=0 … Sunday=6
	return d.AddDate(0, 0, -offset)
}

// MonthStart returns the first day of d's month.
func MonthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func truncateDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// Week resamples a daily series into Monday-anchored weeks.
func Week(daily *model.PriceSeries) *model.PriceSeries {
	return Resample(daily, model.SpanWeekly, WeekStart)
}

// Month resamples a daily series into calendar months.
func Month(daily *model.PriceSeries) *model.PriceSeries {
	return Resample(daily, model.SpanMonthly, MonthStart)
}

// ToSpan returns daily unchanged for SpanDaily, otherwise the resampled series.
func ToSpan(daily *model.PriceSeries, span model.Span) (*model.PriceSeries, error) {
	switch span {
	case model.SpanDaily, "":
		return daily, nil
	case model.SpanWeekly:
		return Week(daily), nil
	case model.SpanMonthly:
		return Month(daily), nil
	}
	return nil, fmt.Errorf("resample: unsupported span %q", span)
}

// Resample merges bars sharing a bucket: open first, high max, low min,
// close and adjusted close last, volume summed.
func Resample(daily *model.PriceSeries, span model.Span, bucketOf BucketFunc) *model.PriceSeries {
	out := &model.PriceSeries{Ticker: daily.Ticker, Span: span}
	if len(daily.Bars) == 0 {
		return out
	}

	var (
		bucket  time.Time
		forming model.PriceBar
		started bool
	)
	for _, b := range daily.Bars {
		bk := bucketOf(b.Date)
		if started && !bk.Equal(bucket) {
			out.Bars = append(out.Bars, forming)
			started = false
		}
		if !started {
			bucket = bk
			forming = b
			started = true
			continue
		}
		if b.High > forming.High {
			forming.High = b.High
		}
		if b.Low < forming.Low {
			forming.Low = b.Low
		}
		forming.Close = b.Close
		forming.AdjClose = b.AdjClose
		forming.Volume += b.Volume
		forming.Date = b.Date
	}
	out.Bars = append(out.Bars, forming)
	return out
}
