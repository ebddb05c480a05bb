package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"signalbench/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestStore_BarsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	bars := []model.PriceBar{
		{Date: day(3), Open: 11, High: 12, Low: 10, Close: 11.5, AdjClose: 11.4, Volume: 300},
		{Date: day(2), Open: 10, High: 11, Low: 9, Close: 10.5, AdjClose: 10.4, Volume: 200},
		{Date: day(4), Open: 12, High: 13, Low: 11, Close: 12.5, AdjClose: 12.4, Volume: 400},
	}
	if err := s.SaveBars(ctx, "GLD", bars); err != nil {
		t.Fatal(err)
	}

	series, err := s.GetSeries(ctx, "GLD", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 3 || series.Span != model.SpanDaily {
		t.Fatalf("got %d bars span %s", series.Len(), series.Span)
	}
	if err := series.Validate(); err != nil {
		t.Fatalf("stored series not ordered: %v", err)
	}
	if series.Bars[0] != bars[1] {
		t.Errorf("first bar = %+v, want %+v", series.Bars[0], bars[1])
	}

	ranged, err := s.GetSeries(ctx, "GLD", day(3), day(3))
	if err != nil {
		t.Fatal(err)
	}
	if ranged.Len() != 1 || !ranged.Bars[0].Date.Equal(day(3)) {
		t.Errorf("ranged = %+v", ranged.Bars)
	}

	last, err := s.LastDate(ctx, "GLD")
	if err != nil || !last.Equal(day(4)) {
		t.Errorf("LastDate = %v, %v", last, err)
	}
}

func TestStore_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if err := s.SaveBars(ctx, "AAPL", []model.PriceBar{{Date: day(2), Open: 1, AdjClose: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBars(ctx, "AAPL", []model.PriceBar{{Date: day(2), Open: 2, AdjClose: 2}}); err != nil {
		t.Fatal(err)
	}
	series, _ := s.GetSeries(ctx, "AAPL", time.Time{}, time.Time{})
	if series.Len() != 1 || series.Bars[0].Open != 2 {
		t.Errorf("upsert failed: %+v", series.Bars)
	}

	tickers, err := s.Tickers(ctx)
	if err != nil || len(tickers) != 1 || tickers[0] != "AAPL" {
		t.Errorf("Tickers = %v, %v", tickers, err)
	}

	if err := s.DeleteTicker(ctx, "AAPL"); err != nil {
		t.Fatal(err)
	}
	last, err := s.LastDate(ctx, "AAPL")
	if err != nil || !last.IsZero() {
		t.Errorf("LastDate after delete = %v, %v", last, err)
	}
}

func TestStore_Journal(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	for i, ticker := range []string{"GLD", "MSFT", "GLD"} {
		sum := &model.Summary{
			RunID: "run", Ticker: ticker, Span: model.SpanDaily, Policy: "crossover_forward",
			Bars: 100 + i, Trades: i, PerformancePct: float64(i),
			LastDate: day(5), EvaluatedAt: day(6),
		}
		if err := s.RecordSummary(ctx, sum); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.RecentSummaries(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Bars != 102 {
		t.Fatalf("recent = %+v", all)
	}

	gld, err := s.RecentSummaries(ctx, "GLD", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(gld) != 1 || gld[0].Ticker != "GLD" || gld[0].Trades != 2 {
		t.Errorf("GLD = %+v", gld)
	}
}
