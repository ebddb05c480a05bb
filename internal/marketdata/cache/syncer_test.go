package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"signalbench/internal/model"
	"signalbench/internal/store/sqlite"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeRemote serves one bar per calendar day between first and last.
type fakeRemote struct {
	first, last time.Time
	calls       []time.Time // requested start dates
	err         error
}

func (f *fakeRemote) GetSeries(_ context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error) {
	f.calls = append(f.calls, start)
	if f.err != nil {
		return nil, f.err
	}
	s := &model.PriceSeries{Ticker: ticker, Span: model.SpanDaily}
	for d := f.first; !d.After(f.last); d = d.AddDate(0, 0, 1) {
		if d.Before(start) || d.After(end) {
			continue
		}
		p := float64(d.Day())
		s.Bars = append(s.Bars, model.PriceBar{Date: d, Open: p, High: p, Low: p, Close: p, AdjClose: p, Volume: 1})
	}
	return s, nil
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "bars.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSyncer_FetchesOnlyTheTail(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	remote := &fakeRemote{first: day(2024, 1, 1), last: day(2024, 1, 10)}

	s := NewSyncer(st, remote, day(2024, 1, 1))
	s.now = func() time.Time { return day(2024, 1, 10).Add(15 * time.Hour) }

	series, err := s.GetSeries(ctx, "GLD", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 10 {
		t.Fatalf("bars = %d, want 10", series.Len())
	}

	// New process state: a later day only needs the missing tail.
	remote.last = day(2024, 1, 12)
	s2 := NewSyncer(st, remote, day(2024, 1, 1))
	s2.now = func() time.Time { return day(2024, 1, 12) }
	n, err := s2.Sync(ctx, "GLD", false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	if got := remote.calls[len(remote.calls)-1]; !got.Equal(day(2024, 1, 11)) {
		t.Errorf("tail fetch started at %v, want 2024-01-11", got)
	}

	// Already synced in this process: no further remote calls.
	before := len(remote.calls)
	if _, err := s2.GetSeries(ctx, "GLD", time.Time{}, time.Time{}); err != nil {
		t.Fatal(err)
	}
	if len(remote.calls) != before {
		t.Error("synced ticker should not hit the remote again")
	}
}

func TestSyncer_ForceRefetchesEverything(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	remote := &fakeRemote{first: day(2024, 1, 1), last: day(2024, 1, 5)}
	s := NewSyncer(st, remote, day(2024, 1, 1))
	s.now = func() time.Time { return day(2024, 1, 5) }

	if _, err := s.Sync(ctx, "MSFT", false); err != nil {
		t.Fatal(err)
	}
	n, err := s.Sync(ctx, "MSFT", true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("forced sync wrote %d bars, want 5", n)
	}
	if got := remote.calls[len(remote.calls)-1]; !got.Equal(day(2024, 1, 1)) {
		t.Errorf("forced fetch started at %v", got)
	}
}

func TestSyncer_RemoteError(t *testing.T) {
	st := newStore(t)
	remote := &fakeRemote{err: errors.New("rate limited")}
	s := NewSyncer(st, remote, day(2024, 1, 1))
	s.now = func() time.Time { return day(2024, 1, 5) }

	if _, err := s.GetSeries(context.Background(), "X", time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSyncer_NilRemoteServesLocal(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	if err := st.SaveBars(ctx, "GLD", []model.PriceBar{{Date: day(2024, 2, 1), Open: 1, Close: 1, AdjClose: 1}}); err != nil {
		t.Fatal(err)
	}
	s := NewSyncer(st, nil, day(2024, 1, 1))
	series, err := s.GetSeries(ctx, "GLD", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if series.Len() != 1 {
		t.Errorf("bars = %d", series.Len())
	}
}

func TestSyncer_StopsAtLastCompletedSession(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	remote := &fakeRemote{first: day(2024, 1, 1), last: day(2024, 1, 10)}

	s := NewSyncer(st, remote, day(2024, 1, 1))
	s.now = func() time.Time { return day(2024, 1, 10).Add(6 * time.Hour) }
	// The 10th is still trading: its bar is not final.
	s.LastSession = func(now time.Time) time.Time { return day(2024, 1, 9) }

	n, err := s.Sync(ctx, "RELIANCE", false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 9 {
		t.Errorf("written = %d, want 9", n)
	}
	last, err := st.LastDate(ctx, "RELIANCE")
	if err != nil {
		t.Fatal(err)
	}
	if !last.Equal(day(2024, 1, 9)) {
		t.Errorf("last stored date = %s, want 2024-01-09", last.Format("2006-01-02"))
	}
}
