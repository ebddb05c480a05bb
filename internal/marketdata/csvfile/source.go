// Package csvfile serves daily price history from per-ticker CSV files in
// the common "Date,Open,High,Low,Close,Adj Close,Volume" download layout.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"signalbench/internal/model"
)

// ErrNotFound is returned when no file exists for a ticker.
var ErrNotFound = errors.New("csvfile: ticker not found")

// Source implements model.SeriesSource over <Dir>/<TICKER>.csv.
type Source struct {
	Dir string
}

// New creates a Source rooted at dir.
func New(dir string) *Source {
	return &Source{Dir: dir}
}

// Path returns the file path for ticker.
func (s *Source) Path(ticker string) string {
	return filepath.Join(s.Dir, strings.ToUpper(ticker)+".csv")
}

// GetSeries reads bars with start <= date <= end. A zero start or end is
// open-ended.
func (s *Source) GetSeries(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error) {
	f, err := os.Open(s.Path(ticker))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("csvfile: %s: %w", ticker, err)
	}

	series := &model.PriceSeries{Ticker: strings.ToUpper(ticker), Span: model.SpanDaily}
	for _, b := range bars {
		if !start.IsZero() && b.Date.Before(start) {
			continue
		}
		if !end.IsZero() && b.Date.After(end) {
			continue
		}
		series.Bars = append(series.Bars, b)
	}
	return series, ctx.Err()
}

// Tickers lists the tickers with a CSV file in Dir.
func (s *Source) Tickers() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSuffix(filepath.Base(m), ".csv"))
	}
	sort.Strings(out)
	return out, nil
}

// Parse reads a CSV with a header row. Columns are located by name; "Adj
// Close" falls back to Close when absent. Rows containing "null" are
// skipped, duplicate dates keep the last row, and output is sorted.
func Parse(r io.Reader) ([]model.PriceBar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, need := range []string{"date", "open", "high", "low", "close"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("missing column %q", need)
		}
	}

	byDate := make(map[time.Time]model.PriceBar)
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if hasNull(rec) {
			continue
		}
		b, err := parseRow(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		byDate[b.Date] = b
	}

	bars := make([]model.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func hasNull(rec []string) bool {
	for _, v := range rec {
		if strings.EqualFold(strings.TrimSpace(v), "null") {
			return true
		}
	}
	return false
}

func parseRow(rec []string, col map[string]int) (model.PriceBar, error) {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(name string) (float64, error) {
		v, err := strconv.ParseFloat(get(name), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}

	var b model.PriceBar
	d, err := time.Parse("2006-01-02", get("date"))
	if err != nil {
		return b, fmt.Errorf("date: %w", err)
	}
	b.Date = d
	if b.Open, err = num("open"); err != nil {
		return b, err
	}
	if b.High, err = num("high"); err != nil {
		return b, err
	}
	if b.Low, err = num("low"); err != nil {
		return b, err
	}
	if b.Close, err = num("close"); err != nil {
		return b, err
	}
	b.AdjClose = b.Close
	if get("adj close") != "" {
		if b.AdjClose, err = num("adj close"); err != nil {
			return b, err
		}
	}
	if v := get("volume"); v != "" {
		vol, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return b, fmt.Errorf("volume: %w", err)
		}
		b.Volume = int64(vol)
	}
	return b, nil
}

// Write stores bars as <Dir>/<TICKER>.csv, replacing any existing file.
func (s *Source) Write(ticker string, bars []model.PriceBar) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(s.Path(ticker))
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"})
	for _, b := range bars {
		_ = w.Write([]string{
			b.Date.Format("2006-01-02"),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.AdjClose, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
