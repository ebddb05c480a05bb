package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"signalbench/internal/model"
)

// SaveBars upserts daily bars for ticker in a single transaction.
func (s *Store) SaveBars(ctx context.Context, ticker string, bars []model.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO price_bars (ticker, date, open, high, low, close, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare bars: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, ticker, b.Date.UTC().Format(dateLayout),
			b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert bar %s %s: %w", ticker, b.Date.Format(dateLayout), err)
		}
	}
	return tx.Commit()
}

// GetSeries returns the stored daily bars for ticker with start <= date <= end,
// ascending. Zero start or end leaves that side open. An unknown ticker
// yields an empty series.
func (s *Store) GetSeries(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error) {
	lo, hi := "0000-01-01", "9999-12-31"
	if !start.IsZero() {
		lo = start.UTC().Format(dateLayout)
	}
	if !end.IsZero() {
		hi = end.UTC().Format(dateLayout)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, adj_close, volume
		FROM price_bars
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, ticker, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("sqlite query price_bars: %w", err)
	}
	defer rows.Close()

	series := &model.PriceSeries{Ticker: ticker, Span: model.SpanDaily}
	for rows.Next() {
		var (
			b      model.PriceBar
			date   string
			volume sql.NullInt64
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &volume); err != nil {
			return nil, fmt.Errorf("sqlite scan price_bars: %w", err)
		}
		b.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("sqlite parse date %q: %w", date, err)
		}
		b.Volume = volume.Int64
		series.Bars = append(series.Bars, b)
	}
	return series, rows.Err()
}

// LastDate returns the newest stored date for ticker, or the zero time.
func (s *Store) LastDate(ctx context.Context, ticker string) (time.Time, error) {
	var date sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM price_bars WHERE ticker = ?`, ticker,
	).Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite last date: %w", err)
	}
	if !date.Valid {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, date.String)
}

// DeleteTicker removes every stored bar for ticker.
func (s *Store) DeleteTicker(ctx context.Context, ticker string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM price_bars WHERE ticker = ?`, ticker); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", ticker, err)
	}
	return nil
}

// Tickers lists every ticker with at least one stored bar.
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM price_bars ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tickers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite scan ticker: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
