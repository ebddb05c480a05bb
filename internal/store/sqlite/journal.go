package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signalbench/internal/model"
)

// RecordSummary appends an evaluation summary to the journal.
func (s *Store) RecordSummary(ctx context.Context, sum *model.Summary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (run_id, ticker, span, policy, bars, trades, total_value, performance_pct, last_date, data, evaluated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID,
		sum.Ticker,
		string(sum.Span),
		sum.Policy,
		sum.Bars,
		sum.Trades,
		sum.TotalValue,
		sum.PerformancePct,
		sum.LastDate.UTC().Format(dateLayout),
		string(sum.JSON()),
		sum.EvaluatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("sqlite record summary %s: %w", sum.Ticker, err)
	}
	return nil
}

// RecentSummaries returns the last limit journaled summaries, newest first.
// An empty ticker matches all tickers.
func (s *Store) RecentSummaries(ctx context.Context, ticker string, limit int) ([]model.Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM evaluations
		 WHERE (? = '' OR ticker = ?)
		 ORDER BY id DESC LIMIT ?`, ticker, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query evaluations: %w", err)
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite scan evaluation: %w", err)
		}
		var sum model.Summary
		if err := json.Unmarshal([]byte(data), &sum); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
