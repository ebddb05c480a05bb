package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"signalbench/internal/model"
)

// Journal implements model.ResultJournal on the evaluations table.
type Journal struct {
	pool *pgxpool.Pool
}

// NewJournal creates a Journal backed by the given connection pool.
func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// RecordSummary appends an evaluation summary.
func (j *Journal) RecordSummary(ctx context.Context, sum *model.Summary) error {
	const query = `
		INSERT INTO evaluations (run_id, ticker, span, policy, bars, trades, total_value, performance_pct, last_date, data, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := j.pool.Exec(ctx, query,
		sum.RunID,
		sum.Ticker,
		string(sum.Span),
		sum.Policy,
		sum.Bars,
		sum.Trades,
		sum.TotalValue,
		sum.PerformancePct,
		sum.LastDate.UTC(),
		sum.JSON(),
		sum.EvaluatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: record summary %s: %w", sum.Ticker, err)
	}
	return nil
}

// RecentSummaries returns the last limit summaries, newest first. An empty
// ticker matches all tickers.
func (j *Journal) RecentSummaries(ctx context.Context, ticker string, limit int) ([]model.Summary, error) {
	const query = `
		SELECT data FROM evaluations
		WHERE ($1 = '' OR ticker = $1)
		ORDER BY id DESC LIMIT $2`
	rows, err := j.pool.Query(ctx, query, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query evaluations: %w", err)
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan evaluation: %w", err)
		}
		var sum model.Summary
		if err := json.Unmarshal(data, &sum); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// RunSummaries returns every summary journaled under runID, ordered by ticker.
func (j *Journal) RunSummaries(ctx context.Context, runID string) ([]model.Summary, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT data FROM evaluations WHERE run_id = $1 ORDER BY ticker`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("postgres: scan evaluation: %w", err)
		}
		var sum model.Summary
		if err := json.Unmarshal(data, &sum); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
