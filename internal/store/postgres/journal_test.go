package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"signalbench/internal/model"
)

func TestDSN(t *testing.T) {
	got := DSN(ClientConfig{Host: "db", Database: "bench", User: "u", Password: "p"})
	if got != "postgres://u:p@db:5432/bench?sslmode=disable" {
		t.Errorf("DSN = %q", got)
	}
	if got := DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}); got != "postgres://x" {
		t.Errorf("explicit DSN not preferred: %q", got)
	}
}

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 || names[0] != "001_evaluations.sql" {
		t.Errorf("names = %v", names)
	}
}

// TestJournal_RoundTrip runs against a live database when
// SIGNALBENCH_TEST_PG_DSN is set.
func TestJournal_RoundTrip(t *testing.T) {
	dsn := os.Getenv("SIGNALBENCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SIGNALBENCH_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	c, err := New(ctx, ClientConfig{DSN: dsn})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.RunMigrations(ctx); err != nil {
		t.Fatal(err)
	}

	j := NewJournal(c.Pool())
	runID := "test-" + time.Now().Format("20060102150405.000000")
	sum := &model.Summary{
		RunID: runID, Ticker: "PGTEST", Span: model.SpanDaily, Policy: "macd_zero",
		Bars: 10, Trades: 1, TotalValue: 2.5, PerformancePct: 1.25,
		LastDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), EvaluatedAt: time.Now().UTC(),
	}
	if err := j.RecordSummary(ctx, sum); err != nil {
		t.Fatal(err)
	}
	got, err := j.RunSummaries(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].TotalValue != 2.5 {
		t.Errorf("run summaries = %+v", got)
	}
	recent, err := j.RecentSummaries(ctx, "PGTEST", 1)
	if err != nil || len(recent) != 1 {
		t.Errorf("recent = %v, %v", recent, err)
	}
}
