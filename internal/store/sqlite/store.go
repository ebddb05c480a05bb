// Package sqlite persists daily price bars and evaluation summaries.
//
// One database file holds both tables. The connection pool is capped at a
// single connection so concurrent batch workers serialize on the writer
// instead of tripping SQLITE_BUSY.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

const dateLayout = "2006-01-02"

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/signalbench.db"
}

// Store is the SQLite-backed bar cache and evaluation journal.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open creates or opens the database with WAL mode and ensures the schema.
func Open(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS price_bars (
			ticker    TEXT    NOT NULL,
			date      TEXT    NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			adj_close REAL    NOT NULL,
			volume    INTEGER,
			PRIMARY KEY (ticker, date)
		);

		CREATE TABLE IF NOT EXISTS evaluations (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT,
			ticker          TEXT    NOT NULL,
			span            TEXT    NOT NULL,
			policy          TEXT    NOT NULL,
			bars            INTEGER NOT NULL,
			trades          INTEGER NOT NULL,
			total_value     REAL    NOT NULL,
			performance_pct REAL    NOT NULL,
			last_date       TEXT    NOT NULL,
			data            TEXT    NOT NULL,
			evaluated_at    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_evaluations_ticker ON evaluations(ticker, span, policy);
		CREATE INDEX IF NOT EXISTS idx_evaluations_run ON evaluations(run_id);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
