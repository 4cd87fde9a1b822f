// ABOUTME: SQLite persistence for the gateway using modernc.org/sqlite
// ABOUTME: Holds principals, the article catalog and per-principal progress maps

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the gateway's authoritative store.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS principals (
			principal_id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			status       TEXT NOT NULL,
			created_at   TEXT NOT NULL,
			last_seen    TEXT,

			CHECK (status IN ('approved', 'revoked'))
		);

		CREATE INDEX IF NOT EXISTS idx_principals_status ON principals(status);

		CREATE TABLE IF NOT EXISTS articles (
			article_id  INTEGER PRIMARY KEY,
			title       TEXT NOT NULL,
			permalink   TEXT NOT NULL,
			total_pages INTEGER NOT NULL DEFAULT 1,
			visible     INTEGER NOT NULL DEFAULT 1,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS progress (
			principal_id    TEXT NOT NULL,
			post_id         INTEGER NOT NULL,
			pages_json      TEXT NOT NULL,
			last_page       INTEGER NOT NULL,
			total_pages     INTEGER NOT NULL,
			percent_overall REAL NOT NULL,
			status          TEXT NOT NULL,
			updated_at      TEXT NOT NULL,

			PRIMARY KEY (principal_id, post_id),
			FOREIGN KEY (principal_id) REFERENCES principals(principal_id) ON DELETE CASCADE,
			CHECK (status IN ('reading', 'locked_done'))
		);

		CREATE INDEX IF NOT EXISTS idx_progress_updated ON progress(principal_id, updated_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		table  string
		column string
		apply  string
	}{
		{
			table:  "articles",
			column: "visible",
			apply:  `ALTER TABLE articles ADD COLUMN visible INTEGER NOT NULL DEFAULT 1`,
		},
		{
			table:  "principals",
			column: "last_seen",
			apply:  `ALTER TABLE principals ADD COLUMN last_seen TEXT`,
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(
			`SELECT 1 FROM pragma_table_info(?) WHERE name = ?`, m.table, m.column,
		).Scan(&exists)
		if err == nil {
			continue
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to %s: %w", m.column, m.table, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", m.table)
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if an error is a SQLite constraint violation.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

// timeLayout is RFC 3339 with fixed-width nanoseconds so stored timestamps
// sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing time %q: %w", s, err)
	}
	return t, nil
}
