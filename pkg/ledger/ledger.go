// Package ledger records every clustering run to a local SQLite database,
// giving a lightweight audit trail for deployments that don't run a full
// Postgres instance for point storage.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded run.
type Entry struct {
	ID           int64
	Dataset      string
	Mode         string
	ClusterCount int
	PointCount   int
	DurationMS   int64
	FinishedAt   time.Time
}

// Ledger persists run history to a SQLite file.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at dbPath.
func Open(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("ledger: create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			dataset       TEXT NOT NULL,
			mode          TEXT NOT NULL,
			cluster_count INTEGER NOT NULL,
			point_count   INTEGER NOT NULL,
			duration_ms   INTEGER NOT NULL,
			finished_at   TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ledger: create runs table: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends a run entry to the ledger.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (dataset, mode, cluster_count, point_count, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Dataset, e.Mode, e.ClusterCount, e.PointCount, e.DurationMS, e.FinishedAt)
	if err != nil {
		return fmt.Errorf("ledger: record run: %w", err)
	}
	return nil
}

// Recent returns the most recent n run entries, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, dataset, mode, cluster_count, point_count, duration_ms, finished_at
		FROM runs ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("ledger: query recent runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Dataset, &e.Mode, &e.ClusterCount, &e.PointCount, &e.DurationMS, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan run row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
