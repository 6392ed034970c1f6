package harvest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS completed_stages (
	stage TEXT NOT NULL,
	competition_id INTEGER NOT NULL,
	output_path TEXT NOT NULL,
	finished_at INTEGER NOT NULL,
	PRIMARY KEY (stage, competition_id)
);`

// Ledger records which stages already finished for which competition, so a
// later run can tell a deliberately skipped stage from one that never ran.
// The output file on disk stays the skip predicate, the ledger is the
// audit trail behind it.
type Ledger struct {
	db *sql.DB
}

func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite misbehaves under concurrent writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) MarkCompleted(ctx context.Context, stage string, competitionID int, outputPath string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO completed_stages (stage, competition_id, output_path, finished_at)
		 VALUES (?, ?, ?, ?)`,
		stage, competitionID, outputPath, time.Now().Unix())
	return err
}

func (l *Ledger) Completed(ctx context.Context, stage string, competitionID int) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM completed_stages WHERE stage = ? AND competition_id = ?`,
		stage, competitionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
