// Package store mirrors scrape runs into a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aluiziolira/asx-scraper/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME,
	finished_at DATETIME,
	total INTEGER,
	scraped INTEGER,
	skipped INTEGER,
	empty INTEGER,
	cancelled BOOLEAN
);
CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT REFERENCES runs(id),
	asx_code TEXT,
	company_name TEXT,
	yahoo_symbol TEXT,
	scraped_at DATETIME
);
CREATE TABLE IF NOT EXISTS statistics (
	result_id INTEGER REFERENCES results(id),
	position INTEGER,
	metric TEXT,
	value TEXT
);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
`

// SQLiteStore persists runs, results and their statistics.
type SQLiteStore struct {
	db *sql.DB
}

// Open connects to dbPath and creates the tables if needed.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// StartRun records a new run.
func (s *SQLiteStore) StartRun(ctx context.Context, run *models.RunResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, total, scraped, skipped, empty, cancelled) VALUES (?, ?, ?, 0, 0, 0, 0)`,
		run.RunID, run.StartTime.UTC(), run.Total)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.RunID, err)
	}
	return nil
}

// SaveResult stores one result and its statistics in a single transaction.
func (s *SQLiteStore) SaveResult(ctx context.Context, runID string, result models.ScrapeResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO results (run_id, asx_code, company_name, yahoo_symbol, scraped_at) VALUES (?, ?, ?, ?, ?)`,
		runID, result.ASXCode, result.CompanyName, result.Symbol, result.ScrapedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert result %s: %w", result.ASXCode, err)
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("result id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO statistics (result_id, position, metric, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare statistics insert: %w", err)
	}
	defer stmt.Close()

	for i, key := range result.Statistics.Keys() {
		value, _ := result.Statistics.Get(key)
		if _, err := stmt.ExecContext(ctx, resultID, i, key, value); err != nil {
			return fmt.Errorf("insert statistic %q for %s: %w", key, result.ASXCode, err)
		}
	}
	return tx.Commit()
}

// FinishRun stores the final counters of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.RunResult) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, scraped = ?, skipped = ?, empty = ?, cancelled = ? WHERE id = ?`,
		run.EndTime.UTC(), run.Scraped, run.Skipped, run.Empty, run.Cancelled, run.RunID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun loads the summary of a stored run.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*models.RunResult, error) {
	run := &models.RunResult{RunID: runID}
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at, finished_at, total, scraped, skipped, empty, cancelled FROM runs WHERE id = ?`, runID).
		Scan(&run.StartTime, &finished, &run.Total, &run.Scraped, &run.Skipped, &run.Empty, &run.Cancelled)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if finished.Valid {
		run.EndTime = finished.Time
	}
	return run, nil
}

// Results returns the stored results of a run in insertion order.
func (s *SQLiteStore) Results(ctx context.Context, runID string) ([]models.ScrapeResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asx_code, company_name, yahoo_symbol, scraped_at FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}

	var ids []int64
	var results []models.ScrapeResult
	for rows.Next() {
		var id int64
		var r models.ScrapeResult
		var scrapedAt time.Time
		if err := rows.Scan(&id, &r.ASXCode, &r.CompanyName, &r.Symbol, &scrapedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.ScrapedAt = scrapedAt
		ids = append(ids, id)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	rows.Close()

	for i, id := range ids {
		if err := s.loadStatistics(ctx, id, &results[i].Statistics); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *SQLiteStore) loadStatistics(ctx context.Context, resultID int64, stats *models.Statistics) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric, value FROM statistics WHERE result_id = ? ORDER BY position`, resultID)
	if err != nil {
		return fmt.Errorf("query statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var metric, value string
		if err := rows.Scan(&metric, &value); err != nil {
			return fmt.Errorf("scan statistic: %w", err)
		}
		stats.Set(metric, value)
	}
	return rows.Err()
}
