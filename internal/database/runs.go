package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// RunRecord summarizes one completed crawl run.
type RunRecord struct {
	ID             int64
	StartedAt      string
	FinishedAt     string
	Total          int
	Success        int
	Errors         int
	CrawlerSuccess int
	SaveErrors     int
	Sources        map[string]int
}

// InsertRun records a completed crawl run's statistics.
func (db *DB) InsertRun(ctx context.Context, startedAt time.Time, total, success, errs, crawlerSuccess, saveErrors int, sources map[string]int) (int64, error) {
	encoded, err := json.Marshal(sources)
	if err != nil {
		return 0, err
	}
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO crawl_runs (started_at, total, success, errors, crawler_success, save_errors, sources)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339), total, success, errs, crawlerSuccess, saveErrors, string(encoded),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetLastRun returns the most recent run, nil when none exist.
func (db *DB) GetLastRun(ctx context.Context) (*RunRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, total, success, errors, crawler_success, save_errors, sources
		FROM crawl_runs ORDER BY id DESC LIMIT 1`)

	var r RunRecord
	var sources string
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Success,
		&r.Errors, &r.CrawlerSuccess, &r.SaveErrors, &sources)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
		r.Sources = nil
	}
	return &r, nil
}

// CountRuns returns the number of recorded runs.
func (db *DB) CountRuns(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM crawl_runs").Scan(&n)
	return n, err
}
