package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    content_id TEXT PRIMARY KEY,
    record_id TEXT NOT NULL,
    checksum TEXT NOT NULL,
    title TEXT NOT NULL,
    summary TEXT,
    author TEXT,
    category TEXT,
    tags TEXT,
    source_url TEXT NOT NULL,
    source_type TEXT NOT NULL,
    publish_time TEXT,
    views INTEGER DEFAULT 0,
    likes INTEGER DEFAULT 0,
    is_new INTEGER DEFAULT 0,
    is_hot INTEGER DEFAULT 0,
    metadata TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS crawl_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL,
    finished_at TEXT DEFAULT (datetime('now')),
    total INTEGER DEFAULT 0,
    success INTEGER DEFAULT 0,
    errors INTEGER DEFAULT 0,
    crawler_success INTEGER DEFAULT 0,
    save_errors INTEGER DEFAULT 0,
    sources TEXT
);

CREATE INDEX IF NOT EXISTS idx_articles_source_type ON articles(source_type);
CREATE INDEX IF NOT EXISTS idx_articles_publish_time ON articles(publish_time);
CREATE INDEX IF NOT EXISTS idx_crawl_runs_started ON crawl_runs(started_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
