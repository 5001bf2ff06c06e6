package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/echoVic/aidayhot-crawler/internal/model"
)

// Outcome reports what an upsert did.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeUpdated
)

func (o Outcome) String() string {
	if o == OutcomeUpdated {
		return "updated"
	}
	return "inserted"
}

// UpsertArticle writes an article keyed on content_id: a new key inserts,
// an existing one updates in place. The write is a single conflict-resolving
// statement, so two tasks racing on the same content_id settle as
// last-write-wins rather than a unique violation. Stored views/likes survive
// an update when the incoming values are zero, so a source that stops
// reporting engagement counters does not wipe the accumulated ones.
func (db *DB) UpsertArticle(ctx context.Context, a *model.Article) (Outcome, error) {
	if err := validateArticle(a); err != nil {
		return 0, err
	}

	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return 0, fmt.Errorf("encoding tags: %w", err)
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encoding metadata: %w", err)
	}
	publishTime := a.PublishTime.UTC().Format(time.RFC3339)

	// The existence check only picks the Outcome label; the write below is
	// correct either way.
	var exists bool
	err = db.conn.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM articles WHERE content_id = ?)", a.ContentID,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("looking up %s: %w", a.ContentID, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO articles (content_id, record_id, checksum, title, summary, author,
		category, tags, source_url, source_type, publish_time, views, likes, is_new, is_hot, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			record_id = excluded.record_id,
			checksum = excluded.checksum,
			title = excluded.title,
			summary = excluded.summary,
			author = excluded.author,
			category = excluded.category,
			tags = excluded.tags,
			source_url = excluded.source_url,
			publish_time = excluded.publish_time,
			views = CASE WHEN excluded.views = 0 THEN articles.views ELSE excluded.views END,
			likes = CASE WHEN excluded.likes = 0 THEN articles.likes ELSE excluded.likes END,
			is_new = excluded.is_new,
			is_hot = excluded.is_hot,
			metadata = excluded.metadata,
			updated_at = datetime('now')`,
		a.ContentID, a.ID, a.Checksum, a.Title, a.Summary, a.Author,
		a.Category, string(tags), a.SourceURL, string(a.SourceType), publishTime,
		a.Views, a.Likes, boolInt(a.IsNew), boolInt(a.IsHot), string(metadata),
	)
	if err != nil {
		return 0, classifyError(err)
	}
	if exists {
		return OutcomeUpdated, nil
	}
	return OutcomeInserted, nil
}

// GetArticleByContentID returns a stored article, nil when absent.
func (db *DB) GetArticleByContentID(ctx context.Context, contentID string) (*model.Article, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT content_id, record_id, checksum, title, summary, author, category, tags,
		source_url, source_type, publish_time, views, likes, is_new, is_hot, metadata
		FROM articles WHERE content_id = ?`, contentID,
	)

	var a model.Article
	var tags, metadata, publishTime, sourceType string
	var isNew, isHot int
	err := row.Scan(&a.ContentID, &a.ID, &a.Checksum, &a.Title, &a.Summary, &a.Author,
		&a.Category, &tags, &a.SourceURL, &sourceType, &publishTime,
		&a.Views, &a.Likes, &isNew, &isHot, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.SourceType = model.SourceType(sourceType)
	a.IsNew = isNew != 0
	a.IsHot = isHot != 0
	if t, err := time.Parse(time.RFC3339, publishTime); err == nil {
		a.PublishTime = t
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		a.Tags = nil
	}
	if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
		a.Metadata = nil
	}
	return &a, nil
}

// CountArticles returns the total number of stored articles.
func (db *DB) CountArticles(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n)
	return n, err
}

// LatestPublishTime returns the newest stored publish time, zero when the
// store is empty.
func (db *DB) LatestPublishTime(ctx context.Context) (time.Time, error) {
	var latest sql.NullString
	err := db.conn.QueryRowContext(ctx, "SELECT MAX(publish_time) FROM articles").Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, latest.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored publish time: %w", err)
	}
	return t, nil
}

// CountBySource returns stored article counts per source type.
func (db *DB) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT source_type, COUNT(*) FROM articles GROUP BY source_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// validateArticle checks the required fields before any I/O. A failure here
// is a per-item error, not fatal to the batch.
func validateArticle(a *model.Article) error {
	switch {
	case a.ID == "":
		return fmt.Errorf("article missing id")
	case a.Title == "":
		return fmt.Errorf("article missing title")
	case a.SourceURL == "":
		return fmt.Errorf("article missing source_url")
	case a.SourceType == "":
		return fmt.Errorf("article missing source_type")
	case a.ContentID == "":
		return fmt.Errorf("article missing content_id")
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
