package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/echoVic/aidayhot-crawler/internal/identity"
	"github.com/echoVic/aidayhot-crawler/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testArticle(url string) *model.Article {
	a := &model.Article{
		ID:          uuid.NewString(),
		ContentID:   identity.ContentID(model.SourceRSS, url),
		Title:       "Test Article",
		Summary:     "A summary.",
		Author:      "Someone",
		Category:    "news",
		Tags:        []model.Tag{{Term: "ai"}},
		SourceURL:   url,
		SourceType:  model.SourceRSS,
		PublishTime: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		Views:       100,
		Likes:       5,
		Metadata:    map[string]any{"guid": "g-1"},
	}
	a.Checksum = identity.Checksum(a.Title, a.Summary)
	return a
}

func TestOpenConfiguresConnection(t *testing.T) {
	db := openTestDB(t)

	var mode string
	if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("reading journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var busy int
	if err := db.conn.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatalf("reading busy timeout: %v", err)
	}
	if busy != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", busy)
	}
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a := testArticle("https://example.com/post/1")

	outcome, err := db.UpsertArticle(ctx, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeInserted {
		t.Errorf("first upsert = %v, want inserted", outcome)
	}

	// Same content, new run: the record ID changes but the row is reused.
	b := testArticle("https://example.com/post/1")
	b.Summary = "An updated summary."
	b.Checksum = identity.Checksum(b.Title, b.Summary)

	outcome, err = db.UpsertArticle(ctx, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Errorf("second upsert = %v, want updated", outcome)
	}

	n, err := db.CountArticles(ctx)
	if err != nil {
		t.Fatalf("counting: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row after re-ingest, got %d", n)
	}

	stored, err := db.GetArticleByContentID(ctx, a.ContentID)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if stored == nil {
		t.Fatal("article missing after upsert")
	}
	if stored.Summary != "An updated summary." {
		t.Errorf("summary not updated: %q", stored.Summary)
	}
	if stored.Checksum != b.Checksum {
		t.Error("checksum not updated")
	}
}

func TestUpsertPreservesEngagementCounters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := testArticle("https://example.com/post/2")
	a.Views = 500
	a.Likes = 20
	if _, err := db.UpsertArticle(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A re-fetch that reports no counters must not wipe the stored ones.
	b := testArticle("https://example.com/post/2")
	b.Views = 0
	b.Likes = 0
	if _, err := db.UpsertArticle(ctx, b); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := db.GetArticleByContentID(ctx, a.ContentID)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if stored.Views != 500 || stored.Likes != 20 {
		t.Errorf("counters wiped: %d/%d", stored.Views, stored.Likes)
	}

	// Fresh non-zero counters do win.
	c := testArticle("https://example.com/post/2")
	c.Views = 900
	c.Likes = 30
	if _, err := db.UpsertArticle(ctx, c); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ = db.GetArticleByContentID(ctx, a.ContentID)
	if stored.Views != 900 || stored.Likes != 30 {
		t.Errorf("counters not refreshed: %d/%d", stored.Views, stored.Likes)
	}
}

func TestUpsertConcurrentSameContentID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Source tasks racing on one content_id must settle last-write-wins,
	// never surface a unique violation.
	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a := testArticle("https://example.com/post/raced")
			_, err := db.UpsertArticle(ctx, a)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("racing upsert failed: %v", err)
		}
	}
	if n, _ := db.CountArticles(ctx); n != 1 {
		t.Errorf("expected 1 row after racing upserts, got %d", n)
	}
}

func TestUpsertValidatesRequiredFields(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cases := map[string]func(*model.Article){
		"missing id":          func(a *model.Article) { a.ID = "" },
		"missing title":       func(a *model.Article) { a.Title = "" },
		"missing source_url":  func(a *model.Article) { a.SourceURL = "" },
		"missing source_type": func(a *model.Article) { a.SourceType = "" },
		"missing content_id":  func(a *model.Article) { a.ContentID = "" },
	}
	for name, mutate := range cases {
		a := testArticle("https://example.com/post/3")
		mutate(a)
		if _, err := db.UpsertArticle(ctx, a); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	if n, _ := db.CountArticles(ctx); n != 0 {
		t.Errorf("invalid articles must not be written, found %d rows", n)
	}
}

func TestGetArticleByContentIDAbsent(t *testing.T) {
	db := openTestDB(t)
	a, err := db.GetArticleByContentID(context.Background(), "no-such-id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Error("expected nil for an absent content ID")
	}
}

func TestCountBySource(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, url := range []string{"https://a.com/1", "https://a.com/2"} {
		a := testArticle(url)
		if _, err := db.UpsertArticle(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	gh := testArticle("https://github.com/acme/repo")
	gh.ContentID = identity.ContentID(model.SourceGithub, gh.SourceURL)
	gh.SourceType = model.SourceGithub
	if _, err := db.UpsertArticle(ctx, gh); err != nil {
		t.Fatalf("insert: %v", err)
	}

	counts, err := db.CountBySource(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts["rss"] != 2 || counts["github"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestLatestPublishTime(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if latest, err := db.LatestPublishTime(ctx); err != nil || !latest.IsZero() {
		t.Fatalf("empty store: got %v / %v", latest, err)
	}

	older := testArticle("https://a.com/old")
	older.PublishTime = time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	newer := testArticle("https://a.com/new")
	newer.PublishTime = time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	for _, a := range []*model.Article{older, newer} {
		if _, err := db.UpsertArticle(ctx, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	latest, err := db.LatestPublishTime(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !latest.Equal(newer.PublishTime) {
		t.Errorf("latest = %v, want %v", latest, newer.PublishTime)
	}
}

func TestRunsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if r, err := db.GetLastRun(ctx); err != nil || r != nil {
		t.Fatalf("expected no runs yet, got %v / %v", r, err)
	}

	started := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	sources := map[string]int{"arxiv": 40, "rss": 18}
	if _, err := db.InsertRun(ctx, started, 58, 55, 3, 58, 0, sources); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	last, err := db.GetLastRun(ctx)
	if err != nil {
		t.Fatalf("reading last run: %v", err)
	}
	if last == nil {
		t.Fatal("run missing")
	}
	if last.Total != 58 || last.Success != 55 || last.Errors != 3 {
		t.Errorf("totals = %d/%d/%d", last.Total, last.Success, last.Errors)
	}
	if last.Sources["arxiv"] != 40 {
		t.Errorf("sources = %v", last.Sources)
	}

	if n, err := db.CountRuns(ctx); err != nil || n != 1 {
		t.Errorf("run count = %d (%v)", n, err)
	}
}

func TestClassifyConstraintErrors(t *testing.T) {
	tests := []struct {
		msg  string
		want ConstraintClass
	}{
		{"constraint failed: UNIQUE constraint failed: articles.content_id", ClassUniqueViolation},
		{"constraint failed: NOT NULL constraint failed: articles.title", ClassNotNullViolation},
		{"constraint failed: FOREIGN KEY constraint failed", ClassForeignKeyViolation},
		{"attempt to write a readonly database", ClassPermissionDenied},
		{"disk I/O error", ClassUnknown},
	}
	for _, tt := range tests {
		err := classifyError(errors.New(tt.msg))
		if got := ClassOf(err); got != tt.want {
			t.Errorf("%q classified as %v, want %v", tt.msg, got, tt.want)
		}
	}
	if classifyError(nil) != nil {
		t.Error("nil must classify to nil")
	}
}

func TestConstraintErrorHints(t *testing.T) {
	for _, c := range []ConstraintClass{ClassUniqueViolation, ClassNotNullViolation, ClassForeignKeyViolation, ClassPermissionDenied, ClassUnknown} {
		if c.Hint() == "" {
			t.Errorf("class %v has no remediation hint", c)
		}
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	if n, err := db.CountArticles(context.Background()); err != nil || n != 0 {
		t.Errorf("schema unusable after reopen: %d (%v)", n, err)
	}
}
