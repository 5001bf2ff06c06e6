package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/echoVic/aidayhot-crawler/internal/model"
)

func baseRaw() RawItem {
	return RawItem{
		Source:    model.SourceRSS,
		URL:       "https://example.com/post/1",
		Title:     "A Title",
		Summary:   "A summary.",
		Author:    "Someone",
		FetchedAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeRequiredFields(t *testing.T) {
	missingURL := baseRaw()
	missingURL.URL = ""
	if _, err := Normalize(missingURL); err == nil {
		t.Error("expected error for missing URL")
	}

	missingTitle := baseRaw()
	missingTitle.Title = "   "
	if _, err := Normalize(missingTitle); err == nil {
		t.Error("expected error for missing title")
	}
}

func TestNormalizeAssignsIdentity(t *testing.T) {
	a, err := Normalize(baseRaw())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" {
		t.Error("expected a record ID")
	}
	if len(a.ContentID) != 64 {
		t.Errorf("content ID = %q", a.ContentID)
	}
	if a.Checksum == "" {
		t.Error("expected a checksum")
	}

	b, _ := Normalize(baseRaw())
	if a.ContentID != b.ContentID {
		t.Error("same logical item must share a content ID")
	}
	if a.ID == b.ID {
		t.Error("record IDs must be unique per normalization")
	}
}

func TestTruncateBoundary(t *testing.T) {
	atLimit := strings.Repeat("x", MaxTitleLen)
	if got := Truncate(atLimit, MaxTitleLen); got != atLimit {
		t.Error("value at the limit must pass through untouched")
	}

	over := strings.Repeat("x", MaxTitleLen+1)
	got := Truncate(over, MaxTitleLen)
	if len([]rune(got)) != MaxTitleLen {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), MaxTitleLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis suffix, got %q", got[len(got)-10:])
	}
	if got[:MaxTitleLen-3] != over[:MaxTitleLen-3] {
		t.Error("truncation must keep the leading content")
	}
}

func TestTruncateMultibyte(t *testing.T) {
	over := strings.Repeat("深", MaxCategoryLen+10)
	got := Truncate(over, MaxCategoryLen)
	if n := len([]rune(got)); n != MaxCategoryLen {
		t.Errorf("rune length = %d, want %d", n, MaxCategoryLen)
	}
}

func TestNormalizeTruncatesFields(t *testing.T) {
	raw := baseRaw()
	raw.Title = strings.Repeat("t", MaxTitleLen+50)
	raw.Summary = strings.Repeat("s", MaxSummaryLen+50)
	raw.Category = strings.Repeat("c", MaxCategoryLen+50)

	a, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len([]rune(a.Title)); n != MaxTitleLen {
		t.Errorf("title length = %d", n)
	}
	if n := len([]rune(a.Summary)); n != MaxSummaryLen {
		t.Errorf("summary length = %d", n)
	}
	if n := len([]rune(a.Category)); n != MaxCategoryLen {
		t.Errorf("category length = %d", n)
	}
}

func TestNormalizeDefaultAuthor(t *testing.T) {
	raw := baseRaw()
	raw.Author = "  "
	a, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Author != DefaultAuthor {
		t.Errorf("author = %q, want %q", a.Author, DefaultAuthor)
	}
}

func TestNormalizePublishTime(t *testing.T) {
	raw := baseRaw()
	raw.Published = "2026-08-30T08:15:00Z"
	a, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 8, 30, 8, 15, 0, 0, time.UTC)
	if !a.PublishTime.Equal(want) {
		t.Errorf("publish time = %v, want %v", a.PublishTime, want)
	}
	if a.IsNew {
		t.Error("item published 2 days before fetch must not be new")
	}

	unparseable := baseRaw()
	unparseable.Published = "not a date"
	b, err := Normalize(unparseable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.PublishTime.Equal(unparseable.FetchedAt) {
		t.Errorf("unparseable date must fall back to fetch time, got %v", b.PublishTime)
	}
	if !b.IsNew {
		t.Error("fallback publish time makes the item new")
	}
}

func TestNormalizeHotness(t *testing.T) {
	byViews := baseRaw()
	byViews.Views = 10000
	if a, _ := Normalize(byViews); !a.IsHot {
		t.Error("10000 views must mark the item hot")
	}

	byLikes := baseRaw()
	byLikes.Likes = 100
	if a, _ := Normalize(byLikes); !a.IsHot {
		t.Error("100 likes must mark the item hot")
	}

	cold := baseRaw()
	cold.Views = 9999
	cold.Likes = 99
	if a, _ := Normalize(cold); a.IsHot {
		t.Error("below both thresholds must not be hot")
	}
}

func TestNormalizeRenamesMetadata(t *testing.T) {
	raw := baseRaw()
	raw.Metadata = map[string]any{
		"stargazers_count": 42,
		"forks_count":      7,
		"language":         "Go",
	}
	a, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Metadata["stars"] != 42 {
		t.Errorf("stars = %v", a.Metadata["stars"])
	}
	if a.Metadata["forks"] != 7 {
		t.Errorf("forks = %v", a.Metadata["forks"])
	}
	if _, ok := a.Metadata["stargazers_count"]; ok {
		t.Error("raw key must be renamed, not duplicated")
	}
	if a.Metadata["language"] != "Go" {
		t.Error("unrelated keys must pass through")
	}
}

func TestExtractTagShapes(t *testing.T) {
	tags := ExtractTags([]any{
		"plain",
		model.Tag{Term: "cs.AI", Scheme: "http://arxiv.org/schemas/atom"},
		map[string]any{"@_term": "cs.LG", "@_scheme": "http://arxiv.org/schemas/atom"},
		map[string]any{"name": "golang"},
		map[string]any{"irrelevant": "x"},
		"",
		42,
	})

	want := []string{"plain", "cs.AI", "cs.LG", "golang"}
	if len(tags) != len(want) {
		t.Fatalf("got %d tags, want %d: %+v", len(tags), len(want), tags)
	}
	for i, term := range want {
		if tags[i].Term != term {
			t.Errorf("tag %d = %q, want %q", i, tags[i].Term, term)
		}
	}
	if tags[2].Scheme != "http://arxiv.org/schemas/atom" {
		t.Errorf("scheme lost: %+v", tags[2])
	}
}

func TestChecksumTracksContent(t *testing.T) {
	a, _ := Normalize(baseRaw())

	changed := baseRaw()
	changed.Summary = "A different summary."
	b, _ := Normalize(changed)

	if a.ContentID != b.ContentID {
		t.Error("content ID must not change when only the summary changes")
	}
	if a.Checksum == b.Checksum {
		t.Error("checksum must change when the summary changes")
	}
}
