package model

import (
	"fmt"
	"time"
)

// SourceType identifies which upstream a record came from.
type SourceType string

const (
	SourceArxiv          SourceType = "arxiv"
	SourceGithub         SourceType = "github"
	SourceRSS            SourceType = "rss"
	SourceStackOverflow  SourceType = "stackoverflow"
	SourcePapersWithCode SourceType = "papers_with_code"
	SourceSocial         SourceType = "social"
	SourceVideo          SourceType = "video"
	SourceWeb            SourceType = "web"
)

// AllSources lists every supported source in default run order.
func AllSources() []SourceType {
	return []SourceType{
		SourceArxiv,
		SourceGithub,
		SourceRSS,
		SourceStackOverflow,
		SourcePapersWithCode,
		SourceSocial,
		SourceVideo,
		SourceWeb,
	}
}

// ParseSourceType validates a user-supplied source name.
func ParseSourceType(s string) (SourceType, error) {
	for _, st := range AllSources() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unsupported source: %q", s)
}

// Tag is a content tag. Upstream feeds deliver tags either as plain strings
// or as structured XML-derived objects with a term and an optional scheme;
// both collapse into this one shape.
type Tag struct {
	Term   string `json:"term"`
	Scheme string `json:"scheme,omitempty"`
}

// PlainTag wraps a bare string tag.
func PlainTag(term string) Tag {
	return Tag{Term: term}
}

// Value returns the usable string form of the tag, empty if none.
func (t Tag) Value() string {
	return t.Term
}

// Article is the canonical persisted content record. ContentID is the dedup
// key; ID is only unique within a single ingestion run.
type Article struct {
	ID          string
	ContentID   string
	Checksum    string
	Title       string
	Summary     string
	Author      string
	Category    string
	Tags        []Tag
	SourceURL   string
	SourceType  SourceType
	PublishTime time.Time
	Views       int
	Likes       int
	IsNew       bool
	IsHot       bool
	Metadata    map[string]any
}

// IsMock reports whether the article was synthesized by a mock fallback.
func (a *Article) IsMock() bool {
	v, ok := a.Metadata["is_mock_data"].(bool)
	return ok && v
}
