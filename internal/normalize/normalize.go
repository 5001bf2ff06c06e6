// Package normalize maps source-specific raw items into canonical articles.
// Everything here is pure transformation; fetchers do the I/O.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/echoVic/aidayhot-crawler/internal/identity"
	"github.com/echoVic/aidayhot-crawler/internal/model"
)

// Display budgets. Over-limit values are truncated with an ellipsis, never
// rejected.
const (
	MaxTitleLen    = 1000
	MaxSummaryLen  = 5000
	MaxCategoryLen = 100
)

// DefaultAuthor fills in when a source provides no author at all.
const DefaultAuthor = "未知作者"

// RawItem is the transient, source-specific fetch result. Tags may hold
// plain strings, model.Tag values, or structured maps from XML-derived
// feeds; Normalize tolerates all three.
type RawItem struct {
	Source      model.SourceType
	URL         string
	Title       string
	Summary     string
	Author      string
	Category    string
	Tags        []any
	Published   string    // raw date text, any common format
	PublishTime time.Time // already-parsed date, wins over Published
	FetchedAt   time.Time
	Views       int
	Likes       int
	Metadata    map[string]any
}

// Metadata keys that get renamed to their canonical form.
var metadataRenames = map[string]string{
	"stargazers_count": "stars",
	"forks_count":      "forks",
	"watchers_count":   "watchers",
	"view_count":       "views",
}

// Normalize converts a raw item into a canonical Article. It returns an
// error only when a required field is missing; that is a per-item failure
// and the batch continues.
func Normalize(raw RawItem) (model.Article, error) {
	if raw.URL == "" {
		return model.Article{}, fmt.Errorf("normalize %s item: missing URL", raw.Source)
	}
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return model.Article{}, fmt.Errorf("normalize %s item %s: missing title", raw.Source, raw.URL)
	}

	fetchedAt := raw.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	title = Truncate(title, MaxTitleLen)
	summary := Truncate(strings.TrimSpace(raw.Summary), MaxSummaryLen)
	category := Truncate(strings.TrimSpace(raw.Category), MaxCategoryLen)

	author := strings.TrimSpace(raw.Author)
	if author == "" {
		author = DefaultAuthor
	}

	publishTime := raw.PublishTime
	if publishTime.IsZero() && raw.Published != "" {
		if t, err := dateparse.ParseAny(raw.Published); err == nil {
			publishTime = t
		}
	}
	if publishTime.IsZero() {
		publishTime = fetchedAt
	}
	publishTime = publishTime.UTC()

	metadata := make(map[string]any, len(raw.Metadata))
	for k, v := range raw.Metadata {
		if canonical, ok := metadataRenames[k]; ok {
			k = canonical
		}
		metadata[k] = v
	}

	sourceURL := identity.CanonicalURL(raw.URL)

	a := model.Article{
		ID:          uuid.NewString(),
		ContentID:   identity.ContentID(raw.Source, raw.URL),
		Title:       title,
		Summary:     summary,
		Author:      author,
		Category:    category,
		Tags:        ExtractTags(raw.Tags),
		SourceURL:   sourceURL,
		SourceType:  raw.Source,
		PublishTime: publishTime,
		Views:       raw.Views,
		Likes:       raw.Likes,
		IsNew:       fetchedAt.Sub(publishTime) < 24*time.Hour,
		IsHot:       raw.Views >= 10000 || raw.Likes >= 100,
		Metadata:    metadata,
	}
	a.Checksum = identity.Checksum(a.Title, a.Summary)
	return a, nil
}

// ExtractTags keeps every tag with a usable string value, in order.
func ExtractTags(raw []any) []model.Tag {
	var tags []model.Tag
	for _, v := range raw {
		if tag, ok := ExtractTag(v); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ExtractTag pulls a Tag out of the shapes upstream feeds produce: a plain
// string, an already-built Tag, or a structured map such as
// {"@_term": "cs.AI", "@_scheme": "..."} from XML-derived JSON.
func ExtractTag(v any) (model.Tag, bool) {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return model.PlainTag(s), true
		}
	case model.Tag:
		if t.Term != "" {
			return t, true
		}
	case map[string]any:
		term := firstString(t, "@_term", "term", "name", "value")
		if term == "" {
			return model.Tag{}, false
		}
		return model.Tag{
			Term:   term,
			Scheme: firstString(t, "@_scheme", "scheme"),
		}, true
	}
	return model.Tag{}, false
}

// Truncate limits s to max characters, replacing the tail with an ellipsis.
// Values at or under the limit pass through untouched.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
