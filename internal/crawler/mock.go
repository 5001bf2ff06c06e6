package crawler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
)

// scrapeStrategy composes the live/fallback decision shared by every
// scraping-based fetcher: try the live scrape, and when it errors or parses
// zero items, synthesize a deterministic mock batch of exactly the
// requested size so downstream stages never special-case an empty source.
type scrapeStrategy struct {
	source   model.SourceType
	tryLive  func(ctx context.Context, fc FetchConfig) ([]normalize.RawItem, error)
	fallback func(n int) []normalize.RawItem
}

func (s *scrapeStrategy) fetch(ctx context.Context, fc FetchConfig) FetchResult {
	raws, err := s.tryLive(ctx, fc)
	if err != nil {
		log.Printf("[%s] live fetch failed, using mock data: %v", s.source, err)
		raws = nil
	}
	if len(raws) == 0 {
		raws = s.fallback(fc.MaxResults)
	}
	if len(raws) > fc.MaxResults {
		raws = raws[:fc.MaxResults]
	}
	return succeed(s.source, normalizeAll(s.source, raws, fc.Verbose))
}

// mockSpec parameterizes the synthetic batches per source.
type mockSpec struct {
	source   model.SourceType
	urlStem  string
	titleFmt string
	summary  string
	author   string
	category string
	tags     []any
}

// items generates n well-formed synthetic records tagged is_mock_data.
// URLs are index-derived so content IDs stay stable across runs.
func (m mockSpec) items(n int) []normalize.RawItem {
	now := time.Now().UTC()
	raws := make([]normalize.RawItem, 0, n)
	for i := 0; i < n; i++ {
		raws = append(raws, normalize.RawItem{
			Source:      m.source,
			URL:         fmt.Sprintf("%s/%d", m.urlStem, i+1),
			Title:       fmt.Sprintf(m.titleFmt, i+1),
			Summary:     m.summary,
			Author:      m.author,
			Category:    m.category,
			Tags:        m.tags,
			PublishTime: now.Add(-time.Duration(i) * time.Hour),
			FetchedAt:   now,
			Views:       100 * (i + 1),
			Likes:       10 * (i + 1),
			Metadata:    map[string]any{"is_mock_data": true},
		})
	}
	return raws
}

var (
	papersWithCodeMock = mockSpec{
		source:   model.SourcePapersWithCode,
		urlStem:  "https://paperswithcode.com/paper/sample-paper",
		titleFmt: "Sample Paper with Code #%d",
		summary:  "Placeholder abstract for a trending paper with an open-source implementation.",
		author:   "Papers with Code",
		category: "论文",
		tags:     []any{"deep-learning", "benchmark"},
	}
	socialMock = mockSpec{
		source:   model.SourceSocial,
		urlStem:  "https://www.zhihu.com/question/sample",
		titleFmt: "AI 热门讨论 #%d",
		summary:  "Placeholder discussion thread about current AI topics.",
		author:   "社区用户",
		category: "社交",
		tags:     []any{"AI", "讨论"},
	}
	videoMock = mockSpec{
		source:   model.SourceVideo,
		urlStem:  "https://www.youtube.com/watch?v=sample",
		titleFmt: "AI Tutorial Video #%d",
		summary:  "Placeholder video introducing a current AI technique.",
		author:   "AI Channel",
		category: "视频",
		tags:     []any{"tutorial", "AI"},
	}
	webMock = mockSpec{
		source:   model.SourceWeb,
		urlStem:  "https://news.example.com/ai/article",
		titleFmt: "AI 行业动态 #%d",
		summary:  "Placeholder industry news article about AI developments.",
		author:   "科技编辑",
		category: "资讯",
		tags:     []any{"行业", "AI"},
	}
)
