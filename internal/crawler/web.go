package crawler

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/echoVic/aidayhot-crawler/internal/fetch"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
	"github.com/echoVic/aidayhot-crawler/internal/retry"
)

// webSummaryFetchCap bounds how many article pages get a full readable-text
// extraction per listing; the rest keep their listing-level summary.
const webSummaryFetchCap = 5

// WebFetcher scrapes generic news listing pages and enriches the first few
// articles with readability-extracted summaries.
type WebFetcher struct {
	pages    []string
	client   *fetch.Client
	policy   retry.Policy
	strategy scrapeStrategy
}

// NewWebFetcher builds the scraper with its mock fallback. timeout bounds
// each HTTP call; zero picks the default.
func NewWebFetcher(pages []string, timeout time.Duration) *WebFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	f := &WebFetcher{
		pages:  pages,
		client: fetch.NewClient(timeout),
		policy: retry.DefaultPolicy(fetch.IsRetryable),
	}
	f.strategy = scrapeStrategy{
		source:   model.SourceWeb,
		tryLive:  f.scrape,
		fallback: webMock.items,
	}
	return f
}

// Name implements Fetcher.
func (f *WebFetcher) Name() model.SourceType {
	return model.SourceWeb
}

// Fetch implements Fetcher via the shared scrape strategy.
func (f *WebFetcher) Fetch(ctx context.Context, fc FetchConfig) FetchResult {
	return f.strategy.fetch(ctx, fc)
}

func (f *WebFetcher) scrape(ctx context.Context, fc FetchConfig) ([]normalize.RawItem, error) {
	if len(f.pages) == 0 {
		return nil, fmt.Errorf("no web pages configured")
	}

	fetchedAt := time.Now().UTC()
	var raws []normalize.RawItem
	var lastErr error
	for _, page := range f.pages {
		if len(raws) >= fc.MaxResults {
			break
		}

		var doc *goquery.Document
		err := f.policy.Do(ctx, "web", "fetch "+page, func() error {
			var err error
			doc, err = f.client.GetDocument(ctx, page)
			return err
		})
		if err != nil {
			lastErr = err
			log.Printf("[web] page %s failed: %v", page, err)
			continue
		}

		raws = append(raws, f.extractListing(doc, page, fc.MaxResults-len(raws), fetchedAt)...)
	}

	if len(raws) == 0 && lastErr != nil {
		return nil, lastErr
	}

	f.enrichSummaries(ctx, raws)
	return raws, nil
}

// extractListing pulls article links and titles out of a listing page.
func (f *WebFetcher) extractListing(doc *goquery.Document, pageURL string, limit int, fetchedAt time.Time) []normalize.RawItem {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]struct{})
	var raws []normalize.RawItem

	doc.Find("article a, .article-item a, h2 a, h3 a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if len(raws) >= limit {
			return false
		}

		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		if ref, err := url.Parse(href); err == nil && base != nil {
			href = base.ResolveReference(ref).String()
		}
		if _, dup := seen[href]; dup {
			return true
		}
		seen[href] = struct{}{}

		raws = append(raws, normalize.RawItem{
			Source:    model.SourceWeb,
			URL:       href,
			Title:     title,
			Category:  "资讯",
			FetchedAt: fetchedAt,
			Metadata:  map[string]any{"listing_url": pageURL},
		})
		return true
	})

	return raws
}

// enrichSummaries fetches the first few article pages and extracts readable
// text for the summary. Failures leave the item as-is.
func (f *WebFetcher) enrichSummaries(ctx context.Context, raws []normalize.RawItem) {
	n := len(raws)
	if n > webSummaryFetchCap {
		n = webSummaryFetchCap
	}
	for i := 0; i < n; i++ {
		if raws[i].Summary != "" {
			continue
		}
		body, err := f.client.Get(ctx, raws[i].URL, nil)
		if err != nil {
			continue
		}
		if text := fetch.ExtractReadable(body, raws[i].URL); text != "" {
			raws[i].Summary = text
		}
	}
}
