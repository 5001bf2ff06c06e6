package crawler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/echoVic/aidayhot-crawler/internal/fetch"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
	"github.com/echoVic/aidayhot-crawler/internal/retry"
)

// SocialFetcher scrapes configured discussion/hot-topic pages.
type SocialFetcher struct {
	pages    []string
	client   *fetch.Client
	policy   retry.Policy
	strategy scrapeStrategy
}

// NewSocialFetcher builds the scraper with its mock fallback. timeout
// bounds each HTTP call; zero picks the default.
func NewSocialFetcher(pages []string, timeout time.Duration) *SocialFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	f := &SocialFetcher{
		pages:  pages,
		client: fetch.NewClient(timeout),
		policy: retry.DefaultPolicy(fetch.IsRetryable),
	}
	f.strategy = scrapeStrategy{
		source:   model.SourceSocial,
		tryLive:  f.scrape,
		fallback: socialMock.items,
	}
	return f
}

// Name implements Fetcher.
func (f *SocialFetcher) Name() model.SourceType {
	return model.SourceSocial
}

// Fetch implements Fetcher via the shared scrape strategy.
func (f *SocialFetcher) Fetch(ctx context.Context, fc FetchConfig) FetchResult {
	return f.strategy.fetch(ctx, fc)
}

func (f *SocialFetcher) scrape(ctx context.Context, fc FetchConfig) ([]normalize.RawItem, error) {
	if len(f.pages) == 0 {
		return nil, fmt.Errorf("no social pages configured")
	}

	fetchedAt := time.Now().UTC()
	var raws []normalize.RawItem
	var lastErr error
	for _, page := range f.pages {
		if len(raws) >= fc.MaxResults {
			break
		}

		var doc *goquery.Document
		err := f.policy.Do(ctx, "social", "fetch "+page, func() error {
			var err error
			doc, err = f.client.GetDocument(ctx, page)
			return err
		})
		if err != nil {
			lastErr = err
			log.Printf("[social] page %s failed: %v", page, err)
			continue
		}

		raws = append(raws, extractSocialItems(doc, fc.MaxResults-len(raws), fetchedAt)...)
	}

	if len(raws) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return raws, nil
}

// extractSocialItems reads hot-list entries. Selectors cover the Zhihu hot
// list layout plus a generic anchor fallback for other boards.
func extractSocialItems(doc *goquery.Document, limit int, fetchedAt time.Time) []normalize.RawItem {
	var raws []normalize.RawItem

	appendItem := func(title, href, summary string) {
		if title == "" || href == "" || len(raws) >= limit {
			return
		}
		raws = append(raws, normalize.RawItem{
			Source:    model.SourceSocial,
			URL:       href,
			Title:     title,
			Summary:   summary,
			Category:  "社交",
			FetchedAt: fetchedAt,
			Metadata:  map[string]any{"scraped": true},
		})
	}

	doc.Find(".HotItem").Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(item.Find(".HotItem-title").First().Text())
		summary := strings.TrimSpace(item.Find(".HotItem-excerpt").First().Text())
		appendItem(title, href, summary)
	})

	if len(raws) == 0 {
		doc.Find("article a, h2 a, h3 a").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			appendItem(strings.TrimSpace(link.Text()), href, "")
		})
	}

	return raws
}
