package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/echoVic/aidayhot-crawler/internal/fetch"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
	"github.com/echoVic/aidayhot-crawler/internal/retry"
)

const papersWithCodeBaseURL = "https://paperswithcode.com"

// PapersWithCodeFetcher scrapes the trending-papers listing.
type PapersWithCodeFetcher struct {
	listURL  string
	client   *fetch.Client
	policy   retry.Policy
	strategy scrapeStrategy
}

// NewPapersWithCodeFetcher builds the scraper with its mock fallback.
// timeout bounds each HTTP call; zero picks the default.
func NewPapersWithCodeFetcher(listURL string, timeout time.Duration) *PapersWithCodeFetcher {
	if listURL == "" {
		listURL = papersWithCodeBaseURL + "/latest"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	f := &PapersWithCodeFetcher{
		listURL: listURL,
		client:  fetch.NewClient(timeout),
		policy:  retry.DefaultPolicy(fetch.IsRetryable),
	}
	f.strategy = scrapeStrategy{
		source:   model.SourcePapersWithCode,
		tryLive:  f.scrape,
		fallback: papersWithCodeMock.items,
	}
	return f
}

// Name implements Fetcher.
func (f *PapersWithCodeFetcher) Name() model.SourceType {
	return model.SourcePapersWithCode
}

// Fetch implements Fetcher via the shared scrape strategy.
func (f *PapersWithCodeFetcher) Fetch(ctx context.Context, fc FetchConfig) FetchResult {
	return f.strategy.fetch(ctx, fc)
}

func (f *PapersWithCodeFetcher) scrape(ctx context.Context, fc FetchConfig) ([]normalize.RawItem, error) {
	var doc *goquery.Document
	err := f.policy.Do(ctx, "papers_with_code", "fetch listing", func() error {
		var err error
		doc, err = f.client.GetDocument(ctx, f.listURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	fetchedAt := time.Now().UTC()
	var raws []normalize.RawItem
	doc.Find(".paper-card").EachWithBreak(func(i int, card *goquery.Selection) bool {
		if len(raws) >= fc.MaxResults {
			return false
		}

		link := card.Find("h1 a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		if !strings.HasPrefix(href, "http") {
			href = papersWithCodeBaseURL + href
		}

		summary := strings.TrimSpace(card.Find(".item-strip-abstract").First().Text())
		stars := parseCount(card.Find(".entity-stars .badge").First().Text())

		var tags []any
		card.Find(".badge-primary").Each(func(_ int, badge *goquery.Selection) {
			if t := strings.TrimSpace(badge.Text()); t != "" {
				tags = append(tags, t)
			}
		})

		raws = append(raws, normalize.RawItem{
			Source:    model.SourcePapersWithCode,
			URL:       href,
			Title:     title,
			Summary:   summary,
			Category:  "论文",
			Tags:      tags,
			FetchedAt: fetchedAt,
			Likes:     stars,
			Metadata: map[string]any{
				"stars": stars,
			},
		})
		return true
	})

	return raws, nil
}

// parseCount reads counts like "1,234" or "2.1k" from scraped badges.
func parseCount(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	mult := 1
	if strings.HasSuffix(s, "k") {
		mult = 1000
		s = strings.TrimSuffix(s, "k")
	}
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return 0
	}
	return int(f * float64(mult))
}
