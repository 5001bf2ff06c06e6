package crawler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/echoVic/aidayhot-crawler/internal/config"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
)

const (
	rssDefaultFeedTimeout = 10 * time.Second

	// Feeds live on varied hosts; a fixed delay between them avoids bursts.
	rssInterFeedDelay = time.Second
)

// RSSFetcher parses the configured RSS/Atom feeds.
type RSSFetcher struct {
	feeds   []config.Feed
	parser  *gofeed.Parser
	timeout time.Duration
}

// NewRSSFetcher builds the fetcher for a multi-feed batch. timeout bounds
// each feed fetch; zero picks the default.
func NewRSSFetcher(feeds []config.Feed, timeout time.Duration) *RSSFetcher {
	if timeout <= 0 {
		timeout = rssDefaultFeedTimeout
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &RSSFetcher{feeds: feeds, parser: parser, timeout: timeout}
}

// Name implements Fetcher.
func (f *RSSFetcher) Name() model.SourceType {
	return model.SourceRSS
}

// Fetch parses all feeds sequentially with a fixed inter-feed delay. A feed
// that fails to parse is logged and skipped; the batch fails only when no
// feed produced anything.
func (f *RSSFetcher) Fetch(ctx context.Context, fc FetchConfig) FetchResult {
	if len(f.feeds) == 0 {
		return fail(model.SourceRSS, fmt.Errorf("no feeds configured"))
	}

	perFeed := fc.MaxResults / len(f.feeds)
	if perFeed < 1 {
		perFeed = 1
	}

	var raws []normalize.RawItem
	var lastErr error
	for i, feedCfg := range f.feeds {
		if len(raws) >= fc.MaxResults {
			break
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fail(model.SourceRSS, ctx.Err())
			case <-time.After(rssInterFeedDelay):
			}
		}

		entries, err := f.parseFeed(ctx, feedCfg, perFeed)
		if err != nil {
			lastErr = err
			log.Printf("[rss] feed %s failed: %v", feedCfg.URL, err)
			continue
		}
		raws = append(raws, entries...)
	}

	if len(raws) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no entries in %d feeds", len(f.feeds))
		}
		return fail(model.SourceRSS, lastErr)
	}
	if len(raws) > fc.MaxResults {
		raws = raws[:fc.MaxResults]
	}

	return succeed(model.SourceRSS, normalizeAll(model.SourceRSS, raws, fc.Verbose))
}

func (f *RSSFetcher) parseFeed(ctx context.Context, feedCfg config.Feed, maxItems int) ([]normalize.RawItem, error) {
	feedCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(feedCfg.URL, feedCtx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	sourceName := feedCfg.Name
	if sourceName == "" {
		sourceName = feed.Title
	}

	fetchedAt := time.Now().UTC()
	var raws []normalize.RawItem
	for _, item := range feed.Items {
		if len(raws) >= maxItems {
			break
		}

		// The item link is the identity; GUID backfills feeds without one.
		link := item.Link
		if link == "" {
			link = item.GUID
		}
		if link == "" {
			continue
		}

		var publishTime time.Time
		if item.PublishedParsed != nil {
			publishTime = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishTime = *item.UpdatedParsed
		}

		var author string
		if item.Author != nil {
			author = item.Author.Name
		}

		tags := make([]any, 0, len(item.Categories))
		for _, c := range item.Categories {
			tags = append(tags, c)
		}

		raws = append(raws, normalize.RawItem{
			Source:      model.SourceRSS,
			URL:         link,
			Title:       item.Title,
			Summary:     item.Description,
			Author:      author,
			Category:    sourceName,
			Tags:        tags,
			PublishTime: publishTime,
			FetchedAt:   fetchedAt,
			Metadata: map[string]any{
				"feed_url":   feedCfg.URL,
				"feed_title": feed.Title,
				"guid":       item.GUID,
			},
		})
	}
	return raws, nil
}
