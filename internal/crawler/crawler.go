// Package crawler holds one fetcher per external source. Each fetcher knows
// its source's protocol, captures every failure inside its FetchResult, and
// emits canonical articles via the normalizer.
package crawler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/echoVic/aidayhot-crawler/internal/config"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
)

// FetchConfig carries the per-run tuning for a single fetcher invocation.
// Per-call HTTP timeouts are a construction-time concern, set from the
// source's timeout_seconds config.
type FetchConfig struct {
	MaxResults int
	Verbose    bool
}

// FetchResult is what a fetcher hands back to the orchestrator. Failures
// never escape as panics or errors; Success=false plus Err is the contract.
type FetchResult struct {
	Source  model.SourceType
	Success bool
	Items   []model.Article
	Err     error
}

// Fetcher is implemented once per external source.
type Fetcher interface {
	Name() model.SourceType
	Fetch(ctx context.Context, fc FetchConfig) FetchResult
}

// New builds the fetcher for a single source. The source's timeout_seconds
// bounds each individual HTTP call the fetcher makes.
func New(cfg *config.Config, st model.SourceType) (Fetcher, error) {
	timeout := time.Duration(cfg.SourceConfigFor(st).TimeoutSeconds) * time.Second
	switch st {
	case model.SourceArxiv:
		return NewArxivFetcher(cfg.Arxiv.Categories, timeout), nil
	case model.SourceGithub:
		return NewGithubFetcher(cfg.GitHub, config.GitHubToken(), timeout), nil
	case model.SourceRSS:
		return NewRSSFetcher(cfg.Feeds, timeout), nil
	case model.SourceStackOverflow:
		return NewStackOverflowFetcher(cfg.StackOverflow.Tags, timeout), nil
	case model.SourcePapersWithCode:
		return NewPapersWithCodeFetcher(cfg.PapersWithCode.URL, timeout), nil
	case model.SourceSocial:
		return NewSocialFetcher(cfg.Social.Pages, timeout), nil
	case model.SourceVideo:
		return NewVideoFetcher(cfg.Video.Query, config.YouTubeAPIKey(), timeout), nil
	case model.SourceWeb:
		return NewWebFetcher(cfg.Web.Pages, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported source: %q", st)
	}
}

// ForSources builds fetchers for the requested source set, preserving order.
func ForSources(cfg *config.Config, sources []model.SourceType) ([]Fetcher, error) {
	fetchers := make([]Fetcher, 0, len(sources))
	for _, st := range sources {
		f, err := New(cfg, st)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, f)
	}
	return fetchers, nil
}

func succeed(st model.SourceType, items []model.Article) FetchResult {
	return FetchResult{Source: st, Success: true, Items: items}
}

func fail(st model.SourceType, err error) FetchResult {
	return FetchResult{Source: st, Err: err}
}

// normalizeAll converts raw items, skipping (and optionally logging) any
// item that fails validation. Per-item failures never fail the batch.
func normalizeAll(st model.SourceType, raws []normalize.RawItem, verbose bool) []model.Article {
	items := make([]model.Article, 0, len(raws))
	for _, raw := range raws {
		a, err := normalize.Normalize(raw)
		if err != nil {
			log.Printf("[%s] skipping item: %v", st, err)
			continue
		}
		if verbose {
			log.Printf("[%s] normalized %s (%s)", st, a.Title, a.ContentID[:12])
		}
		items = append(items, a)
	}
	return items
}
