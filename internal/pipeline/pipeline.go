// Package pipeline orchestrates the crawl: fan-out one task per source,
// fold per-source results into run statistics, and decide the exit status
// under the continue-on-error policy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/echoVic/aidayhot-crawler/internal/config"
	"github.com/echoVic/aidayhot-crawler/internal/crawler"
	"github.com/echoVic/aidayhot-crawler/internal/database"
	"github.com/echoVic/aidayhot-crawler/internal/model"
)

const defaultTimeout = 300 * time.Second

// saveErrorStreakLimit is how many consecutive persistence failures abort
// the rest of a source's batch in fail-fast mode.
const saveErrorStreakLimit = 5

// ErrNoItems is returned when zero items were fetched across all sources.
var ErrNoItems = errors.New("no items fetched from any source")

// ErrSourceFailed is returned in fail-fast mode when any source failed.
var ErrSourceFailed = errors.New("source failed")

// Options carries the per-run settings resolved from CLI flags. Source
// selection happens in New; Options only tunes an already-built pipeline.
type Options struct {
	MaxResults    int           // >0 overrides per-source quotas
	UniformConfig bool          // ignore tuned quotas, single quota for all
	Timeout       time.Duration // global wall-clock budget
	Verbose       bool
	FailFast      bool
}

// SourceStats is the per-source breakdown of a run.
type SourceStats struct {
	Fetched  int
	Inserted int
	Updated  int
	Errors   int
	MockData bool
	Err      string
}

// RunStats is the aggregate a run reports. It is assembled by folding the
// per-source results; no task writes shared state.
type RunStats struct {
	StartedAt      time.Time
	Duration       time.Duration
	Total          int
	Success        int
	Errors         int
	CrawlerSuccess int
	SaveErrors     int
	PerSource      map[string]*SourceStats
}

// Pipeline runs all requested fetchers concurrently and upserts their
// output.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	fetchers []crawler.Fetcher
}

// New builds the pipeline for the requested sources. An empty source list
// selects every source whose config status is active.
func New(cfg *config.Config, db *database.DB, sources []model.SourceType) (*Pipeline, error) {
	if len(sources) == 0 {
		for _, st := range model.AllSources() {
			if cfg.SourceConfigFor(st).Status == config.StatusActive {
				sources = append(sources, st)
			}
		}
	}

	fetchers, err := crawler.ForSources(cfg, sources)
	if err != nil {
		return nil, err
	}
	return &Pipeline{cfg: cfg, db: db, fetchers: fetchers}, nil
}

// NewWithFetchers wires explicit fetchers; used by tests.
func NewWithFetchers(cfg *config.Config, db *database.DB, fetchers []crawler.Fetcher) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, fetchers: fetchers}
}

// sourceOutcome is the message each task sends back for folding.
type sourceOutcome struct {
	source model.SourceType
	stats  *SourceStats
	failed bool
}

// Run executes the crawl. Per-source and per-item failures are converted
// into statistics; the returned error is non-nil only when the run as a
// whole should exit non-zero.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*RunStats, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stats := &RunStats{
		StartedAt: time.Now().UTC(),
		PerSource: make(map[string]*SourceStats, len(p.fetchers)),
	}

	pool, err := ants.NewPool(len(p.fetchers))
	if err != nil {
		return stats, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	outcomes := make(chan sourceOutcome, len(p.fetchers))
	for _, f := range p.fetchers {
		fetcher := f
		submitErr := pool.Submit(func() {
			outcomes <- p.runSource(runCtx, fetcher, opts)
		})
		if submitErr != nil {
			outcomes <- sourceOutcome{
				source: fetcher.Name(),
				stats:  &SourceStats{Errors: 1, Err: submitErr.Error()},
				failed: true,
			}
		}
	}

	anyFailed := false
	for range p.fetchers {
		outcome := <-outcomes
		stats.fold(outcome)
		if outcome.failed {
			anyFailed = true
			if opts.FailFast {
				// Abort siblings; their in-flight loops stop at the next
				// deadline check and report what they completed.
				cancel()
			}
		}
	}

	stats.Duration = time.Since(stats.StartedAt)
	p.recordRun(stats)

	if opts.FailFast && anyFailed {
		return stats, ErrSourceFailed
	}
	if stats.CrawlerSuccess == 0 {
		return stats, ErrNoItems
	}
	return stats, nil
}

// runSource executes one fetcher and persists its batch. All failures stay
// inside the returned outcome.
func (p *Pipeline) runSource(ctx context.Context, fetcher crawler.Fetcher, opts Options) sourceOutcome {
	st := fetcher.Name()
	ss := &SourceStats{}

	fc := p.fetchConfig(st, opts)
	log.Printf("[%s] fetching (max %d)...", st, fc.MaxResults)

	// Per-call HTTP timeouts live inside the fetcher's client; the context
	// here carries only the global run budget.
	result := fetcher.Fetch(ctx, fc)
	if !result.Success {
		ss.Errors++
		if result.Err != nil {
			ss.Err = result.Err.Error()
		}
		log.Printf("[%s] fetch failed: %v", st, result.Err)
		return sourceOutcome{source: st, stats: ss, failed: true}
	}

	ss.Fetched = len(result.Items)
	log.Printf("[%s] fetched %d items", st, ss.Fetched)

	streak := 0
	for i := range result.Items {
		item := &result.Items[i]
		if item.IsMock() {
			ss.MockData = true
		}

		// The global budget is checked before each persistence call;
		// completed items stay persisted.
		if err := ctx.Err(); err != nil {
			remaining := len(result.Items) - i
			ss.Errors += remaining
			ss.Err = fmt.Sprintf("timeout with %d items unsaved", remaining)
			log.Printf("[%s] deadline elapsed, %d items unsaved", st, remaining)
			break
		}

		outcome, err := p.db.UpsertArticle(ctx, item)
		if err != nil {
			ss.Errors++
			streak++
			log.Printf("[%s] save failed for %s: %v", st, item.SourceURL, err)
			if opts.FailFast && streak >= saveErrorStreakLimit {
				ss.Err = fmt.Sprintf("aborted after %d consecutive save failures", streak)
				log.Printf("[%s] %s", st, ss.Err)
				break
			}
			continue
		}
		streak = 0

		switch outcome {
		case database.OutcomeInserted:
			ss.Inserted++
		case database.OutcomeUpdated:
			ss.Updated++
		}
		if opts.Verbose {
			log.Printf("[%s] %s %s", st, outcome, item.Title)
		}
	}

	return sourceOutcome{source: st, stats: ss}
}

// fetchConfig resolves the quota for one source. An explicit --max-results
// or --uniform-config overrides the per-source tuning.
func (p *Pipeline) fetchConfig(st model.SourceType, opts Options) crawler.FetchConfig {
	maxResults := p.cfg.SourceConfigFor(st).MaxResults
	if opts.MaxResults > 0 {
		maxResults = opts.MaxResults
	} else if opts.UniformConfig {
		maxResults = 20
	}

	return crawler.FetchConfig{
		MaxResults: maxResults,
		Verbose:    opts.Verbose,
	}
}

func (s *RunStats) fold(outcome sourceOutcome) {
	s.PerSource[string(outcome.source)] = outcome.stats
	s.Total += outcome.stats.Fetched
	s.CrawlerSuccess += outcome.stats.Fetched
	s.Success += outcome.stats.Inserted + outcome.stats.Updated
	s.Errors += outcome.stats.Errors
	s.SaveErrors += outcome.stats.Fetched - outcome.stats.Inserted - outcome.stats.Updated
}

// recordRun persists the run summary; a failure here only logs.
func (p *Pipeline) recordRun(stats *RunStats) {
	if p.db == nil {
		return
	}
	sources := make(map[string]int, len(stats.PerSource))
	for name, ss := range stats.PerSource {
		sources[name] = ss.Fetched
	}
	_, err := p.db.InsertRun(context.Background(), stats.StartedAt,
		stats.Total, stats.Success, stats.Errors, stats.CrawlerSuccess, stats.SaveErrors, sources)
	if err != nil {
		log.Printf("recording run: %v", err)
	}
}
