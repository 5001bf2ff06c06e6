package crawler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/echoVic/aidayhot-crawler/internal/config"
	"github.com/echoVic/aidayhot-crawler/internal/fetch"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
	"github.com/echoVic/aidayhot-crawler/internal/retry"
)

const githubAPIBaseURL = "https://api.github.com"

// Search rate ceilings enforced by the limiter, not by the HTTP client.
const (
	githubAnonRPM = 10
	githubAuthRPM = 60
)

// detail enrichment fans out at most this many parallel repo lookups.
const githubDetailBatch = 5

// GithubFetcher searches repositories and enriches the top hits with
// release and README details.
type GithubFetcher struct {
	query   string
	sort    string
	order   string
	token   string
	baseURL string
	client  *fetch.Client
	limiter *retry.Limiter
	policy  retry.Policy
}

// NewGithubFetcher builds the fetcher. An empty token keeps the anonymous
// rate ceiling; timeout bounds each HTTP call, zero picks the default.
func NewGithubFetcher(cfg config.GitHubConfig, token string, timeout time.Duration) *GithubFetcher {
	query := cfg.Query
	if query == "" {
		query = "machine learning"
	}
	sort := cfg.Sort
	if sort == "" {
		sort = "stars"
	}
	order := cfg.Order
	if order == "" {
		order = "desc"
	}

	rpm := githubAnonRPM
	if token != "" {
		rpm = githubAuthRPM
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &GithubFetcher{
		query:   query,
		sort:    sort,
		order:   order,
		token:   token,
		baseURL: githubAPIBaseURL,
		client:  fetch.NewClient(timeout),
		limiter: retry.NewLimiter(rpm),
		policy:  retry.DefaultPolicy(fetch.IsRetryable),
	}
}

// Name implements Fetcher.
func (f *GithubFetcher) Name() model.SourceType {
	return model.SourceGithub
}

// Fetch searches repositories, then issues the detail lookups as a parallel
// batch where partial success is acceptable: a missing README or release is
// not a fetch failure.
func (f *GithubFetcher) Fetch(ctx context.Context, fc FetchConfig) FetchResult {
	repos, err := f.search(ctx, fc.MaxResults)
	if err != nil {
		return fail(model.SourceGithub, err)
	}

	details := f.fetchDetails(ctx, repos)

	fetchedAt := time.Now().UTC()
	raws := make([]normalize.RawItem, 0, len(repos))
	for _, repo := range repos {
		tags := make([]any, 0, len(repo.Topics))
		for _, topic := range repo.Topics {
			tags = append(tags, topic)
		}

		metadata := map[string]any{
			"stargazers_count": repo.StargazersCount,
			"forks_count":      repo.ForksCount,
			"open_issues":      repo.OpenIssuesCount,
			"language":         repo.Language,
			"full_name":        repo.FullName,
			"owner":            repo.Owner.Login,
		}
		if d, ok := details[repo.FullName]; ok {
			metadata["has_readme"] = d.hasReadme
			if d.latestRelease != "" {
				metadata["latest_release"] = d.latestRelease
			}
		}

		raws = append(raws, normalize.RawItem{
			Source:    model.SourceGithub,
			URL:       repo.HTMLURL,
			Title:     repo.FullName,
			Summary:   repo.Description,
			Author:    repo.Owner.Login,
			Category:  repo.Language,
			Tags:      tags,
			Published: repo.PushedAt,
			FetchedAt: fetchedAt,
			Views:     repo.StargazersCount,
			Likes:     repo.StargazersCount,
			Metadata:  metadata,
		})
	}

	return succeed(model.SourceGithub, normalizeAll(model.SourceGithub, raws, fc.Verbose))
}

func (f *GithubFetcher) search(ctx context.Context, perPage int) ([]githubRepo, error) {
	if perPage > 100 {
		perPage = 100
	}
	params := url.Values{
		"q":        {f.query},
		"sort":     {f.sort},
		"order":    {f.order},
		"per_page": {fmt.Sprintf("%d", perPage)},
	}
	searchURL := f.baseURL + "/search/repositories?" + params.Encode()

	var result struct {
		Items []githubRepo `json:"items"`
	}
	err := f.policy.Do(ctx, "github", "search repositories", func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		return f.client.GetJSON(ctx, searchURL, f.header(), &result)
	})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

type githubRepoDetail struct {
	hasReadme     bool
	latestRelease string
}

// fetchDetails looks up README presence and the latest release tag for the
// top repositories concurrently. Every lookup failure is swallowed; the
// search result alone is a complete batch.
func (f *GithubFetcher) fetchDetails(ctx context.Context, repos []githubRepo) map[string]githubRepoDetail {
	n := len(repos)
	if n > githubDetailBatch {
		n = githubDetailBatch
	}

	var mu sync.Mutex
	details := make(map[string]githubRepoDetail, n)

	var wg sync.WaitGroup
	for _, repo := range repos[:n] {
		wg.Add(1)
		go func(fullName string) {
			defer wg.Done()
			d := githubRepoDetail{
				hasReadme:     f.hasReadme(ctx, fullName),
				latestRelease: f.latestRelease(ctx, fullName),
			}
			mu.Lock()
			details[fullName] = d
			mu.Unlock()
		}(repo.FullName)
	}
	wg.Wait()

	return details
}

func (f *GithubFetcher) hasReadme(ctx context.Context, fullName string) bool {
	if err := f.limiter.Wait(ctx); err != nil {
		return false
	}
	var readme struct {
		Name string `json:"name"`
	}
	if err := f.client.GetJSON(ctx, f.baseURL+"/repos/"+fullName+"/readme", f.header(), &readme); err != nil {
		return false
	}
	return readme.Name != ""
}

func (f *GithubFetcher) latestRelease(ctx context.Context, fullName string) string {
	if err := f.limiter.Wait(ctx); err != nil {
		return ""
	}
	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := f.client.GetJSON(ctx, f.baseURL+"/repos/"+fullName+"/releases/latest", f.header(), &release); err != nil {
		log.Printf("[github] no latest release for %s", fullName)
		return ""
	}
	return release.TagName
}

func (f *GithubFetcher) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	if f.token != "" {
		h.Set("Authorization", "Bearer "+strings.TrimSpace(f.token))
	}
	return h
}

type githubRepo struct {
	FullName        string   `json:"full_name"`
	HTMLURL         string   `json:"html_url"`
	Description     string   `json:"description"`
	Language        string   `json:"language"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
	OpenIssuesCount int      `json:"open_issues_count"`
	Topics          []string `json:"topics"`
	PushedAt        string   `json:"pushed_at"`
	Owner           struct {
		Login string `json:"login"`
	} `json:"owner"`
}
