package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/echoVic/aidayhot-crawler/internal/config"
	"github.com/echoVic/aidayhot-crawler/internal/retry"
)

const githubSearchSample = `{
  "items": [
    {
      "full_name": "acme/llm-kit",
      "html_url": "https://github.com/acme/llm-kit",
      "description": "Toolkit for LLM apps",
      "language": "Go",
      "stargazers_count": 12000,
      "forks_count": 800,
      "open_issues_count": 42,
      "topics": ["llm", "go"],
      "pushed_at": "2026-08-31T10:00:00Z",
      "owner": {"login": "acme"}
    },
    {
      "full_name": "beta/vision",
      "html_url": "https://github.com/beta/vision",
      "description": "Vision models",
      "language": "Python",
      "stargazers_count": 3000,
      "forks_count": 150,
      "open_issues_count": 7,
      "topics": ["cv"],
      "pushed_at": "2026-08-30T08:00:00Z",
      "owner": {"login": "beta"}
    }
  ]
}`

func newGithubTestServer(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/repositories":
			auth = r.Header.Get("Authorization")
			w.Write([]byte(githubSearchSample))
		case "/repos/acme/llm-kit/readme", "/repos/beta/vision/readme":
			w.Write([]byte(`{"name": "README.md"}`))
		case "/repos/acme/llm-kit/releases/latest":
			w.Write([]byte(`{"tag_name": "v1.2.0"}`))
		case "/repos/beta/vision/releases/latest":
			http.Error(w, "not found", http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	return srv, &auth
}

func newTestGithubFetcher(baseURL, token string) *GithubFetcher {
	f := NewGithubFetcher(config.GitHubConfig{Query: "machine learning"}, token, 0)
	f.baseURL = baseURL
	f.limiter = retry.NewLimiter(0)
	return f
}

func TestGithubFetchSearchAndDetails(t *testing.T) {
	srv, auth := newGithubTestServer(t)
	defer srv.Close()

	f := newTestGithubFetcher(srv.URL, "tok123")
	result := f.Fetch(context.Background(), FetchConfig{MaxResults: 10})
	if !result.Success {
		t.Fatalf("fetch failed: %v", result.Err)
	}
	if *auth != "Bearer tok123" {
		t.Errorf("authorization header = %q", *auth)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}

	first := result.Items[0]
	if first.Title != "acme/llm-kit" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Author != "acme" {
		t.Errorf("author = %q", first.Author)
	}
	if first.Category != "Go" {
		t.Errorf("category = %q", first.Category)
	}
	if first.Views != 12000 || first.Likes != 12000 {
		t.Errorf("engagement = %d/%d", first.Views, first.Likes)
	}
	if !first.IsHot {
		t.Error("12000 stars must mark the repo hot")
	}

	// Raw star/fork keys get renamed by the normalizer.
	if got := first.Metadata["stars"]; got != 12000 {
		t.Errorf("stars = %v", got)
	}
	if got := first.Metadata["forks"]; got != 800 {
		t.Errorf("forks = %v", got)
	}
	if got := first.Metadata["has_readme"]; got != true {
		t.Errorf("has_readme = %v", got)
	}
	if got := first.Metadata["latest_release"]; got != "v1.2.0" {
		t.Errorf("latest_release = %v", got)
	}

	// Upstream order (sorted by stars descending) is preserved.
	if result.Items[0].Views < result.Items[1].Views {
		t.Error("star-sorted order lost")
	}

	// The second repo has no release; the detail lookup failure is swallowed.
	second := result.Items[1]
	if _, ok := second.Metadata["latest_release"]; ok {
		t.Error("missing release must not produce a metadata entry")
	}
	if got := second.Metadata["has_readme"]; got != true {
		t.Errorf("has_readme = %v", got)
	}
}

func TestGithubFetchAnonymous(t *testing.T) {
	srv, auth := newGithubTestServer(t)
	defer srv.Close()

	f := newTestGithubFetcher(srv.URL, "")
	result := f.Fetch(context.Background(), FetchConfig{MaxResults: 5})
	if !result.Success {
		t.Fatalf("fetch failed: %v", result.Err)
	}
	if *auth != "" {
		t.Errorf("anonymous request sent authorization %q", *auth)
	}
}

func TestGithubRateCeilings(t *testing.T) {
	if rpm := githubAnonRPM; rpm != 10 {
		t.Errorf("anonymous ceiling = %d", rpm)
	}
	if rpm := githubAuthRPM; rpm != 60 {
		t.Errorf("authenticated ceiling = %d", rpm)
	}
}

func TestGithubFetchFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestGithubFetcher(srv.URL, "")
	f.policy = retry.Policy{MaxAttempts: 1}

	result := f.Fetch(context.Background(), FetchConfig{MaxResults: 5})
	if result.Success {
		t.Error("expected failure on persistent 502")
	}
}
