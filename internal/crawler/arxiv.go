package crawler

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/echoVic/aidayhot-crawler/internal/fetch"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
	"github.com/echoVic/aidayhot-crawler/internal/retry"
)

const arxivAPIBaseURL = "http://export.arxiv.org/api/query"

// arXiv asks anonymous clients to stay around one request per 3 seconds;
// a fixed 1s delay between category queries has been fine in practice.
const arxivInterRequestDelay = time.Second

// ArxivFetcher queries the arXiv Atom export API per category.
type ArxivFetcher struct {
	categories []string
	baseURL    string
	client     *fetch.Client
	policy     retry.Policy
}

// NewArxivFetcher builds the fetcher for the given category batch. timeout
// bounds each HTTP call; zero picks the default.
func NewArxivFetcher(categories []string, timeout time.Duration) *ArxivFetcher {
	if len(categories) == 0 {
		categories = []string{"cs.AI", "cs.LG", "cs.CL", "cs.CV", "cs.NE"}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ArxivFetcher{
		categories: categories,
		baseURL:    arxivAPIBaseURL,
		client:     fetch.NewClient(timeout),
		policy:     retry.DefaultPolicy(fetch.IsRetryable),
	}
}

// Name implements Fetcher.
func (f *ArxivFetcher) Name() model.SourceType {
	return model.SourceArxiv
}

// Fetch runs one Atom query per category, sequentially with a fixed delay
// to stay within anonymous rate limits. A category that keeps failing is
// logged and skipped; the batch only fails when nothing at all came back.
func (f *ArxivFetcher) Fetch(ctx context.Context, fc FetchConfig) FetchResult {
	perCategory := fc.MaxResults / len(f.categories)
	if perCategory < 1 {
		perCategory = 1
	}

	var raws []normalize.RawItem
	var lastErr error
	for i, category := range f.categories {
		if len(raws) >= fc.MaxResults {
			break
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fail(model.SourceArxiv, ctx.Err())
			case <-time.After(arxivInterRequestDelay):
			}
		}

		entries, err := f.queryCategory(ctx, category, perCategory)
		if err != nil {
			lastErr = err
			log.Printf("[arxiv] category %s failed: %v", category, err)
			continue
		}
		raws = append(raws, entries...)
	}

	if len(raws) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no entries returned for categories %v", f.categories)
		}
		return fail(model.SourceArxiv, lastErr)
	}
	if len(raws) > fc.MaxResults {
		raws = raws[:fc.MaxResults]
	}

	return succeed(model.SourceArxiv, normalizeAll(model.SourceArxiv, raws, fc.Verbose))
}

func (f *ArxivFetcher) queryCategory(ctx context.Context, category string, maxResults int) ([]normalize.RawItem, error) {
	params := url.Values{
		"search_query": {"cat:" + category},
		"start":        {"0"},
		"max_results":  {fmt.Sprintf("%d", maxResults)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}
	queryURL := f.baseURL + "?" + params.Encode()

	var feed arxivFeed
	err := f.policy.Do(ctx, "arxiv", "query "+category, func() error {
		body, err := f.client.Get(ctx, queryURL, nil)
		if err != nil {
			return err
		}
		return xml.Unmarshal(body, &feed)
	})
	if err != nil {
		return nil, err
	}

	fetchedAt := time.Now().UTC()
	raws := make([]normalize.RawItem, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		abstractURL := entry.abstractURL()
		if abstractURL == "" {
			continue
		}

		tags := make([]any, 0, len(entry.Categories))
		for _, cat := range entry.Categories {
			tags = append(tags, model.Tag{Term: cat.Term, Scheme: cat.Scheme})
		}

		raws = append(raws, normalize.RawItem{
			Source:    model.SourceArxiv,
			URL:       abstractURL,
			Title:     collapseWhitespace(entry.Title),
			Summary:   collapseWhitespace(entry.Summary),
			Author:    entry.authorNames(),
			Category:  category,
			Tags:      tags,
			Published: entry.Published,
			FetchedAt: fetchedAt,
			Metadata: map[string]any{
				"arxiv_id":         arxivIDFromURL(abstractURL),
				"primary_category": entry.PrimaryCategory.Term,
				"pdf_url":          entry.pdfURL(),
			},
		})
	}
	return raws, nil
}

// arxivFeed mirrors the Atom response of the arXiv export API.
type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Published       string          `xml:"published"`
	Authors         []arxivAuthor   `xml:"author"`
	Categories      []arxivCategory `xml:"category"`
	Links           []arxivLink     `xml:"link"`
	PrimaryCategory arxivCategory   `xml:"primary_category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term   string `xml:"term,attr"`
	Scheme string `xml:"scheme,attr"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

func (e *arxivEntry) abstractURL() string {
	for _, l := range e.Links {
		if l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
	}
	return strings.TrimSpace(e.ID)
}

func (e *arxivEntry) pdfURL() string {
	for _, l := range e.Links {
		if l.Title == "pdf" {
			return l.Href
		}
	}
	return ""
}

func (e *arxivEntry) authorNames() string {
	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// arxivIDFromURL extracts "2401.12345v2" from an abstract URL.
func arxivIDFromURL(abstractURL string) string {
	idx := strings.Index(abstractURL, "/abs/")
	if idx < 0 {
		return ""
	}
	return strings.TrimSuffix(abstractURL[idx+len("/abs/"):], "/")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
