package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/echoVic/aidayhot-crawler/internal/fetch"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
	"github.com/echoVic/aidayhot-crawler/internal/retry"
)

const youtubeAPIBaseURL = "https://www.googleapis.com/youtube/v3"

// VideoFetcher searches the YouTube Data API when an API key is present
// and falls back to mock data otherwise.
type VideoFetcher struct {
	query    string
	apiKey   string
	baseURL  string
	client   *fetch.Client
	policy   retry.Policy
	strategy scrapeStrategy
}

// NewVideoFetcher builds the fetcher. An empty apiKey means every fetch
// uses the mock fallback; timeout bounds each HTTP call, zero picks the
// default.
func NewVideoFetcher(query, apiKey string, timeout time.Duration) *VideoFetcher {
	if query == "" {
		query = "AI 人工智能"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	f := &VideoFetcher{
		query:   query,
		apiKey:  apiKey,
		baseURL: youtubeAPIBaseURL,
		client:  fetch.NewClient(timeout),
		policy:  retry.DefaultPolicy(fetch.IsRetryable),
	}
	f.strategy = scrapeStrategy{
		source:   model.SourceVideo,
		tryLive:  f.search,
		fallback: videoMock.items,
	}
	return f
}

// Name implements Fetcher.
func (f *VideoFetcher) Name() model.SourceType {
	return model.SourceVideo
}

// Fetch implements Fetcher via the shared scrape strategy.
func (f *VideoFetcher) Fetch(ctx context.Context, fc FetchConfig) FetchResult {
	return f.strategy.fetch(ctx, fc)
}

func (f *VideoFetcher) search(ctx context.Context, fc FetchConfig) ([]normalize.RawItem, error) {
	if f.apiKey == "" {
		return nil, fmt.Errorf("YOUTUBE_API_KEY not set")
	}

	maxResults := fc.MaxResults
	if maxResults > 50 {
		maxResults = 50
	}
	params := url.Values{
		"part":       {"snippet"},
		"q":          {f.query},
		"type":       {"video"},
		"order":      {"date"},
		"maxResults": {fmt.Sprintf("%d", maxResults)},
		"key":        {f.apiKey},
	}
	searchURL := f.baseURL + "/search?" + params.Encode()

	var result struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				Description  string `json:"description"`
				ChannelTitle string `json:"channelTitle"`
				PublishedAt  string `json:"publishedAt"`
			} `json:"snippet"`
		} `json:"items"`
	}
	err := f.policy.Do(ctx, "video", "youtube search", func() error {
		return f.client.GetJSON(ctx, searchURL, nil, &result)
	})
	if err != nil {
		return nil, err
	}

	fetchedAt := time.Now().UTC()
	raws := make([]normalize.RawItem, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		raws = append(raws, normalize.RawItem{
			Source:    model.SourceVideo,
			URL:       "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Title:     item.Snippet.Title,
			Summary:   item.Snippet.Description,
			Author:    item.Snippet.ChannelTitle,
			Category:  "视频",
			Published: item.Snippet.PublishedAt,
			FetchedAt: fetchedAt,
			Metadata: map[string]any{
				"video_id": item.ID.VideoID,
				"channel":  item.Snippet.ChannelTitle,
			},
		})
	}
	return raws, nil
}
