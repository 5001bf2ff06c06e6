package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/echoVic/aidayhot-crawler/internal/fetch"
	"github.com/echoVic/aidayhot-crawler/internal/model"
	"github.com/echoVic/aidayhot-crawler/internal/normalize"
	"github.com/echoVic/aidayhot-crawler/internal/retry"
)

const stackExchangeAPIBaseURL = "https://api.stackexchange.com/2.3"

// Question status states. Transitions are monotonic in the source data
// (unanswered -> answered -> accepted); we only read the resolved state.
const (
	QuestionUnanswered = "unanswered"
	QuestionAnswered   = "answered"
	QuestionAccepted   = "accepted"
)

// StackOverflowFetcher runs tagged-question searches against the Stack
// Exchange API. Responses arrive gzip-compressed regardless of request
// headers; the shared HTTP client decompresses transparently.
type StackOverflowFetcher struct {
	tags    []string
	baseURL string
	client  *fetch.Client
	policy  retry.Policy
}

// NewStackOverflowFetcher builds the fetcher for a tag set. timeout bounds
// each HTTP call; zero picks the default.
func NewStackOverflowFetcher(tags []string, timeout time.Duration) *StackOverflowFetcher {
	if len(tags) == 0 {
		tags = []string{"artificial-intelligence", "machine-learning"}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StackOverflowFetcher{
		tags:    tags,
		baseURL: stackExchangeAPIBaseURL,
		client:  fetch.NewClient(timeout),
		policy:  retry.DefaultPolicy(fetch.IsRetryable),
	}
}

// Name implements Fetcher.
func (f *StackOverflowFetcher) Name() model.SourceType {
	return model.SourceStackOverflow
}

// Fetch pulls recently active tagged questions.
func (f *StackOverflowFetcher) Fetch(ctx context.Context, fc FetchConfig) FetchResult {
	pageSize := fc.MaxResults
	if pageSize > 100 {
		pageSize = 100
	}
	params := url.Values{
		"order":    {"desc"},
		"sort":     {"activity"},
		"tagged":   {strings.Join(f.tags, ";")},
		"site":     {"stackoverflow"},
		"pagesize": {fmt.Sprintf("%d", pageSize)},
		"filter":   {"withbody"},
	}
	queryURL := f.baseURL + "/questions?" + params.Encode()

	var result struct {
		Items []stackQuestion `json:"items"`
	}
	err := f.policy.Do(ctx, "stackoverflow", "tagged search", func() error {
		return f.client.GetJSON(ctx, queryURL, nil, &result)
	})
	if err != nil {
		return fail(model.SourceStackOverflow, err)
	}
	if len(result.Items) == 0 {
		return fail(model.SourceStackOverflow, fmt.Errorf("no questions for tags %v", f.tags))
	}

	fetchedAt := time.Now().UTC()
	raws := make([]normalize.RawItem, 0, len(result.Items))
	for _, q := range result.Items {
		if q.Link == "" {
			continue
		}

		tags := make([]any, 0, len(q.Tags))
		for _, t := range q.Tags {
			tags = append(tags, t)
		}

		raws = append(raws, normalize.RawItem{
			Source:      model.SourceStackOverflow,
			URL:         q.Link,
			Title:       q.Title,
			Summary:     q.Body,
			Author:      q.Owner.DisplayName,
			Category:    "Q&A",
			Tags:        tags,
			PublishTime: time.Unix(q.CreationDate, 0),
			FetchedAt:   fetchedAt,
			Views:       q.ViewCount,
			Likes:       q.Score,
			Metadata: map[string]any{
				"question_id":     q.QuestionID,
				"score":           q.Score,
				"answer_count":    q.AnswerCount,
				"is_answered":     q.IsAnswered,
				"question_status": questionStatus(q),
			},
		})
	}

	return succeed(model.SourceStackOverflow, normalizeAll(model.SourceStackOverflow, raws, fc.Verbose))
}

// questionStatus resolves the display state of a question.
func questionStatus(q stackQuestion) string {
	switch {
	case q.AcceptedAnswerID > 0:
		return QuestionAccepted
	case q.AnswerCount > 0:
		return QuestionAnswered
	default:
		return QuestionUnanswered
	}
}

type stackQuestion struct {
	QuestionID       int64    `json:"question_id"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	Link             string   `json:"link"`
	Tags             []string `json:"tags"`
	Score            int      `json:"score"`
	ViewCount        int      `json:"view_count"`
	AnswerCount      int      `json:"answer_count"`
	AcceptedAnswerID int64    `json:"accepted_answer_id"`
	IsAnswered       bool     `json:"is_answered"`
	CreationDate     int64    `json:"creation_date"`
	Owner            struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
}
