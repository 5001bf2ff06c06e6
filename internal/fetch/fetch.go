// Package fetch provides the HTTP plumbing shared by every source fetcher:
// request building, transparent gzip decoding, body size caps, and the
// status classification the retry policy keys off.
package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const (
	defaultUserAgent = "aidayhot-crawler/1.0 (AI content aggregator)"
	maxBodyBytes     = 4 << 20
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Client wraps an http.Client with the crawler's request conventions.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient builds a client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: defaultUserAgent,
	}
}

// Get fetches a URL and returns the decompressed body. Headers may be nil.
// Responses are gzip-decoded even when the server compresses unconditionally
// (the Stack Exchange API does this regardless of Accept-Encoding).
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body from %s: %w", rawURL, err)
	}

	return gunzipIfNeeded(body)
}

// GetJSON fetches a URL and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	body, err := c.Get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding JSON from %s: %w", rawURL, err)
	}
	return nil
}

// GetDocument fetches a URL and parses the body as an HTML document.
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", rawURL, err)
	}
	return doc, nil
}

// ExtractReadable pulls the readable text out of an HTML page. Returns an
// empty string when no meaningful content is found.
func ExtractReadable(body []byte, pageURL string) string {
	u, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return ""
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) < 100 {
		return ""
	}
	return text
}

// IsRetryable classifies an error for the retry policy: 5xx, 408 and 429
// responses retry, as do timeouts and transport-level failures. Other 4xx
// and parse errors do not.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout:
			return true
		default:
			return se.Code >= 500
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	// url.Error covers connection resets and DNS failures.
	var ue *url.Error
	return errors.As(err, &ue)
}

// gunzipIfNeeded decodes gzip bodies flagged by magic bytes; the transport
// only auto-decodes when it negotiated the encoding itself.
func gunzipIfNeeded(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("opening gzip body: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("decompressing body: %w", err)
	}
	return out, nil
}
