// Package retry provides the bounded exponential backoff wrapper and the
// per-source rate limiter shared by all fetchers.
package retry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CrawlerError is the structured failure surfaced after retries are
// exhausted. Fetchers convert it into a failed FetchResult, never a panic.
type CrawlerError struct {
	Source  string
	Context string
	Err     error
}

func (e *CrawlerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Context, e.Err)
}

func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// Policy describes a retry-with-backoff schedule. Retryable decides whether
// a given error is worth another attempt; a nil Retryable retries everything.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Retryable   func(error) bool
}

// DefaultPolicy matches the crawler defaults: 3 attempts, 500ms base delay,
// doubling between attempts.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		Retryable:   retryable,
	}
}

// Do runs fn under the policy. It returns nil on the first success, the
// context error if the deadline expires mid-backoff, and otherwise the last
// error once attempts are exhausted or a non-retryable error appears.
func (p Policy) Do(ctx context.Context, source, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			break
		}
		if attempt == attempts {
			break
		}

		if err := sleep(ctx, p.delay(attempt)); err != nil {
			return err
		}
	}

	return &CrawlerError{Source: source, Context: op, Err: lastErr}
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2.0
	}
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * mult)
	}
	return d
}

// Limiter enforces a requests-per-minute ceiling with a fixed pre-call sleep.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewLimiter builds a limiter for the given requests-per-minute ceiling.
// A non-positive rpm disables limiting.
func NewLimiter(rpm int) *Limiter {
	l := &Limiter{}
	if rpm > 0 {
		l.interval = time.Minute / time.Duration(rpm)
	}
	return l
}

// Wait blocks until the next request slot opens or the context expires.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	now := time.Now()
	next := l.last.Add(l.interval)
	if next.Before(now) {
		next = now
	}
	l.last = next
	l.mu.Unlock()

	return sleep(ctx, next.Sub(now))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
