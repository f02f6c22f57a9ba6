// Package retry wraps outbound provider calls with bounded exponential
// backoff. Classification of failures is injected per call site: the story
// and image call sites may draw the transient/permanent boundary differently.
package retry

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrorClass buckets a failure for retry purposes.
type ErrorClass int

const (
	// ClassUnknown covers failures the classifier cannot place; they are
	// treated as retryable.
	ClassUnknown ErrorClass = iota
	// ClassPermanent failures (bad credentials, malformed request, exhausted
	// credits, forbidden) are never retried.
	ClassPermanent
	// ClassTransient failures (rate limits, upstream 502/503, timeouts,
	// network errors) are retried with backoff.
	ClassTransient
)

// ClassifyFunc maps an error to its retry class.
type ClassifyFunc func(error) ErrorClass

// Policy retries an operation with capped exponential backoff:
// delay(attempt) = min(InitialDelay * 2^attempt, MaxDelay).
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	sleep func(ctx context.Context, d time.Duration) error // test hook
}

// NewPolicy builds a policy with explicit knobs.
func NewPolicy(maxRetries int, initialDelay, maxDelay time.Duration) *Policy {
	return &Policy{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		sleep:        sleepCtx,
	}
}

// DefaultPolicy returns the standard provider-call policy: at most 3 total
// attempts with 1s and 2s waits between them.
func DefaultPolicy() *Policy {
	return NewPolicy(2, time.Second, 5*time.Second)
}

// Execute runs op, retrying transient and unknown failures up to MaxRetries
// times. The last error is propagated unchanged; no synthetic error ever
// replaces the root cause. A nil classify treats every failure as unknown.
func (p *Policy) Execute(ctx context.Context, classify ClassifyFunc, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if classify != nil && classify(lastErr) == ClassPermanent {
			return lastErr
		}
		if attempt >= p.MaxRetries {
			return lastErr
		}

		delay := p.backoff(attempt)
		log.Warnf("retry: attempt %d/%d failed (%v), retrying in %s", attempt+1, p.MaxRetries+1, lastErr, delay)
		if err := p.sleep(ctx, delay); err != nil {
			// Context cancelled while waiting; surface the operation error,
			// which is what the caller was actually waiting on.
			return lastErr
		}
	}
}

func (p *Policy) backoff(attempt int) time.Duration {
	d := p.InitialDelay << uint(attempt)
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
