package store

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds how often a single failing remote call is retried.
// The scope is always the one call, never the surrounding run: a chunk
// that still fails after MaxAttempts is recorded as a chunk error and
// processing moves on.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first (default: 3)
	Backoff     time.Duration // wait between attempts, grows linearly (default: 500ms)
}

// DefaultRetry is the policy used when callers pass a zero value.
var DefaultRetry = RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultRetry.Backoff
	}
	return p
}

// Do runs fn, retrying on error up to the policy's attempt budget with
// linear backoff. Context cancellation stops retrying immediately and
// returns the last error.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	p = p.normalize()

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}

		slog.Warn("store call failed, retrying",
			"op", op,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(p.Backoff * time.Duration(attempt)):
		}
	}
	return err
}
