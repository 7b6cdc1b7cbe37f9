// Package ratelimit bounds outbound request frequency with token buckets.
// The portal client holds one bucket; each notification channel holds its
// own, so a slow webhook cannot starve email delivery.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrLimitExceeded reports that a token could not be obtained within the
// configured wait ceiling.
var ErrLimitExceeded = errors.New("ratelimit: wait ceiling exceeded")

// Bucket is a token bucket with a bounded blocking acquire. A nil Bucket
// never limits, which keeps call sites free of nil checks.
type Bucket struct {
	lim     *rate.Limiter
	maxWait time.Duration
}

// NewBucket builds a bucket refilling at perSec tokens per second with the
// given burst capacity. maxWait <= 0 means callers wait indefinitely
// (until their context ends).
func NewBucket(perSec float64, burst int, maxWait time.Duration) *Bucket {
	if perSec <= 0 {
		perSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Bucket{lim: rate.NewLimiter(rate.Limit(perSec), burst), maxWait: maxWait}
}

// Acquire blocks until a token is available. It fails with
// ErrLimitExceeded once the wait ceiling elapses, or with the context's
// error if the caller is cancelled first.
func (b *Bucket) Acquire(ctx context.Context) error {
	if b == nil || b.lim == nil {
		return nil
	}
	wctx := ctx
	if b.maxWait > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, b.maxWait)
		defer cancel()
	}
	if err := b.lim.Wait(wctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLimitExceeded
	}
	return nil
}
