package coa

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// RetryPolicy bounds retries of a single page request. The wait before
// retry n (1-based) is n*BaseDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// NewTimer, when set, supplies the timer used to wait between attempts.
	// Called once per page so concurrent walks never share a timer.
	NewTimer func() backoff.Timer
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.WithMaxRetries(&linearBackOff{base: p.BaseDelay}, uint64(p.maxAttempts()-1))
	return backoff.WithContext(b, ctx)
}

func (p RetryPolicy) timer() backoff.Timer {
	if p.NewTimer == nil {
		return nil
	}
	return p.NewTimer()
}

type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() { b.n = 0 }
