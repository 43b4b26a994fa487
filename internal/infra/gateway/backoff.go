package gateway

import (
	"context"
	"time"
)

const (
	defaultRetryBase = 250 * time.Millisecond
	maxRetryDelay    = 4 * time.Second
)

// retryDelay yields base, 2*base, 4*base ... capped at ceiling.
type retryDelay struct {
	next    time.Duration
	ceiling time.Duration
}

func newRetryDelay(base, ceiling time.Duration) *retryDelay {
	if base <= 0 {
		base = defaultRetryBase
	}
	return &retryDelay{next: base, ceiling: max(base, ceiling)}
}

// Wait blocks for the pending delay and reports whether ctx is still live.
func (d *retryDelay) Wait(ctx context.Context) bool {
	timer := time.NewTimer(d.next)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	d.next = min(d.next*2, d.ceiling)
	return true
}
