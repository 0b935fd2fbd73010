// Package retry provides the bounded-retry policy applied to every
// external call the round engine makes. Transient trading-protocol
// failures get a fixed number of attempts with fixed backoff;
// persistence writes retry indefinitely because abandoning one would
// break the round's consistency invariants.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy is a bounded retry schedule.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy mirrors the retry bounds used for trading calls.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: 2 * time.Second}
}

// Do runs fn up to MaxAttempts times, sleeping Backoff between
// attempts. The last error is returned wrapped with the operation name.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i < attempts {
			slog.Warn("retrying", "op", op, "attempt", i, "err", err)
			if werr := wait(ctx, p.Backoff); werr != nil {
				return werr
			}
		}
	}
	return fmt.Errorf("retry.Do: %s: %d attempts: %w", op, attempts, err)
}

// Forever runs fn until it succeeds or the context is canceled.
func Forever(ctx context.Context, op string, backoff time.Duration, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		slog.Warn("retrying until success", "op", op, "attempt", attempt, "err", err)
		if werr := wait(ctx, backoff); werr != nil {
			return werr
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
