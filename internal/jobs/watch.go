package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"unfollowninja/internal/followers"
)

// RunCheckLoop runs RunCheckOnce for accountID until ctx is cancelled.
// Successful cycles repeat every interval. Rate-limited cycles wait for the
// quota reset; other failures back off exponentially up to interval*10.
// onResult, when set, receives every successful Result.
func (r *Runner) RunCheckLoop(ctx context.Context, accountID string, interval time.Duration, onResult func(Result)) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(interval),
		backoff.WithMaxInterval(10*interval),
		backoff.WithMaxElapsedTime(0),
	)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Watch loop stopped", zap.String("accountID", accountID))
			return ctx.Err()
		case <-timer.C:
			res, err := r.RunCheckOnce(ctx, accountID)
			if err == nil && onResult != nil {
				onResult(res)
			}
			wait := nextDelay(err, interval, b)
			if err != nil {
				r.logger.Warn("Check failed, rescheduling",
					zap.String("accountID", accountID),
					zap.Duration("wait", wait),
					zap.Error(err))
			}
			timer.Reset(wait)
		}
	}
}

// nextDelay picks the wait before the next cycle and resets b after a success.
func nextDelay(err error, interval time.Duration, b backoff.BackOff) time.Duration {
	if err == nil {
		b.Reset()
		return interval
	}
	var rl *followers.RateLimitedError
	if errors.As(err, &rl) {
		return max(rl.RetryAfter, interval)
	}
	if d := b.NextBackOff(); d != backoff.Stop {
		return d
	}
	return interval
}
