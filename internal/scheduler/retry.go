package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy re-runs a batch that failed as a whole, waiting Backoff * 2^attempt between tries
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Backoff: time.Minute}
}

// Delay returns the wait before retry number attempt, counting from zero
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.Backoff * time.Duration(1<<attempt)
}

// RunWithRetry runs a batch under policy. Per-monitor failures never trigger a retry.
func (r *Runner) RunWithRetry(ctx context.Context, opts RunOptions, policy RetryPolicy) (*Summary, error) {
	for attempt := 0; ; attempt++ {
		summary, err := r.Run(ctx, opts)

		if err == nil || ctx.Err() != nil || attempt >= policy.MaxRetries {
			return summary, err
		}

		delay := policy.Delay(attempt)

		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("Check batch failed, retrying")

		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return summary, ctx.Err()
		case <-timer.C:
		}
	}
}
