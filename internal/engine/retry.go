package engine

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/ports"
)

// SleepFunc waits for d or until ctx ends, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
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

// withRetry calls fn until it succeeds, fails with a non-transient error, or
// the policy's attempts run out. Every call re-evaluates the step, so a retry
// never applies blindly.
func (r *Runner) withRetry(ctx context.Context, logger ports.Logger, meta bootstrap.StepMetadata, fn func() (bootstrap.StepOutcome, error)) (bootstrap.StepOutcome, int, error) {
	policy := r.settings.Retry
	var (
		outcome bootstrap.StepOutcome
		err     error
	)
	for attempt := 1; ; attempt++ {
		outcome, err = fn()
		if err == nil {
			return outcome, attempt, nil
		}
		if !bootstrap.IsTransient(err) || attempt >= policy.Attempts || ctx.Err() != nil {
			return outcome, attempt, err
		}

		backoff := policy.Backoff(attempt)
		logger.Warn(ctx, "transient failure, retrying", "step_id", meta.ID, "attempt", attempt, "backoff", backoff, "error", err)
		publishEvent(ctx, r.events, logger, ports.EventStepRetrying, map[string]interface{}{
			"step_id": string(meta.ID),
			"attempt": attempt,
			"backoff": backoff,
			"error":   err.Error(),
		})
		if serr := r.sleep(ctx, backoff); serr != nil {
			return outcome, attempt, bootstrap.NewCancelled(serr)
		}
	}
}
