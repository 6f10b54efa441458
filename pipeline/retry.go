package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"blogpipe/models"
)

// Executor wraps a stage operation with bounded retries and exponential
// backoff. It holds no state between invocations.
type Executor struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration // 0 = uncapped

	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(maxRetries int, baseDelay, maxDelay time.Duration) *Executor {
	return &Executor{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		MaxDelay:   maxDelay,
		sleep:      sleepCtx,
	}
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

// Delay returns the backoff before retry attempt k (k >= 1):
// BaseDelay * 2^(k-1), clamped to MaxDelay when one is configured.
// The doubling saturates instead of overflowing at high attempt counts.
func (e *Executor) Delay(attempt int) time.Duration {
	d := e.BaseDelay
	for i := 1; i < attempt && d > 0; i++ {
		doubled := d * 2
		if doubled <= d {
			d = math.MaxInt64
			break
		}
		d = doubled
	}
	if e.MaxDelay > 0 && d > e.MaxDelay {
		d = e.MaxDelay
	}
	return d
}

// Execute attempts op up to MaxRetries+1 times. A panic inside an attempt is
// captured as a failed result, never propagated. Returns the first success,
// or the last failure once the budget is exhausted.
func (e *Executor) Execute(ctx context.Context, name string, op func(context.Context) models.StageResult) models.StageResult {
	attempts := e.MaxRetries + 1
	var last models.StageResult

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := e.Delay(attempt - 1)
			log.Printf("Retrying %s (attempt %d/%d) after %s delay", name, attempt, attempts, delay)
			if err := e.sleep(ctx, delay); err != nil {
				log.Printf("%s retry wait aborted: %v", name, err)
				return last
			}
		}

		last = runAttempt(ctx, op)

		if last.OK {
			if attempt > 1 {
				log.Printf("%s succeeded on attempt %d", name, attempt)
			}
			return last
		}
		log.Printf("%s failed on attempt %d: %s", name, attempt, last.Err)
	}

	log.Printf("%s failed after %d attempts", name, attempts)
	return last
}

func runAttempt(ctx context.Context, op func(context.Context) models.StageResult) (result models.StageResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.StageFailure(fmt.Sprintf("panic: %v", r))
		}
	}()
	return op(ctx)
}
