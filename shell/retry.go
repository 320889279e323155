package shell

import (
	"context"
	"fmt"
	"time"

	"gitlab.prplanit.com/precisionplanit/sapsteward/common"
)

// Retrier repeats an action at a fixed interval until it succeeds or the
// timeout elapses. Now and Sleep default to the wall clock.
type Retrier struct {
	Timeout  time.Duration
	Interval time.Duration
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
}

// TimeoutError reports how long a retry loop ran before giving up.
type TimeoutError struct {
	Elapsed time.Duration
	Last    *ProcessResult
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("retry loop timed out after %d seconds", int(e.Elapsed.Seconds()))
}

func (e *TimeoutError) Unwrap() error { return common.ErrTimeout }

// Until runs action until success holds for its result. A launch error from
// action stops the loop. onRetry, when set, runs between a failed attempt and
// the following sleep; its error also stops the loop.
//
// The timeout is checked after each failed attempt, so the loop sleeps at
// most ceil(Timeout/Interval) times.
func (r Retrier) Until(
	ctx context.Context,
	action func(ctx context.Context) (*ProcessResult, error),
	success func(*ProcessResult) bool,
	onRetry func(ctx context.Context, last *ProcessResult) error,
) (*ProcessResult, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	start := now()
	for {
		result, err := action(ctx)
		if err != nil {
			return nil, err
		}
		if success(result) {
			return result, nil
		}
		elapsed := now().Sub(start)
		if elapsed >= r.Timeout {
			return result, &TimeoutError{Elapsed: elapsed, Last: result}
		}
		if onRetry != nil {
			if err := onRetry(ctx, result); err != nil {
				return result, err
			}
		}
		if err := sleep(ctx, r.Interval); err != nil {
			return result, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
