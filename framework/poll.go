package framework

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// TimeoutError is returned by Poll when the condition did not become true before the deadline.
type TimeoutError struct {
	Timeout   time.Duration
	Attempts  int
	LastState string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s (%d attempts) waiting for condition; last state: %s",
		e.Timeout, e.Attempts, e.LastState)
}

// Poll calls condition at a fixed interval until it returns true or the timeout elapses. An error
// from condition does not stop polling; its text becomes the last known state reported in the
// *TimeoutError. If the parent context is cancelled, Poll returns the context's error.
func Poll(
	ctx context.Context,
	timeout time.Duration,
	interval time.Duration,
	condition func(context.Context) (bool, error),
) error {
	if interval <= 0 {
		interval = time.Millisecond * 100
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	timeoutErr := &TimeoutError{Timeout: timeout, LastState: "condition was never checked"}
	for {
		if err := limiter.Wait(pollCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return timeoutErr
		}
		timeoutErr.Attempts++
		done, err := condition(pollCtx)
		if done {
			return nil
		}
		switch {
		case err != nil:
			timeoutErr.LastState = err.Error()
		default:
			timeoutErr.LastState = "condition was false"
		}
		if errors.Is(pollCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return timeoutErr
		}
	}
}
