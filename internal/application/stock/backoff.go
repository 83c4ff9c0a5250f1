package stock

import (
	"context"
	"math/rand"
	"time"
)

const (
	// DefaultBackoffBase is the base delay before the second attempt
	DefaultBackoffBase = 10 * time.Millisecond
	// DefaultBackoffMax caps the delay between attempts
	DefaultBackoffMax = 200 * time.Millisecond
)

// SleepFunc waits for the given duration or until the context is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// BackoffPolicy computes the wait between conditional write attempts.
// Delays grow exponentially from Base up to Max, with full jitter so
// competing writers do not retry in lockstep.
type BackoffPolicy struct {
	Base  time.Duration
	Max   time.Duration
	Sleep SleepFunc
}

// DefaultBackoffPolicy returns the policy used when none is configured.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base: DefaultBackoffBase,
		Max:  DefaultBackoffMax,
	}
}

// Wait sleeps for the delay of the given retry (1 = first retry).
// Returns the context error if the context is cancelled while waiting.
func (p BackoffPolicy) Wait(ctx context.Context, retry int) error {
	d := p.Delay(retry)
	if d <= 0 {
		return ctx.Err()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return sleep(ctx, d)
}

// Delay returns the jittered delay for the given retry.
func (p BackoffPolicy) Delay(retry int) time.Duration {
	if p.Base <= 0 || retry <= 0 {
		return 0
	}
	max := p.Max
	if max <= 0 {
		max = DefaultBackoffMax
	}
	d := p.Base
	for i := 1; i < retry && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return time.Duration(rand.Int63n(int64(d)) + 1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
