package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Sleeper pauses the calling goroutine. Backoff and batch pauses go through it
// so tests can observe the requested durations without waiting.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
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

// RequestLimiter bounds the outbound request rate of one fetcher.
// A nil *RequestLimiter never blocks.
type RequestLimiter struct {
	limiter *rate.Limiter
}

// NewRequestLimiter returns nil for rps <= 0.
func NewRequestLimiter(rps float64) *RequestLimiter {
	if rps <= 0 {
		return nil
	}
	return &RequestLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (r *RequestLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

func (r *RequestLimiter) Limit() float64 {
	if r == nil {
		return 0
	}
	return float64(r.limiter.Limit())
}
