package connector

import (
	"context"

	"golang.org/x/time/rate"
)

// limiter throttles outbound index requests with a token bucket.
type limiter struct {
	rl *rate.Limiter
}

func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &limiter{rl: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a request may be sent or ctx ends.
func (l *limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}
