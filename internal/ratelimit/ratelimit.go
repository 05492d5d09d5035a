// Package ratelimit counts requests per client key in fixed windows.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultWindow = time.Minute
	DefaultLimit  = 20
)

// Result describes the state of a key's window after one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, never negative.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts one request against key. Window and ceiling are fixed at
// construction.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	Window() time.Duration
}

func normalize(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return limit, window
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}
