// Package ratelimit throttles attempts per caller with a sliding window.
// It guards the verification-code approval endpoint against guessing.
package ratelimit

import (
	"context"
	"math"
	"time"
)

// Policy is the number of attempts allowed within Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result describes the outcome of one attempt.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set when not allowed
}

// Store records attempts under a key. Implementations must be safe for
// concurrent use.
type Store interface {
	Allow(ctx context.Context, key string, p Policy) (*Result, error)
}

func retryAfter(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
