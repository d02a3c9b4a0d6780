package usecase

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// SearchGate decides when the next search query may be dispatched.
// One gate is shared by every query of a run.
type SearchGate interface {
	Wait(ctx context.Context) error
}

// NewSearchGate returns a token bucket that releases burst queries at once
// and then one query per interval. A zero interval never blocks.
func NewSearchGate(interval time.Duration, burst int) SearchGate {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(interval), burst)
}
