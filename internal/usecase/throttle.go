package usecase

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"NewsletterScanner/internal/ports"
)

// RateThrottle spaces calls evenly to stay under a per-minute quota.
type RateThrottle struct {
	limiter *rate.Limiter
}

var _ ports.Throttle = (*RateThrottle)(nil)

// NewRateThrottle allows perMinute calls per minute with a burst of one.
func NewRateThrottle(perMinute int) *RateThrottle {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateThrottle{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (t *RateThrottle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
