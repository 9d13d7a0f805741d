package harvest

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle spaces out navigations to the source application.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows rps navigations per second with no bursting.
// A non-positive rps disables throttling.
func NewThrottle(rps float64) *Throttle {
	if rps <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Wait blocks until the next navigation is allowed.
// Returns an error if the context is canceled.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}
