package harvest

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetryDelays returns the backoff delays for navigation retries: 1s, 2s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second}
}

// NavigateFunc is the signature for a navigation attempt.
type NavigateFunc func(ctx context.Context, locator string) (string, error)

// NavigateWithRetry attempts a navigation, retrying generic failures after
// each delay. Timeouts and interruptions are returned immediately: a page
// that timed out once is recorded and the run moves on. The signal is
// polled before every attempt; once it is raised the call returns an
// EINTERRUPTED error without navigating.
func NavigateWithRetry(ctx context.Context, locator string, nav NavigateFunc, sig *Signal, logger *slog.Logger, delays []time.Duration) (string, error) {
	maxAttempts := len(delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if sig != nil && sig.Raised() {
			return "", errInterrupted
		}

		html, err := nav(ctx, locator)
		if err == nil {
			return html, nil
		}
		lastErr = err

		if attempt >= maxAttempts-1 {
			break
		}
		switch classify(err) {
		case classInterrupt, classTimeout:
			return "", err
		}

		if logger != nil {
			logger.Debug("retrying navigation", "locator", locator, "attempt", attempt+2, "err", err)
		}

		var raised <-chan struct{}
		if sig != nil {
			raised = sig.Done()
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-raised:
			return "", errInterrupted
		case <-time.After(delays[attempt]):
		}
	}

	return "", lastErr
}
