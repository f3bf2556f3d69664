package summary

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Default per-attempt bounds for AI calls.
const (
	DefaultFirstTimeout = 30 * time.Second
	DefaultRetryTimeout = 60 * time.Second
)

// IsTimeout reports whether err is a timeout-class failure: the attempt ran
// out of time, or the channel went away before answering.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrNoResponse) ||
		errors.Is(err, ErrChannelClosed)
}

// RetryPolicy runs an attempt once per entry in Timeouts, each bounded by
// that entry. Only timeout-class failures are retried; Reset runs before
// every retry. When all attempts time out, Degrade may turn the last
// error into a fallback result.
type RetryPolicy struct {
	Timeouts []time.Duration
	Reset    func()
	Degrade  func(lastErr error) (string, bool)
}

// DefaultRetryPolicy bounds the first attempt to 30s and the retry to 60s.
func DefaultRetryPolicy(reset func()) RetryPolicy {
	return RetryPolicy{
		Timeouts: []time.Duration{DefaultFirstTimeout, DefaultRetryTimeout},
		Reset:    reset,
	}
}

// Run calls attempt with the attempt index (0-based). degraded is true when
// the result came from Degrade.
func (p RetryPolicy) Run(ctx context.Context, attempt func(ctx context.Context, n int) (string, error)) (out string, degraded bool, err error) {
	timeouts := p.Timeouts
	if len(timeouts) == 0 {
		timeouts = []time.Duration{DefaultFirstTimeout}
	}

	var lastErr error
	for n, timeout := range timeouts {
		if n > 0 && p.Reset != nil {
			p.Reset()
		}

		actx, cancel := context.WithTimeout(ctx, timeout)
		out, err := attempt(actx, n)
		cancel()
		if err == nil {
			return out, false, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		if !IsTimeout(err) {
			return "", false, err
		}
	}

	if p.Reset != nil {
		p.Reset()
	}
	if p.Degrade != nil {
		if fallback, ok := p.Degrade(lastErr); ok {
			return fallback, true, nil
		}
	}
	return "", false, fmt.Errorf("all %d attempts timed out: %w", len(timeouts), lastErr)
}
