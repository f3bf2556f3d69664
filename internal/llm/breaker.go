package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for the backend circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a configuration that opens after most of at
// least five recent calls failed and lets a trial call through after a minute.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         2 * time.Minute,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Breaker guards a Backend with a circuit breaker so a dead provider fails
// fast instead of holding every summary for its full timeout.
type Breaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next. onStateChange may be nil.
func NewBreaker(next Backend, cfg BreakerConfig, onStateChange func(from, to string)) *Breaker {
	logger := slog.Default()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			if onStateChange != nil {
				onStateChange(from.String(), to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			// Cancellation comes from our side, and a missing key is a
			// configuration problem; neither says anything about the provider.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrMissingAPIKey)
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Complete(ctx context.Context, c Completion) (string, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Complete(ctx, c)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}
