package remote

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/nemanja-m/ccrender/internal/shared/config"
	"github.com/nemanja-m/ccrender/internal/shared/logging"
)

func newBreaker(cfg config.BreakerConfig, logger logging.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "render-api",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Caller cancellations are not failures of the remote API.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}
