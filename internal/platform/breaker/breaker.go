// Package breaker builds the circuit breakers that guard calls to Redis and
// RabbitMQ.
package breaker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Names of the breakers created by the server.
const (
	Redis    = "redis-revocation"
	RabbitMQ = "rabbitmq-publisher"
)

// New returns a breaker that opens after three consecutive failures and lets
// three trial requests through once its open timeout elapses.
func New(name string, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(Settings(name, logger))
}

// Settings returns the gobreaker settings used by New.
func Settings(name string, logger zerolog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     openTimeout(name),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
}

// Redis sits on the request path, so it recovers faster than the broker.
func openTimeout(name string) time.Duration {
	switch name {
	case Redis:
		return 5 * time.Second
	default:
		return 30 * time.Second
	}
}
