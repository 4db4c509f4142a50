// Package resilience guards calls to external services with a circuit breaker.
// Each call is attempted once; the breaker only fails fast while the service is down.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"rental-application-engine/internal/utils"
)

// Config tunes a Breaker.
type Config struct {
	Enabled         bool
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
}

// DefaultConfig returns the breaker defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MinRequests:     5,
		FailureRatio:    0.6,
		OpenTimeout:     30 * time.Second,
		HalfOpenMaxReqs: 1,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.MinRequests == 0 {
		out.MinRequests = def.MinRequests
	}
	if out.FailureRatio <= 0 || out.FailureRatio > 1 {
		out.FailureRatio = def.FailureRatio
	}
	if out.OpenTimeout <= 0 {
		out.OpenTimeout = def.OpenTimeout
	}
	if out.HalfOpenMaxReqs == 0 {
		out.HalfOpenMaxReqs = def.HalfOpenMaxReqs
	}
	return out
}

// Breaker wraps one named external dependency.
type Breaker struct {
	enabled bool
	cb      *gobreaker.CircuitBreaker[any]
}

// NewBreaker creates a breaker for the named operation.
func NewBreaker(name string, cfg Config) *Breaker {
	cfg = cfg.normalize()
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenMaxReqs,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the dependency's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			utils.GetLogger().Warn("Circuit breaker state change",
				zap.String("operation", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &Breaker{
		enabled: cfg.Enabled,
		cb:      gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Execute runs fn once through the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b == nil || !b.enabled {
		return fn(ctx)
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// State returns the breaker state name.
func (b *Breaker) State() string {
	if b == nil || !b.enabled {
		return "disabled"
	}
	return b.cb.State().String()
}

// IsCircuitOpen reports whether err comes from a tripped breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
