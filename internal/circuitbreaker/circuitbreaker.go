// Package circuitbreaker configures the per-client breakers guarding outbound HTTP calls.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
)

// Config holds circuit breaker configuration
type Config struct {
	// MaxFailures is the number of consecutive upstream failures before opening the circuit
	MaxFailures uint32

	// Timeout is how long to wait in open state before moving to half-open
	Timeout time.Duration

	// MaxHalfOpenRequests is the maximum requests allowed in half-open state
	MaxHalfOpenRequests uint32

	// Interval clears the closed-state counts periodically, zero never clears
	Interval time.Duration
}

// DefaultConfig returns sensible defaults for circuit breaker
func DefaultConfig() Config {
	return Config{
		MaxFailures:         5,
		Timeout:             60 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// New builds a named breaker. Only transient upstream failures count against it, so
// rejected credentials or missing lists never trip the circuit.
func New(name string, cfg Config) *gobreaker.CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}
	if cfg.MaxHalfOpenRequests == 0 {
		cfg.MaxHalfOpenRequests = 1
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.AppLogger().WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state change")
		},
	})
}

// Execute runs fn through the breaker. A rejected call comes back as a non-retryable
// external service error.
func Execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	if cb == nil {
		return fn()
	}

	var zero T
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperrors.Wrap(err, apperrors.CodeExternalService, "circuit breaker rejected call").
				WithContext("breaker", cb.Name())
		}
		return zero, err
	}
	return result.(T), nil
}

// Set hands out one breaker per key, typically an upstream host, so a failing
// upstream only opens its own circuit.
type Set struct {
	name string
	cfg  Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewSet creates an empty Set whose breakers share cfg
func NewSet(name string, cfg Config) *Set {
	return &Set{
		name:     name,
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// For returns the breaker for key, creating it on first use
func (s *Set) For(key string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[key]; ok {
		return cb
	}
	cb := New(s.name+":"+key, s.cfg)
	s.breakers[key] = cb
	return cb
}

// Len returns the number of breakers created so far
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.breakers)
}
