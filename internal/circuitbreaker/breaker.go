// Package circuitbreaker keeps one breaker per key (an app id) so that an
// application whose executions keep failing, typically because its API
// secret was cleared, stops being called until a cooldown has passed.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreaker struct {
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger
}

// New returns a breaker set that opens after threshold consecutive failures
// and allows a single probe once cooldown has elapsed. A threshold of 0
// disables breaking.
func New(threshold int, cooldown time.Duration, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger.Named("circuitbreaker"),
	}
}

// Execute runs fn under the breaker for key. It returns ErrCircuitOpen
// without calling fn while the breaker is open.
func (cb *CircuitBreaker) Execute(key string, fn func() error) error {
	if cb == nil || cb.threshold <= 0 {
		return fn()
	}

	_, err := cb.get(key).Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State reports the breaker state for key as "closed", "open" or "half-open".
func (cb *CircuitBreaker) State(key string) string {
	if cb == nil || cb.threshold <= 0 {
		return gobreaker.StateClosed.String()
	}
	return cb.get(key).State().String()
}

func (cb *CircuitBreaker) get(key string) *gobreaker.CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	b, ok := cb.breakers[key]
	if ok {
		return b
	}

	threshold := uint32(cb.threshold)
	b = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     cb.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cb.logger.Info("state changed",
				zap.String("key", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	cb.breakers[key] = b
	return b
}
