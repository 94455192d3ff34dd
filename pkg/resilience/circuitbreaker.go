// Package resilience wraps calls to Redis, Postgres and Kafka with a circuit
// breaker, jittered retry and a hard timeout.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CircuitBreakerConfig zero values fall back to 5 failures, a 30s cool-down
// and a single half-open probe.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange runs after each transition, outside the breaker's lock.
	OnStateChange func(from, to State)
}

// BreakerSnapshot is a point-in-time view of a breaker.
type BreakerSnapshot struct {
	State    State
	Failures int
	OpenedAt time.Time
}

// CircuitBreaker opens after FailureThreshold consecutive failures, rejects
// calls for ResetTimeout, then lets HalfOpenMaxRequests probes decide whether
// to close again.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "breaker", name),
		now:    time.Now,
	}
}

// Execute runs fn when the breaker admits it. A failure caused by ctx ending
// says nothing about the dependency and is not counted.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	switch {
	case err == nil:
		cb.record(true)
	case ctx.Err() != nil:
		cb.returnProbe()
	default:
		cb.record(false)
	}
	return err
}

// Allow reports whether Execute would run fn right now. It does not consume
// a half-open probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		return cb.cooledDown()
	case StateHalfOpen:
		return cb.probes < cb.cfg.HalfOpenMaxRequests
	}
	return true
}

func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{State: cb.state, Failures: cb.failures, OpenedAt: cb.openedAt}
}

// Reset closes the breaker and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.failures, cb.probes = 0, 0
	cb.state = StateClosed
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateOpen:
		if !cb.cooledDown() {
			wait := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.state = StateHalfOpen
		cb.probes = 1
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenMaxRequests {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probes++
	}
	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
	return nil
}

func (cb *CircuitBreaker) returnProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.probes > 0 {
		cb.probes--
	}
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	from := cb.state
	if ok {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.probes = 0
			cb.state = StateClosed
		}
	} else {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.now()
			cb.state = StateOpen
		}
	}
	to := cb.state
	failures := cb.failures
	cb.mu.Unlock()

	if from != to {
		cb.logger.Warn("circuit state changed", "from", from.String(), "to", to.String(), "consecutive_failures", failures)
	}
	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
