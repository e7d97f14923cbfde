// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"sync"
	"time"
)

// Breaker defaults. Both values are configuration, not contract: deployments
// tune them per provider SLA.
const (
	// DefaultFailureThreshold opens the circuit after this many
	// consecutive failures.
	DefaultFailureThreshold = 2

	// DefaultCooldown is how long an open circuit blocks dispatch before a
	// trial call is allowed through.
	DefaultCooldown = 30 * time.Second
)

// CircuitState represents the state of one adapter's circuit.
type CircuitState int

const (
	// CircuitClosed allows calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks calls until the cool-down elapses.
	CircuitOpen
	// CircuitHalfOpen allows a single trial call after the cool-down.
	CircuitHalfOpen
)

// String returns a readable state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// circuit holds the per-adapter breaker state.
type circuit struct {
	consecutiveFailures int
	open                bool
	openedAt            time.Time
}

// CircuitBreaker tracks consecutive failures per adapter and short-circuits
// dispatch to adapters that keep failing. It is safe for concurrent use.
//
// State machine per adapter: Closed, then Open once the consecutive-failure
// count reaches the threshold, then Half-Open once the cool-down elapses.
// A success in any state resets the circuit to Closed; a failure while
// Half-Open re-opens it immediately.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	circuits  map[string]*circuit
	now       func() time.Time
	mu        sync.Mutex
}

// BreakerOption configures the circuit breaker.
type BreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets the consecutive-failure count that opens a
// circuit. Values below 1 are ignored.
func WithFailureThreshold(n int) BreakerOption {
	return func(cb *CircuitBreaker) {
		if n >= 1 {
			cb.threshold = n
		}
	}
}

// WithCooldown sets the open-circuit cool-down period.
func WithCooldown(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.cooldown = d
		}
	}
}

// withClock overrides the time source for tests.
func withClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// NewCircuitBreaker creates a breaker with the given options.
func NewCircuitBreaker(opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		threshold: DefaultFailureThreshold,
		cooldown:  DefaultCooldown,
		circuits:  make(map[string]*circuit),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(cb)
	}

	return cb
}

// RecordSuccess resets the adapter's consecutive-failure counter and closes
// its circuit if open.
func (cb *CircuitBreaker) RecordSuccess(modelName string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(modelName)
	c.consecutiveFailures = 0
	c.open = false
	c.openedAt = time.Time{}
}

// RecordFailure increments the adapter's consecutive-failure counter and
// opens the circuit once the threshold is reached. A failure on an already
// open circuit (the half-open trial) re-stamps the open time.
func (cb *CircuitBreaker) RecordFailure(modelName string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(modelName)
	c.consecutiveFailures++
	if c.consecutiveFailures >= cb.threshold {
		c.open = true
		c.openedAt = cb.now()
	}
}

// Allow reports whether a call to the adapter may proceed. An open circuit
// blocks until the cool-down elapses; after that one trial call is allowed
// (half-open). Callers seeing false must synthesize a failure without
// invoking the adapter and without recording another failure.
func (cb *CircuitBreaker) Allow(modelName string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(modelName)
	if !c.open {
		return true
	}
	return cb.now().Sub(c.openedAt) >= cb.cooldown
}

// State returns the current circuit state for an adapter.
func (cb *CircuitBreaker) State(modelName string) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuit(modelName)
	if !c.open {
		return CircuitClosed
	}
	if cb.now().Sub(c.openedAt) >= cb.cooldown {
		return CircuitHalfOpen
	}
	return CircuitOpen
}

// ConsecutiveFailures returns the adapter's current failure streak.
func (cb *CircuitBreaker) ConsecutiveFailures(modelName string) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.circuit(modelName).consecutiveFailures
}

// Reset clears all state for an adapter.
func (cb *CircuitBreaker) Reset(modelName string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.circuits, modelName)
}

// circuit returns the adapter's circuit, creating it on first use.
// Callers must hold cb.mu.
func (cb *CircuitBreaker) circuit(modelName string) *circuit {
	c, ok := cb.circuits[modelName]
	if !ok {
		c = &circuit{}
		cb.circuits[modelName] = c
	}
	return c
}
