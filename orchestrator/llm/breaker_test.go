// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"testing"
	"time"
)

// fakeClock is a controllable time source for breaker tests.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker()

	cb.RecordFailure("model-a")
	if !cb.Allow("model-a") {
		t.Fatal("one failure should not open the circuit")
	}
	if got := cb.State("model-a"); got != CircuitClosed {
		t.Errorf("expected closed, got %s", got)
	}

	cb.RecordFailure("model-a")
	if cb.Allow("model-a") {
		t.Fatal("two consecutive failures should open the circuit")
	}
	if got := cb.State("model-a"); got != CircuitOpen {
		t.Errorf("expected open, got %s", got)
	}
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	cb := NewCircuitBreaker()

	// Failures interleaved with successes never reach the threshold.
	for i := 0; i < 5; i++ {
		cb.RecordFailure("model-a")
		cb.RecordSuccess("model-a")
	}

	if !cb.Allow("model-a") {
		t.Error("interleaved failures should keep the circuit closed")
	}
	if got := cb.ConsecutiveFailures("model-a"); got != 0 {
		t.Errorf("expected streak 0, got %d", got)
	}
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(
		WithCooldown(30*time.Second),
		withClock(clock.now),
	)

	cb.RecordFailure("model-a")
	cb.RecordFailure("model-a")
	if cb.Allow("model-a") {
		t.Fatal("circuit should be open")
	}

	clock.advance(29 * time.Second)
	if cb.Allow("model-a") {
		t.Fatal("circuit should still be open before cooldown elapses")
	}

	clock.advance(1 * time.Second)
	if !cb.Allow("model-a") {
		t.Fatal("circuit should allow a trial call after cooldown")
	}
	if got := cb.State("model-a"); got != CircuitHalfOpen {
		t.Errorf("expected half_open, got %s", got)
	}
}

func TestBreakerHalfOpenTrialOutcome(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(
		WithCooldown(30*time.Second),
		withClock(clock.now),
	)

	cb.RecordFailure("model-a")
	cb.RecordFailure("model-a")
	clock.advance(31 * time.Second)

	t.Run("failed trial re-opens", func(t *testing.T) {
		cb.RecordFailure("model-a")
		if cb.Allow("model-a") {
			t.Error("failed trial should re-open the circuit for a fresh cooldown")
		}
		if got := cb.State("model-a"); got != CircuitOpen {
			t.Errorf("expected open, got %s", got)
		}
	})

	t.Run("successful trial closes", func(t *testing.T) {
		clock.advance(31 * time.Second)
		cb.RecordSuccess("model-a")
		if !cb.Allow("model-a") {
			t.Error("successful trial should close the circuit")
		}
		if got := cb.State("model-a"); got != CircuitClosed {
			t.Errorf("expected closed, got %s", got)
		}
	})
}

func TestBreakerCustomThreshold(t *testing.T) {
	cb := NewCircuitBreaker(WithFailureThreshold(5))

	for i := 0; i < 4; i++ {
		cb.RecordFailure("model-a")
	}
	if !cb.Allow("model-a") {
		t.Fatal("circuit should stay closed below the threshold")
	}

	cb.RecordFailure("model-a")
	if cb.Allow("model-a") {
		t.Fatal("circuit should open at the threshold")
	}
}

func TestBreakerTracksModelsIndependently(t *testing.T) {
	cb := NewCircuitBreaker()

	cb.RecordFailure("model-a")
	cb.RecordFailure("model-a")

	if cb.Allow("model-a") {
		t.Error("model-a circuit should be open")
	}
	if !cb.Allow("model-b") {
		t.Error("model-b circuit should be unaffected")
	}
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker()

	cb.RecordFailure("model-a")
	cb.RecordFailure("model-a")
	cb.Reset("model-a")

	if !cb.Allow("model-a") {
		t.Error("reset should close the circuit")
	}
	if got := cb.ConsecutiveFailures("model-a"); got != 0 {
		t.Errorf("expected streak 0 after reset, got %d", got)
	}
}
