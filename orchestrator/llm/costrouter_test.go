// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"testing"
)

// tablePricing is a fixed PriceLookup for tests.
type tablePricing map[string]float64

func (p tablePricing) CostPer1KCents(modelName string) float64 {
	return p[modelName]
}

// pricedAdapter carries its own cost estimate, overriding table pricing.
type pricedAdapter struct {
	mockAdapter
	costPer1K float64
}

func (p *pricedAdapter) CostPer1KTokensCents() float64 {
	return p.costPer1K
}

func TestCostRouterPicksCheapest(t *testing.T) {
	pricing := tablePricing{"expensive": 50, "cheap": 5}
	r := NewCostRouter(pricing, NewCircuitBreaker())

	candidates := []Adapter{
		&mockAdapter{name: "expensive"},
		&mockAdapter{name: "cheap"},
	}

	sel, err := r.Select("acme", TaskTypeGeneral, candidates, RouterPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Model != "cheap" {
		t.Errorf("expected cheap, got %s", sel.Model)
	}
	if sel.Strategy != StrategyCost {
		t.Errorf("expected strategy %s, got %s", StrategyCost, sel.Strategy)
	}
	if sel.Score != 5 {
		t.Errorf("expected score 5, got %f", sel.Score)
	}
}

func TestCostRouterIsDeterministic(t *testing.T) {
	pricing := tablePricing{"a": 10, "b": 2, "c": 7}
	r := NewCostRouter(pricing, nil)

	candidates := []Adapter{
		&mockAdapter{name: "a"},
		&mockAdapter{name: "b"},
		&mockAdapter{name: "c"},
	}

	for i := 0; i < 20; i++ {
		sel, err := r.Select("acme", TaskTypeGeneral, candidates, RouterPolicy{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sel.Model != "b" {
			t.Fatalf("iteration %d: expected b, got %s", i, sel.Model)
		}
	}
}

func TestCostRouterAllowlistIsStrict(t *testing.T) {
	pricing := tablePricing{"cheap": 5, "expensive": 50}
	r := NewCostRouter(pricing, nil)

	candidates := []Adapter{
		&mockAdapter{name: "cheap"},
		&mockAdapter{name: "expensive"},
	}

	t.Run("restricts to allowed", func(t *testing.T) {
		policy := RouterPolicy{AllowedModels: []string{"expensive"}}
		sel, err := r.Select("acme", TaskTypeGeneral, candidates, policy)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sel.Model != "expensive" {
			t.Errorf("expected expensive, got %s", sel.Model)
		}
	})

	t.Run("empty intersection fails", func(t *testing.T) {
		// Unlike the sampling router, the deterministic path refuses to
		// override an explicit allowlist.
		policy := RouterPolicy{AllowedModels: []string{"unknown"}}
		_, err := r.Select("acme", TaskTypeGeneral, candidates, policy)
		if err == nil {
			t.Fatal("expected no-eligible-model error")
		}
		rerr, ok := err.(*RouterError)
		if !ok {
			t.Fatalf("expected *RouterError, got %T", err)
		}
		if rerr.Code != ErrRouterNoEligible {
			t.Errorf("expected code %s, got %s", ErrRouterNoEligible, rerr.Code)
		}
	})
}

func TestCostRouterCostCeiling(t *testing.T) {
	pricing := tablePricing{"cheap": 5, "expensive": 50}
	r := NewCostRouter(pricing, nil)

	candidates := []Adapter{
		&mockAdapter{name: "cheap"},
		&mockAdapter{name: "expensive"},
	}

	policy := RouterPolicy{MaxCostPerTaskCents: 10}
	sel, err := r.Select("acme", TaskTypeGeneral, candidates, policy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Model != "cheap" {
		t.Errorf("expected cheap, got %s", sel.Model)
	}

	policy = RouterPolicy{MaxCostPerTaskCents: 1}
	if _, err := r.Select("acme", TaskTypeGeneral, candidates, policy); err == nil {
		t.Fatal("expected error when every model exceeds the ceiling")
	}
}

func TestCostRouterBreakerTieBreak(t *testing.T) {
	pricing := tablePricing{"model-a": 5, "model-b": 5}
	cb := NewCircuitBreaker()
	r := NewCostRouter(pricing, cb)

	candidates := []Adapter{
		&mockAdapter{name: "model-a"},
		&mockAdapter{name: "model-b"},
	}

	// Tied on cost with clean breakers, registration order wins.
	sel, err := r.Select("acme", TaskTypeGeneral, candidates, RouterPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Model != "model-a" {
		t.Errorf("expected model-a on full tie, got %s", sel.Model)
	}

	// A failure streak on model-a hands the tie to model-b.
	cb.RecordFailure("model-a")
	sel, err = r.Select("acme", TaskTypeGeneral, candidates, RouterPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Model != "model-b" {
		t.Errorf("expected model-b after model-a failures, got %s", sel.Model)
	}
}

func TestCostRouterAdapterSelfEstimate(t *testing.T) {
	// Adapters that implement CostEstimator override the shared table.
	pricing := tablePricing{"self-priced": 100, "table-priced": 10}
	r := NewCostRouter(pricing, nil)

	candidates := []Adapter{
		&pricedAdapter{mockAdapter: mockAdapter{name: "self-priced"}, costPer1K: 1},
		&mockAdapter{name: "table-priced"},
	}

	sel, err := r.Select("acme", TaskTypeGeneral, candidates, RouterPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Model != "self-priced" {
		t.Errorf("expected self-priced via CostEstimator, got %s", sel.Model)
	}
}

func TestCostRouterZeroSelfEstimateFallsBackToTable(t *testing.T) {
	// Provider adapters built without pricing report a zero self-estimate;
	// that must read as "unknown" and defer to the table, not as free.
	pricing := tablePricing{"expensive": 50, "cheap": 5}
	r := NewCostRouter(pricing, nil)

	candidates := []Adapter{
		&pricedAdapter{mockAdapter: mockAdapter{name: "expensive"}, costPer1K: 0},
		&pricedAdapter{mockAdapter: mockAdapter{name: "cheap"}, costPer1K: 0},
	}

	sel, err := r.Select("acme", TaskTypeGeneral, candidates, RouterPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Model != "cheap" {
		t.Errorf("expected cheap via table fallback, got %s", sel.Model)
	}
	if sel.Score != 5 {
		t.Errorf("expected table score 5, got %f", sel.Score)
	}
}

func TestCostRouterHalfOpenBeatsOpenOnTie(t *testing.T) {
	pricing := tablePricing{"model-a": 5, "model-b": 5}
	clock := newFakeClock()
	cb := NewCircuitBreaker(withClock(clock.now))
	r := NewCostRouter(pricing, cb)

	candidates := []Adapter{
		&mockAdapter{name: "model-a"},
		&mockAdapter{name: "model-b"},
	}

	// model-a opened long enough ago to be half-open; model-b just opened.
	cb.RecordFailure("model-a")
	cb.RecordFailure("model-a")
	clock.advance(DefaultCooldown)
	cb.RecordFailure("model-b")
	cb.RecordFailure("model-b")

	if got := cb.State("model-a"); got != CircuitHalfOpen {
		t.Fatalf("expected model-a half-open, got %s", got)
	}
	if got := cb.State("model-b"); got != CircuitOpen {
		t.Fatalf("expected model-b open, got %s", got)
	}

	// The half-open candidate admits a trial call; the open one is blocked.
	sel, err := r.Select("acme", TaskTypeGeneral, candidates, RouterPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Model != "model-a" {
		t.Errorf("expected half-open model-a over open model-b, got %s", sel.Model)
	}
	if !cb.Allow(sel.Model) {
		t.Errorf("selected model %s should be callable", sel.Model)
	}
}

func TestCostRouterRecordOutcomeIsNoOp(t *testing.T) {
	r := NewCostRouter(nil, nil)
	// Must not panic; the cost router keeps no per-arm state.
	r.RecordOutcome("acme", TaskTypeGeneral, "model-a", false, 100, 1)
}
