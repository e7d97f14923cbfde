// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"fmt"
)

// StrategyCost identifies the deterministic cost/capability router.
const StrategyCost = "cost"

// PriceLookup resolves the blended per-1000-token cost in cents for a model.
// Implemented by the cost package's pricing table.
type PriceLookup interface {
	CostPer1KCents(modelName string) float64
}

// CostRouter is the non-adaptive, explainable selection path: it filters
// candidates by tenant policy and ranks the survivors by estimated
// per-1K-token cost, cheapest first, with breaker health as tie-break.
//
// Given identical inputs and pricing it always returns the same model; this
// is what distinguishes it from the Thompson router and makes it the right
// strategy for first dispatch before any bandit data exists.
type CostRouter struct {
	pricing PriceLookup
	breaker *CircuitBreaker
}

// NewCostRouter creates a deterministic router. pricing may be nil, in which
// case only adapters implementing CostEstimator have a known cost and all
// others rank as free. breaker may be nil to disable the health tie-break.
func NewCostRouter(pricing PriceLookup, breaker *CircuitBreaker) *CostRouter {
	return &CostRouter{
		pricing: pricing,
		breaker: breaker,
	}
}

// Select filters candidates by the policy allowlist and per-task cost
// ceiling, then returns the cheapest healthy survivor.
func (r *CostRouter) Select(tenantID string, taskType TaskType, candidates []Adapter, policy RouterPolicy) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, &RouterError{
			Code:    ErrRouterNoCandidates,
			Message: "no adapters registered for task type " + string(taskType),
		}
	}

	var best Adapter
	var bestCost float64
	found := false

	for _, a := range candidates {
		name := a.ModelName()
		if !policy.Allows(name) {
			continue
		}

		cost := r.costPer1K(a)
		if policy.MaxCostPerTaskCents > 0 && cost > policy.MaxCostPerTaskCents {
			continue
		}

		if !found || cost < bestCost || (cost == bestCost && r.healthier(a, best)) {
			best = a
			bestCost = cost
			found = true
		}
	}

	if !found {
		return Selection{}, &RouterError{
			Code:    ErrRouterNoEligible,
			Message: fmt.Sprintf("no eligible model for task type %s under policy", taskType),
		}
	}

	return Selection{Model: best.ModelName(), Score: bestCost, Strategy: StrategyCost}, nil
}

// RecordOutcome is a no-op: the cost router does not learn. Health feedback
// reaches it through the shared circuit breaker.
func (r *CostRouter) RecordOutcome(tenantID string, taskType TaskType, modelName string, success bool, latencyMs, costCents float64) {
}

// Strategy implements Router.
func (r *CostRouter) Strategy() string {
	return StrategyCost
}

// costPer1K resolves an adapter's per-1K-token cost in cents. Adapters that
// know their own pricing win over the shared table; a non-positive
// self-estimate means the adapter was built without pricing and defers to
// the table.
func (r *CostRouter) costPer1K(a Adapter) float64 {
	if est, ok := a.(CostEstimator); ok {
		if c := est.CostPer1KTokensCents(); c > 0 {
			return c
		}
	}
	if r.pricing != nil {
		return r.pricing.CostPer1KCents(a.ModelName())
	}
	return 0
}

// healthier reports whether a is in better breaker standing than b.
// Closed beats half-open beats open; equal states compare failure streaks.
// Candidates arrive in stable registration order, so full ties keep the
// earlier-registered adapter.
func (r *CostRouter) healthier(a, b Adapter) bool {
	if r.breaker == nil {
		return false
	}

	sa, sb := r.breaker.State(a.ModelName()), r.breaker.State(b.ModelName())
	if sa != sb {
		return healthRank(sa) < healthRank(sb)
	}
	return r.breaker.ConsecutiveFailures(a.ModelName()) < r.breaker.ConsecutiveFailures(b.ModelName())
}

// healthRank orders circuit states by dispatchability. The enum's declaration
// order puts open before half-open, so it cannot be compared directly.
func healthRank(s CircuitState) int {
	switch s {
	case CircuitClosed:
		return 0
	case CircuitHalfOpen:
		return 1
	default:
		return 2
	}
}

// Ensure CostRouter implements Router.
var _ Router = (*CostRouter)(nil)
