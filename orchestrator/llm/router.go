// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

// Router selects a model for a task from a candidate pool under a tenant
// policy. Implementations must be safe for concurrent use.
//
// Two strategies ship with the core: the adaptive ThompsonRouter and the
// deterministic CostRouter. The orchestrator treats them interchangeably.
type Router interface {
	// Select picks one model from candidates for the (tenant, task type)
	// pair. candidates is never reordered by the caller; an empty pool is
	// a selection failure.
	Select(tenantID string, taskType TaskType, candidates []Adapter, policy RouterPolicy) (Selection, error)

	// RecordOutcome feeds an invocation result back into the router's
	// state. Non-adaptive routers may ignore it.
	RecordOutcome(tenantID string, taskType TaskType, modelName string, success bool, latencyMs, costCents float64)

	// Strategy returns the router's identifier for logging and metrics.
	Strategy() string
}

// applyAllowedModels intersects candidates with the policy allowlist.
// An empty allowlist means no restriction. If the intersection is empty the
// full candidate list is returned: availability wins over strict compliance,
// since an over-restrictive policy must never strand a task with no model.
func applyAllowedModels(candidates []Adapter, policy RouterPolicy) []Adapter {
	if len(policy.AllowedModels) == 0 {
		return candidates
	}

	var eligible []Adapter
	for _, a := range candidates {
		if policy.Allows(a.ModelName()) {
			eligible = append(eligible, a)
		}
	}

	if len(eligible) == 0 {
		return candidates
	}
	return eligible
}
