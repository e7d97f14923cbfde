// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"log"
	"math/rand"
	"os"
	"sync"
	"time"
)

// StrategyThompson identifies the adaptive sampling router.
const StrategyThompson = "thompson"

// ThompsonRouter adaptively picks the best-performing model per
// (tenant, task type) pair using Thompson sampling over the bandit store.
//
// Each candidate's success probability is sampled from
// Beta(successes+1, failures+1); unobserved arms start at the uninformative
// Beta(1,1) prior, which keeps exploration alive for new models. Policy
// latency/cost violations discount the sampled score multiplicatively
// rather than excluding the arm: averages are noisy at low sample counts,
// and a violating-but-excellent arm should stay reachable.
type ThompsonRouter struct {
	store  *BanditStore
	rng    *rand.Rand
	logger *log.Logger
	mu     sync.Mutex // guards rng
}

// ThompsonOption configures the router.
type ThompsonOption func(*ThompsonRouter)

// WithRandSource sets a seedable random source, used by tests to make
// selection deterministic.
func WithRandSource(src rand.Source) ThompsonOption {
	return func(r *ThompsonRouter) {
		r.rng = rand.New(src)
	}
}

// WithThompsonLogger sets the router's logger.
func WithThompsonLogger(logger *log.Logger) ThompsonOption {
	return func(r *ThompsonRouter) {
		r.logger = logger
	}
}

// NewThompsonRouter creates an adaptive router over the given bandit store.
func NewThompsonRouter(store *BanditStore, opts ...ThompsonOption) *ThompsonRouter {
	r := &ThompsonRouter{
		store:  store,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: log.New(os.Stdout, "[THOMPSON_ROUTER] ", log.LstdFlags),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.store == nil {
		r.store = NewBanditStore()
	}

	return r
}

// Select samples each candidate arm and picks the highest penalized score.
// The returned Selection carries the winner's raw sampled score; the penalty
// only shapes the comparison.
func (r *ThompsonRouter) Select(tenantID string, taskType TaskType, candidates []Adapter, policy RouterPolicy) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, &RouterError{
			Code:    ErrRouterNoCandidates,
			Message: "no adapters registered for task type " + string(taskType),
		}
	}

	eligible := applyAllowedModels(candidates, policy)

	var best Selection
	var bestPenalized float64
	for _, a := range eligible {
		name := a.ModelName()
		stats, _ := r.store.Stats(tenantID, taskType, name)

		r.mu.Lock()
		raw := sampleBeta(r.rng, float64(stats.Successes)+1, float64(stats.Failures)+1)
		r.mu.Unlock()

		penalized := raw * policyPenalty(stats, policy)

		if best.Model == "" || penalized > bestPenalized {
			best = Selection{Model: name, Score: raw, Strategy: StrategyThompson}
			bestPenalized = penalized
		}
	}

	return best, nil
}

// RecordOutcome updates the bandit arm for the invocation.
func (r *ThompsonRouter) RecordOutcome(tenantID string, taskType TaskType, modelName string, success bool, latencyMs, costCents float64) {
	r.store.RecordOutcome(tenantID, taskType, modelName, success, latencyMs, costCents)
}

// Strategy implements Router.
func (r *ThompsonRouter) Strategy() string {
	return StrategyThompson
}

// Store returns the underlying bandit store.
func (r *ThompsonRouter) Store() *BanditStore {
	return r.store
}

// policyPenalty returns the multiplicative discount for an arm whose running
// averages violate the policy's latency or cost limits. Each violated
// dimension contributes limit/observed, so the discount grows smoothly with
// the overage ratio and never reaches zero.
func policyPenalty(stats ArmStats, policy RouterPolicy) float64 {
	penalty := 1.0

	if policy.MaxLatencyMs > 0 && stats.AvgLatencyMs > policy.MaxLatencyMs {
		penalty *= policy.MaxLatencyMs / stats.AvgLatencyMs
	}
	if policy.MaxCostPerTaskCents > 0 && stats.AvgCostCents > policy.MaxCostPerTaskCents {
		penalty *= policy.MaxCostPerTaskCents / stats.AvgCostCents
	}

	return penalty
}

// Ensure ThompsonRouter implements Router.
var _ Router = (*ThompsonRouter)(nil)
