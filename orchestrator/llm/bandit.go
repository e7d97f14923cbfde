// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// ArmStats holds running statistics for one (tenant, task type, model) arm.
// Counts are monotonically non-decreasing for the process lifetime; averages
// are cumulative means so repeated wins shift future sampling in the arm's
// favor.
type ArmStats struct {
	TenantID  string   `json:"tenant_id"`
	TaskType  TaskType `json:"task_type"`
	ModelName string   `json:"model_name"`

	Successes    int64   `json:"successes"`
	Failures     int64   `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	AvgCostCents float64 `json:"avg_cost_cents"`
}

// Observations returns the total number of recorded outcomes.
func (a *ArmStats) Observations() int64 {
	return a.Successes + a.Failures
}

// armKey builds the map key for an arm.
func armKey(tenantID string, taskType TaskType, modelName string) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, taskType, modelName)
}

// BanditStore keeps per-arm statistics in memory. It is safe for concurrent
// use; a deployment that needs durability snapshots it through a Storage
// implementation (see storage.go).
type BanditStore struct {
	arms map[string]*ArmStats
	mu   sync.RWMutex
}

// NewBanditStore creates an empty bandit state store.
func NewBanditStore() *BanditStore {
	return &BanditStore{
		arms: make(map[string]*ArmStats),
	}
}

// RecordOutcome updates the arm for the given key with one observation.
// The arm is created lazily on first observation.
func (s *BanditStore) RecordOutcome(tenantID string, taskType TaskType, modelName string, success bool, latencyMs, costCents float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	arm := s.arm(tenantID, taskType, modelName)

	if success {
		arm.Successes++
	} else {
		arm.Failures++
	}

	// Cumulative means over all observations.
	n := float64(arm.Observations())
	arm.AvgLatencyMs += (latencyMs - arm.AvgLatencyMs) / n
	arm.AvgCostCents += (costCents - arm.AvgCostCents) / n
}

// Stats returns a copy of the arm's statistics. The second return value is
// false if the arm has never been observed.
func (s *BanditStore) Stats(tenantID string, taskType TaskType, modelName string) (ArmStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	arm, ok := s.arms[armKey(tenantID, taskType, modelName)]
	if !ok {
		return ArmStats{}, false
	}
	return *arm, true
}

// Snapshot returns copies of all arms, for persistence and status reporting.
func (s *BanditStore) Snapshot() []ArmStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ArmStats, 0, len(s.arms))
	for _, arm := range s.arms {
		out = append(out, *arm)
	}
	return out
}

// Restore merges previously persisted arms into the store. Existing arms
// with the same key are overwritten; used at startup before traffic flows.
func (s *BanditStore) Restore(arms []ArmStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, arm := range arms {
		restored := arm
		s.arms[armKey(arm.TenantID, arm.TaskType, arm.ModelName)] = &restored
	}
}

// arm returns the stats for a key, creating a fresh arm on first use.
// Callers must hold s.mu.
func (s *BanditStore) arm(tenantID string, taskType TaskType, modelName string) *ArmStats {
	key := armKey(tenantID, taskType, modelName)
	arm, ok := s.arms[key]
	if !ok {
		arm = &ArmStats{
			TenantID:  tenantID,
			TaskType:  taskType,
			ModelName: modelName,
		}
		s.arms[key] = arm
	}
	return arm
}

// sampleBeta draws from Beta(alpha, beta) using two gamma draws.
// Both shape parameters are >= 1 here (Beta(successes+1, failures+1)), which
// keeps the Marsaglia-Tsang sampler in its simple regime.
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	x := sampleGamma(rng, alpha)
	y := sampleGamma(rng, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma draws from Gamma(shape, 1) via Marsaglia-Tsang squeeze.
// Requires shape >= 1.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()

		if u < 1.0-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1.0-v+math.Log(v)) {
			return d * v
		}
	}
}
