// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

// Package llm provides the model routing core for Forge1: a capability-tagged
// adapter registry, a per-adapter circuit breaker, and two selection
// strategies (adaptive Thompson sampling and a deterministic cost ranker)
// that pick a model for a task under tenant policy constraints.
package llm

import (
	"fmt"
)

// TaskType tags the kind of work an adapter is asked to perform.
// The set is fixed at process start; adapters advertise the types they serve.
type TaskType string

const (
	// TaskTypeGeneral is the catch-all task type.
	TaskTypeGeneral TaskType = "general"

	// TaskTypeCodeGeneration covers code writing and refactoring tasks.
	TaskTypeCodeGeneration TaskType = "code_generation"

	// TaskTypeAnalysis covers data and document analysis tasks.
	TaskTypeAnalysis TaskType = "analysis"

	// TaskTypeCreative covers open-ended writing tasks.
	TaskTypeCreative TaskType = "creative"

	// TaskTypeReview covers critique and evaluation tasks.
	TaskTypeReview TaskType = "review"
)

// ValidTaskTypes contains all task types known to the router.
var ValidTaskTypes = []TaskType{
	TaskTypeGeneral,
	TaskTypeCodeGeneration,
	TaskTypeAnalysis,
	TaskTypeCreative,
	TaskTypeReview,
}

// IsValidTaskType checks if a string names a known task type.
func IsValidTaskType(s string) bool {
	for _, valid := range ValidTaskTypes {
		if TaskType(s) == valid {
			return true
		}
	}
	return false
}

// GenerateResult is the output of a single adapter invocation.
type GenerateResult struct {
	// Content is the generated text.
	Content string `json:"content"`

	// Model is the model that produced the content.
	Model string `json:"model"`

	// PromptTokens is the number of tokens in the input.
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens generated.
	CompletionTokens int `json:"completion_tokens"`

	// Metadata carries provider-specific response data.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TotalTokens returns the combined prompt and completion token count.
func (r *GenerateResult) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// RouterPolicy carries tenant- or request-level routing constraints.
// Policies are supplied per call by the tenant policy store and are never
// mutated by the router.
type RouterPolicy struct {
	// AllowedModels restricts selection to the named models.
	// An empty list means "all models allowed", not "nothing allowed".
	AllowedModels []string `json:"allowed_models,omitempty"`

	// MaxCostPerTaskCents is a soft per-task cost ceiling.
	// Zero means no ceiling.
	MaxCostPerTaskCents float64 `json:"max_cost_per_task_cents,omitempty"`

	// MaxLatencyMs is a soft latency SLO in milliseconds.
	// Zero means no SLO.
	MaxLatencyMs float64 `json:"max_latency_ms,omitempty"`

	// MaxCentsPerDay caps cumulative daily spend for the tenant.
	// Zero means no cap.
	MaxCentsPerDay float64 `json:"max_cents_per_day,omitempty"`

	// MaxTokensPerRun caps tokens for a single invocation.
	// Zero means no cap.
	MaxTokensPerRun int `json:"max_tokens_per_run,omitempty"`
}

// Allows reports whether the policy permits the given model.
func (p RouterPolicy) Allows(model string) bool {
	if len(p.AllowedModels) == 0 {
		return true
	}
	for _, m := range p.AllowedModels {
		if m == model {
			return true
		}
	}
	return false
}

// Selection is the outcome of a routing decision.
type Selection struct {
	// Model is the chosen adapter's model name.
	Model string `json:"model"`

	// Score is the winner's raw score, kept for observability: the sampled
	// Beta draw before policy penalties for the Thompson router, the
	// per-1K-token cost in cents for the cost router.
	Score float64 `json:"score"`

	// Strategy names the router that made the decision.
	Strategy string `json:"strategy"`
}

// RouterError represents a selection failure.
type RouterError struct {
	Code    string
	Message string
	Cause   error
}

// Router error codes.
const (
	// ErrRouterNoCandidates indicates no adapter serves the task type.
	ErrRouterNoCandidates = "router_no_candidates"

	// ErrRouterNoEligible indicates policy filtering emptied the pool.
	ErrRouterNoEligible = "router_no_eligible"

	// ErrRouterBudgetExhausted indicates the tenant's daily budget is spent.
	ErrRouterBudgetExhausted = "router_budget_exhausted"
)

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router error (%s): %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *RouterError) Unwrap() error {
	return e.Cause
}
