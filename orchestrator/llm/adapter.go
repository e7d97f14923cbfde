// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
)

// Adapter is the unified interface for all model backends.
// Implementations must be safe for concurrent use.
//
// An adapter wraps exactly one provider model; its name doubles as the
// routing identifier, conventionally "{provider}-{model}".
type Adapter interface {
	// ModelName returns the unique identifier for this adapter.
	// Example: "anthropic-claude-3-5-sonnet", "openai-gpt-4o-mini"
	ModelName() string

	// Capabilities returns the task types this adapter can serve.
	// Used by the registry to resolve candidates for a task.
	Capabilities() []TaskType

	// Generate produces a completion for the prompt. The context should be
	// used for cancellation and timeout; any error is treated as an
	// invocation failure by the breaker and bandit accounting.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error)
}

// GenerateOptions carries per-invocation parameters common to all adapters.
type GenerateOptions struct {
	// MaxTokens limits the response length. Zero uses the adapter default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Zero uses the adapter default.
	Temperature float64 `json:"temperature,omitempty"`

	// SystemPrompt sets optional system-level instructions.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Metadata carries provider-specific options.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CostEstimator is optionally implemented by adapters that know their
// per-token pricing. The deterministic router falls back to the shared
// pricing table for adapters that do not implement it.
type CostEstimator interface {
	// CostPer1KTokensCents returns the blended per-1000-token cost in cents.
	CostPer1KTokensCents() float64
}

// HasCapability reports whether the adapter serves the given task type.
func HasCapability(a Adapter, taskType TaskType) bool {
	for _, c := range a.Capabilities() {
		if c == taskType {
			return true
		}
	}
	return false
}
