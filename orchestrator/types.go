// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"forge1/platform/orchestrator/llm"
)

// Default retrieval depth when a task asks for RAG without a top-k.
const DefaultRAGTopK = 5

// TaskContext carries per-invocation input alongside the task text.
// It is created fresh per request and never persisted by the core.
type TaskContext struct {
	// TaskType tags the kind of work requested; empty defaults to general.
	TaskType llm.TaskType `json:"task_type,omitempty"`

	// TenantID scopes routing state and budget accounting.
	TenantID string `json:"tenant_id"`

	// UserID identifies the requesting user, for telemetry only.
	UserID string `json:"user_id,omitempty"`

	// UseRAG enables best-effort retrieval augmentation.
	UseRAG bool `json:"use_rag,omitempty"`

	// RAGTopK bounds retrieval depth; zero uses DefaultRAGTopK.
	RAGTopK int `json:"rag_top_k,omitempty"`

	// Policy constrains model selection for this call.
	Policy llm.RouterPolicy `json:"policy,omitempty"`

	// Metadata carries arbitrary caller data, echoed into the result.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// taskType returns the effective task type.
func (c TaskContext) taskType() llm.TaskType {
	if c.TaskType == "" {
		return llm.TaskTypeGeneral
	}
	return c.TaskType
}

// ragTopK returns the effective retrieval depth.
func (c TaskContext) ragTopK() int {
	if c.RAGTopK <= 0 {
		return DefaultRAGTopK
	}
	return c.RAGTopK
}

// TaskResult is the structured outcome of one task execution. It is
// immutable once built; every failure mode of the core surfaces here rather
// than as a Go error.
type TaskResult struct {
	// Success reports whether the task produced output.
	Success bool `json:"success"`

	// Output is the generated content, empty on failure.
	Output string `json:"output,omitempty"`

	// ModelUsed is the adapter that served (or was selected for) the task.
	ModelUsed string `json:"model_used,omitempty"`

	// ExecutionTime is the elapsed wall time in seconds.
	ExecutionTime float64 `json:"execution_time"`

	// Error describes the failure; empty on success. Circuit-open
	// short-circuits carry the marker text "circuit open" so callers can
	// distinguish provider outage from genuine task failure.
	Error string `json:"error,omitempty"`

	// Metadata includes RAG usage flags, token counts, and routing info.
	Metadata map[string]any `json:"metadata,omitempty"`
}
