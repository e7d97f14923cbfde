// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator coordinates task execution for Forge1: optional
// retrieval augmentation, model selection through a pluggable router,
// circuit-breaker-protected adapter invocation, and outcome accounting.
//
// The orchestrator is the error boundary of the routing core: selection,
// circuit-open, invocation, and retrieval failures all surface as a
// TaskResult with Success=false, never as a Go error.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"forge1/platform/cost"
	"forge1/platform/orchestrator/llm"
	"forge1/platform/shared/logger"
)

// Orchestrator is the single entry point for running tasks. Construct one
// at service startup and share it across request handlers; all mutable
// state it touches (breaker, bandit arms, budget ledger) is synchronized.
type Orchestrator struct {
	registry  *llm.Registry
	router    llm.Router
	breaker   *llm.CircuitBreaker
	retriever Retriever
	pricing   *cost.PricingTable
	ledger    cost.BudgetLedger
	metrics   *Metrics
	log       *logger.Logger
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithRetriever sets the RAG collaborator. Without one, UseRAG requests
// degrade to plain execution.
func WithRetriever(r Retriever) Option {
	return func(o *Orchestrator) {
		o.retriever = r
	}
}

// WithPricing sets the pricing table used for cost accounting.
func WithPricing(p *cost.PricingTable) Option {
	return func(o *Orchestrator) {
		o.pricing = p
	}
}

// WithBudgetLedger sets the daily spend ledger.
func WithBudgetLedger(l cost.BudgetLedger) Option {
	return func(o *Orchestrator) {
		o.ledger = l
	}
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// New creates an Orchestrator over the given registry, router, and breaker.
func New(registry *llm.Registry, router llm.Router, breaker *llm.CircuitBreaker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		router:   router,
		breaker:  breaker,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.registry == nil {
		o.registry = llm.NewRegistry()
	}
	if o.breaker == nil {
		o.breaker = llm.NewCircuitBreaker()
	}
	if o.router == nil {
		o.router = llm.NewThompsonRouter(llm.NewBanditStore())
	}
	if o.log == nil {
		o.log = logger.New("orchestrator")
	}

	return o
}

// Registry returns the adapter registry.
func (o *Orchestrator) Registry() *llm.Registry {
	return o.registry
}

// Router returns the configured selection strategy.
func (o *Orchestrator) Router() llm.Router {
	return o.router
}

// Breaker returns the shared circuit breaker.
func (o *Orchestrator) Breaker() *llm.CircuitBreaker {
	return o.breaker
}

// ExecuteTask runs one task end to end and always returns a structured
// result. Adapter, selection, and retrieval failures are reported in the
// result, never raised.
func (o *Orchestrator) ExecuteTask(ctx context.Context, taskText string, tc TaskContext) *TaskResult {
	start := time.Now()
	requestID := uuid.NewString()
	taskType := tc.taskType()

	meta := map[string]any{
		"request_id":           requestID,
		"task_type":            string(taskType),
		"rag_used":             false,
		"retrieved_docs_count": 0,
	}

	// Retrieval is best-effort enrichment: any failure degrades to the
	// bare prompt and must never fail the task.
	prompt := taskText
	if tc.UseRAG && o.retriever != nil {
		docs, err := o.retriever.Query(ctx, taskText, tc.ragTopK())
		switch {
		case err != nil:
			o.countRAG("error")
			o.log.Warn(tc.TenantID, requestID, "retrieval failed, continuing without augmentation", map[string]interface{}{
				"error": err.Error(),
			})
		case len(docs) > 0:
			o.countRAG("hit")
			prompt = buildAugmentedPrompt(taskText, docs)
			meta["rag_used"] = true
			meta["retrieved_docs_count"] = len(docs)
		default:
			o.countRAG("empty")
		}
	}

	candidates := o.registry.AdaptersForTask(taskType)
	if len(candidates) == 0 {
		return o.fail(tc, taskType, meta, start,
			fmt.Sprintf("no adapter available for task type %q", taskType), "")
	}

	// Daily budget admission happens before selection so an exhausted
	// tenant spends nothing on a doomed call.
	if tc.Policy.MaxCentsPerDay > 0 && o.ledger != nil {
		spent, _ := o.ledger.SpentToday(ctx, tc.TenantID)
		if spent >= tc.Policy.MaxCentsPerDay {
			return o.fail(tc, taskType, meta, start,
				fmt.Sprintf("daily budget exhausted: %.2f of %.2f cents spent", spent, tc.Policy.MaxCentsPerDay), "")
		}
	}

	selection, err := o.router.Select(tc.TenantID, taskType, candidates, tc.Policy)
	if err != nil {
		return o.fail(tc, taskType, meta, start, err.Error(), "")
	}

	adapter, ok := o.registry.Adapter(selection.Model)
	if !ok {
		return o.fail(tc, taskType, meta, start,
			fmt.Sprintf("selected model %q is no longer registered", selection.Model), selection.Model)
	}

	if o.metrics != nil {
		o.metrics.Selections.WithLabelValues(selection.Model, selection.Strategy).Inc()
	}
	meta["strategy"] = selection.Strategy
	meta["selection_score"] = selection.Score

	// The breaker already reflects prior failures; a blocked call is not
	// recorded as another one.
	if !o.breaker.Allow(selection.Model) {
		if o.metrics != nil {
			o.metrics.ShortCircuits.WithLabelValues(selection.Model).Inc()
		}
		return o.fail(tc, taskType, meta, start,
			fmt.Sprintf("circuit open for model %q", selection.Model), selection.Model)
	}

	genOpts := llm.GenerateOptions{
		MaxTokens: tc.Policy.MaxTokensPerRun,
		Metadata:  tc.Metadata,
	}

	// The adapter call is the sole suspension point; no router or breaker
	// lock is held across it. Accounting happens strictly afterwards.
	genStart := time.Now()
	result, genErr := adapter.Generate(ctx, prompt, genOpts)
	latencyMs := float64(time.Since(genStart).Milliseconds())

	if genErr != nil {
		o.breaker.RecordFailure(selection.Model)
		o.router.RecordOutcome(tc.TenantID, taskType, selection.Model, false, latencyMs, 0)
		return o.fail(tc, taskType, meta, start, genErr.Error(), selection.Model)
	}

	costCents := o.costFor(selection.Model, result)

	o.breaker.RecordSuccess(selection.Model)
	o.router.RecordOutcome(tc.TenantID, taskType, selection.Model, true, latencyMs, costCents)
	o.chargeBudget(ctx, tc.TenantID, costCents)

	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.TasksTotal.WithLabelValues(string(taskType), "success").Inc()
		o.metrics.TaskDuration.WithLabelValues(string(taskType)).Observe(float64(elapsed.Milliseconds()))
	}

	meta["prompt_tokens"] = result.PromptTokens
	meta["completion_tokens"] = result.CompletionTokens
	meta["cost_cents"] = costCents

	o.log.InfoWithDuration(tc.TenantID, requestID, "task completed", float64(elapsed.Milliseconds()), map[string]interface{}{
		"model":      selection.Model,
		"task_type":  string(taskType),
		"cost_cents": costCents,
	})

	return &TaskResult{
		Success:       true,
		Output:        result.Content,
		ModelUsed:     selection.Model,
		ExecutionTime: elapsed.Seconds(),
		Metadata:      meta,
	}
}

// fail builds a failed result and records the task-level metrics.
func (o *Orchestrator) fail(tc TaskContext, taskType llm.TaskType, meta map[string]any, start time.Time, errText, model string) *TaskResult {
	elapsed := time.Since(start)

	if o.metrics != nil {
		o.metrics.TasksTotal.WithLabelValues(string(taskType), "failure").Inc()
		o.metrics.TaskDuration.WithLabelValues(string(taskType)).Observe(float64(elapsed.Milliseconds()))
	}

	requestID, _ := meta["request_id"].(string)
	o.log.Error(tc.TenantID, requestID, "task failed", map[string]interface{}{
		"error":     errText,
		"model":     model,
		"task_type": string(taskType),
	})

	return &TaskResult{
		Success:       false,
		ModelUsed:     model,
		ExecutionTime: elapsed.Seconds(),
		Error:         errText,
		Metadata:      meta,
	}
}

// costFor computes the invocation cost in cents from the pricing table.
// Adapter names follow "{provider}-{model}".
func (o *Orchestrator) costFor(modelName string, result *llm.GenerateResult) float64 {
	if o.pricing == nil {
		return 0
	}
	provider, model, ok := strings.Cut(modelName, "-")
	if !ok {
		return 0
	}
	return o.pricing.CalculateCostCents(provider, model, result.PromptTokens, result.CompletionTokens)
}

// chargeBudget records spend in the ledger, best effort.
func (o *Orchestrator) chargeBudget(ctx context.Context, tenantID string, costCents float64) {
	if costCents <= 0 {
		return
	}
	if o.metrics != nil {
		o.metrics.SpendCents.WithLabelValues(tenantID).Add(costCents)
	}
	if o.ledger != nil {
		if err := o.ledger.Charge(ctx, tenantID, costCents); err != nil {
			o.log.Warn(tenantID, "", "failed to record spend", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// countRAG increments the retrieval outcome counter.
func (o *Orchestrator) countRAG(outcome string) {
	if o.metrics != nil {
		o.metrics.RAGQueries.WithLabelValues(outcome).Inc()
	}
}
