// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments the orchestrator emits.
type Metrics struct {
	TasksTotal     *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	Selections     *prometheus.CounterVec
	ShortCircuits  *prometheus.CounterVec
	RAGQueries     *prometheus.CounterVec
	SpendCents     *prometheus.CounterVec
}

// NewMetrics creates and registers the orchestrator metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge1_orchestrator_tasks_total",
				Help: "Total number of tasks processed by the orchestrator",
			},
			[]string{"task_type", "status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forge1_orchestrator_task_duration_milliseconds",
				Help:    "Task duration in milliseconds",
				Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 30000},
			},
			[]string{"task_type"},
		),
		Selections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge1_orchestrator_model_selections_total",
				Help: "Total number of model selections by model and strategy",
			},
			[]string{"model", "strategy"},
		),
		ShortCircuits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge1_orchestrator_circuit_short_circuits_total",
				Help: "Total number of calls blocked by an open circuit",
			},
			[]string{"model"},
		),
		RAGQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge1_orchestrator_rag_queries_total",
				Help: "Total number of retrieval queries by outcome",
			},
			[]string{"outcome"},
		),
		SpendCents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge1_orchestrator_spend_cents_total",
				Help: "Total model spend in cents by tenant",
			},
			[]string{"tenant_id"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.TasksTotal,
			m.TaskDuration,
			m.Selections,
			m.ShortCircuits,
			m.RAGQueries,
			m.SpendCents,
		)
	}

	return m
}
