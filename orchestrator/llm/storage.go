// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"database/sql"
	"fmt"
)

// Storage persists bandit arm statistics so adaptive routing state survives
// restarts. The in-memory BanditStore stays authoritative while the process
// runs; Storage is a snapshot/restore boundary, not a hot path.
type Storage interface {
	// SaveArms upserts the given arm statistics.
	SaveArms(ctx context.Context, arms []ArmStats) error

	// LoadArms returns all persisted arm statistics.
	LoadArms(ctx context.Context) ([]ArmStats, error)
}

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a PostgreSQL-backed bandit storage.
// Schema (bandit_arms) is provisioned by the external migrations layer.
func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// SaveArms upserts arm statistics keyed by (tenant_id, task_type, model_name).
func (s *PostgresStorage) SaveArms(ctx context.Context, arms []ArmStats) error {
	if len(arms) == 0 {
		return nil
	}

	query := `
		INSERT INTO bandit_arms (
			tenant_id, task_type, model_name,
			successes, failures, avg_latency_ms, avg_cost_cents
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, task_type, model_name) DO UPDATE SET
			successes = EXCLUDED.successes,
			failures = EXCLUDED.failures,
			avg_latency_ms = EXCLUDED.avg_latency_ms,
			avg_cost_cents = EXCLUDED.avg_cost_cents,
			updated_at = NOW()
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bandit snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, arm := range arms {
		if _, err := tx.ExecContext(ctx, query,
			arm.TenantID,
			arm.TaskType,
			arm.ModelName,
			arm.Successes,
			arm.Failures,
			arm.AvgLatencyMs,
			arm.AvgCostCents,
		); err != nil {
			return fmt.Errorf("failed to save arm %s/%s/%s: %w", arm.TenantID, arm.TaskType, arm.ModelName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bandit snapshot: %w", err)
	}

	return nil
}

// LoadArms returns all persisted arm statistics.
func (s *PostgresStorage) LoadArms(ctx context.Context) ([]ArmStats, error) {
	query := `
		SELECT tenant_id, task_type, model_name,
		       successes, failures, avg_latency_ms, avg_cost_cents
		FROM bandit_arms
		ORDER BY tenant_id, task_type, model_name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load bandit arms: %w", err)
	}
	defer rows.Close()

	var arms []ArmStats
	for rows.Next() {
		var arm ArmStats
		if err := rows.Scan(
			&arm.TenantID,
			&arm.TaskType,
			&arm.ModelName,
			&arm.Successes,
			&arm.Failures,
			&arm.AvgLatencyMs,
			&arm.AvgCostCents,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bandit arm: %w", err)
		}
		arms = append(arms, arm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bandit arms: %w", err)
	}

	return arms, nil
}

// Ensure PostgresStorage implements Storage.
var _ Storage = (*PostgresStorage)(nil)
