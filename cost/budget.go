// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package cost

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// BudgetLedger tracks per-tenant daily spend in cents. The Redis-backed
// implementation shares the ledger across replicas; spend checks fail open
// when Redis is unreachable so a ledger outage never blocks task traffic.
type BudgetLedger interface {
	// Charge adds cents to the tenant's spend for the current UTC day.
	Charge(ctx context.Context, tenantID string, cents float64) error

	// SpentToday returns the tenant's spend for the current UTC day.
	SpentToday(ctx context.Context, tenantID string) (float64, error)
}

// RedisBudgetLedger implements BudgetLedger on Redis.
type RedisBudgetLedger struct {
	client *redis.Client
	logger *log.Logger
	now    func() time.Time
}

// NewRedisBudgetLedger creates a ledger from a Redis URL
// (format: redis://host:port or redis://host:port/db).
func NewRedisBudgetLedger(redisURL string, logger *log.Logger) (*RedisBudgetLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.Default()
	}

	return &RedisBudgetLedger{
		client: client,
		logger: logger,
		now:    time.Now,
	}, nil
}

// NewRedisBudgetLedgerWithClient wraps an existing client, used by tests.
func NewRedisBudgetLedgerWithClient(client *redis.Client, logger *log.Logger) *RedisBudgetLedger {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisBudgetLedger{client: client, logger: logger, now: time.Now}
}

// key builds the daily spend key for a tenant.
func (l *RedisBudgetLedger) key(tenantID string) string {
	return fmt.Sprintf("budget:%s:%s", tenantID, l.now().UTC().Format("20060102"))
}

// Charge adds cents to the tenant's daily spend. The key expires after two
// days so stale ledger entries clean themselves up.
func (l *RedisBudgetLedger) Charge(ctx context.Context, tenantID string, cents float64) error {
	key := l.key(tenantID)

	pipe := l.client.Pipeline()
	pipe.IncrByFloat(ctx, key, cents)
	pipe.Expire(ctx, key, 48*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Printf("Warning: budget charge failed for %s: %v", tenantID, err)
		return fmt.Errorf("failed to charge budget: %w", err)
	}
	return nil
}

// SpentToday returns the tenant's daily spend. Redis errors fail open,
// reporting zero spend.
func (l *RedisBudgetLedger) SpentToday(ctx context.Context, tenantID string) (float64, error) {
	spent, err := l.client.Get(ctx, l.key(tenantID)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		l.logger.Printf("Warning: budget lookup failed for %s: %v (failing open)", tenantID, err)
		return 0, nil
	}
	return spent, nil
}

// Close releases the Redis connection.
func (l *RedisBudgetLedger) Close() error {
	return l.client.Close()
}

// MemoryBudgetLedger is an in-process fallback used when no Redis URL is
// configured. Spend resets on restart and is not shared across replicas.
type MemoryBudgetLedger struct {
	spend map[string]float64
	day   string
	now   func() time.Time
	mu    sync.Mutex
}

// NewMemoryBudgetLedger creates an in-memory ledger.
func NewMemoryBudgetLedger() *MemoryBudgetLedger {
	return &MemoryBudgetLedger{
		spend: make(map[string]float64),
		now:   time.Now,
	}
}

// Charge implements BudgetLedger.
func (l *MemoryBudgetLedger) Charge(ctx context.Context, tenantID string, cents float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	l.spend[tenantID] += cents
	return nil
}

// SpentToday implements BudgetLedger.
func (l *MemoryBudgetLedger) SpentToday(ctx context.Context, tenantID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.spend[tenantID], nil
}

// rollover clears the ledger when the UTC day changes.
// Callers must hold l.mu.
func (l *MemoryBudgetLedger) rollover() {
	day := l.now().UTC().Format("20060102")
	if day != l.day {
		l.day = day
		l.spend = make(map[string]float64)
	}
}

// Ensure both ledgers implement BudgetLedger.
var (
	_ BudgetLedger = (*RedisBudgetLedger)(nil)
	_ BudgetLedger = (*MemoryBudgetLedger)(nil)
)
