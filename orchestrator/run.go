// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"forge1/platform/config"
	"forge1/platform/cost"
	"forge1/platform/orchestrator/llm"
	"forge1/platform/orchestrator/llm/anthropic"
	"forge1/platform/orchestrator/llm/bedrock"
	"forge1/platform/orchestrator/llm/openai"
	"forge1/platform/shared/logger"
)

// taskRequest is the wire form of a task submission.
type taskRequest struct {
	Task    string      `json:"task"`
	Context TaskContext `json:"context"`
}

// server wires the orchestrator into HTTP handlers and owns the
// background snapshot loop.
type server struct {
	orch    *Orchestrator
	storage llm.Storage
	cfg     *config.Config
	log     *logger.Logger
}

// Run is the exported entry point for the orchestrator service.
//
// It loads configuration, registers provider adapters, restores bandit
// state from storage, sets up HTTP routes, and serves until SIGINT or
// SIGTERM. The function blocks until shutdown completes.
//
// Environment variables used:
//   - PORT: HTTP server port (default: 8081)
//   - FORGE1_CONFIG_FILE: YAML config file path (optional)
//   - ROUTING_STRATEGY: "thompson" or "cost" (default: thompson)
//   - DATABASE_URL: PostgreSQL connection string for bandit persistence (optional)
//   - REDIS_URL: Redis connection string for budget tracking (optional)
//   - RAG_ENDPOINT: retrieval service URL (optional)
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY: provider credentials
//   - BEDROCK_REGION, BEDROCK_MODEL: AWS Bedrock settings (optional)
//   - FORGE1_PRICING_CONFIG: pricing override file (optional)
func Run() {
	svcLog := logger.New("orchestrator")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	srv, err := newServer(cfg, svcLog)
	if err != nil {
		log.Fatalf("failed to initialize orchestrator: %v", err)
	}

	r := mux.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	r.HandleFunc("/health", srv.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/v1/tasks", srv.executeTaskHandler).Methods("POST")
	r.HandleFunc("/api/v1/models", srv.listModelsHandler).Methods("GET")
	r.HandleFunc("/api/v1/bandit/arms", srv.banditArmsHandler).Methods("GET")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if srv.storage != nil && cfg.Routing.SnapshotSeconds > 0 {
		go srv.snapshotLoop(ctx)
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		svcLog.Info("", "", "orchestrator listening", map[string]interface{}{
			"port":     cfg.Server.Port,
			"strategy": cfg.Routing.Strategy,
		})
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		svcLog.Error("", "", "shutdown error", map[string]interface{}{"error": err.Error()})
	}
	srv.snapshot(shutdownCtx)
	svcLog.Info("", "", "orchestrator stopped", nil)
}

func newServer(cfg *config.Config, svcLog *logger.Logger) (*server, error) {
	registry := llm.NewRegistry()
	if err := registerAdapters(registry, cfg.Adapters); err != nil {
		return nil, err
	}
	if registry.Count() == 0 {
		svcLog.Warn("", "", "no adapters registered, all tasks will fail", nil)
	}

	breaker := llm.NewCircuitBreaker(
		llm.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		llm.WithCooldown(cfg.BreakerCooldown()),
	)

	pricing := cost.LoadPricingFromEnv()

	var storage llm.Storage
	store := llm.NewBanditStore()
	if cfg.Storage.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			svcLog.Warn("", "", "database unreachable, bandit persistence disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			storage = llm.NewPostgresStorage(db)
			arms, err := storage.LoadArms(context.Background())
			if err != nil {
				svcLog.Warn("", "", "failed to restore bandit state", map[string]interface{}{
					"error": err.Error(),
				})
			} else if len(arms) > 0 {
				store.Restore(arms)
				svcLog.Info("", "", "bandit state restored", map[string]interface{}{
					"arms": len(arms),
				})
			}
		}
	}

	var router llm.Router
	switch cfg.Routing.Strategy {
	case "cost":
		router = llm.NewCostRouter(pricing, breaker)
	default:
		router = llm.NewThompsonRouter(store)
	}

	opts := []Option{
		WithPricing(pricing),
		WithMetrics(NewMetrics(prometheus.DefaultRegisterer)),
		WithLogger(svcLog),
	}

	if cfg.Storage.RedisURL != "" {
		ledger, err := cost.NewRedisBudgetLedger(cfg.Storage.RedisURL, log.New(os.Stderr, "[budget] ", log.LstdFlags))
		if err != nil {
			svcLog.Warn("", "", "redis unreachable, budget tracking disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			opts = append(opts, WithBudgetLedger(ledger))
		}
	}

	if cfg.RAG.Endpoint != "" {
		opts = append(opts, WithRetriever(NewHTTPRetriever(cfg.RAG.Endpoint, cfg.RAGTimeout())))
	}

	return &server{
		orch:    New(registry, router, breaker, opts...),
		storage: storage,
		cfg:     cfg,
		log:     svcLog,
	}, nil
}

// registerAdapters builds and registers one adapter per config entry.
// With no entries, adapters are registered from whichever provider
// credentials are present in the environment.
func registerAdapters(registry *llm.Registry, entries []config.AdapterConfig) error {
	if len(entries) == 0 {
		entries = adaptersFromEnv()
	}

	for i, entry := range entries {
		caps, err := parseCapabilities(entry.Capabilities)
		if err != nil {
			return fmt.Errorf("adapters[%d]: %w", i, err)
		}

		switch entry.Provider {
		case "anthropic":
			keyEnv := entry.APIKeyEnv
			if keyEnv == "" {
				keyEnv = "ANTHROPIC_API_KEY"
			}
			a, err := anthropic.New(anthropic.Config{
				APIKey:       os.Getenv(keyEnv),
				Model:        entry.Model,
				Capabilities: caps,
			})
			if err != nil {
				return fmt.Errorf("adapters[%d]: %w", i, err)
			}
			registry.Register(a)
		case "openai":
			keyEnv := entry.APIKeyEnv
			if keyEnv == "" {
				keyEnv = "OPENAI_API_KEY"
			}
			a, err := openai.New(openai.Config{
				APIKey:       os.Getenv(keyEnv),
				Model:        entry.Model,
				Capabilities: caps,
			})
			if err != nil {
				return fmt.Errorf("adapters[%d]: %w", i, err)
			}
			registry.Register(a)
		case "bedrock":
			a, err := bedrock.New(context.Background(), bedrock.Config{
				Region:       os.Getenv("BEDROCK_REGION"),
				Model:        entry.Model,
				Capabilities: caps,
			})
			if err != nil {
				return fmt.Errorf("adapters[%d]: %w", i, err)
			}
			registry.Register(a)
		}
	}
	return nil
}

// adaptersFromEnv synthesizes adapter entries from provider credentials.
func adaptersFromEnv() []config.AdapterConfig {
	var entries []config.AdapterConfig
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		entries = append(entries, config.AdapterConfig{Provider: "anthropic"})
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		entries = append(entries, config.AdapterConfig{Provider: "openai"})
	}
	if os.Getenv("BEDROCK_REGION") != "" {
		entries = append(entries, config.AdapterConfig{
			Provider: "bedrock",
			Model:    os.Getenv("BEDROCK_MODEL"),
		})
	}
	return entries
}

func parseCapabilities(names []string) ([]llm.TaskType, error) {
	caps := make([]llm.TaskType, 0, len(names))
	for _, name := range names {
		if !llm.IsValidTaskType(name) {
			return nil, fmt.Errorf("unknown task type %q", name)
		}
		caps = append(caps, llm.TaskType(name))
	}
	return caps, nil
}

// snapshotLoop periodically persists bandit state until ctx is done.
func (s *server) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SnapshotInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.snapshot(ctx)
		}
	}
}

// snapshot persists bandit state if a Thompson router with storage is
// in play.
func (s *server) snapshot(ctx context.Context) {
	if s.storage == nil {
		return
	}
	tr, ok := s.orch.Router().(*llm.ThompsonRouter)
	if !ok {
		return
	}
	arms := tr.Store().Snapshot()
	if len(arms) == 0 {
		return
	}
	if err := s.storage.SaveArms(ctx, arms); err != nil {
		s.log.Warn("", "", "failed to persist bandit state", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *server) executeTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Task == "" {
		sendErrorResponse(w, "task text is required", http.StatusBadRequest)
		return
	}

	result := s.orch.ExecuteTask(r.Context(), req.Task, req.Context)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func (s *server) listModelsHandler(w http.ResponseWriter, r *http.Request) {
	names := s.orch.Registry().ModelNames()
	models := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		models = append(models, map[string]interface{}{
			"model":                name,
			"circuit_state":        s.orch.Breaker().State(name).String(),
			"consecutive_failures": s.orch.Breaker().ConsecutiveFailures(name),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"models": models,
	}); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func (s *server) banditArmsHandler(w http.ResponseWriter, r *http.Request) {
	var arms []llm.ArmStats
	if tr, ok := s.orch.Router().(*llm.ThompsonRouter); ok {
		arms = tr.Store().Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"strategy": s.orch.Router().Strategy(),
		"arms":     arms,
	}); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"service":   "forge1-orchestrator",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC(),
		"components": map[string]interface{}{
			"registry":          s.orch.Registry().Count() > 0,
			"routing_strategy":  s.orch.Router().Strategy(),
			"bandit_persistent": s.storage != nil,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func sendErrorResponse(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	}); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}
