// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

// Package config loads service configuration from a YAML file with
// environment variable overrides. File settings win over defaults;
// environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default service settings.
const (
	DefaultPort             = "8081"
	DefaultStrategy         = "thompson"
	DefaultFailureThreshold = 2
	DefaultCooldownSeconds  = 30
	DefaultSnapshotSeconds  = 60
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Routing  RoutingConfig   `yaml:"routing"`
	Breaker  BreakerConfig   `yaml:"breaker"`
	Adapters []AdapterConfig `yaml:"adapters"`
	Storage  StorageConfig   `yaml:"storage"`
	RAG      RAGConfig       `yaml:"rag"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// RoutingConfig selects and tunes the routing strategy.
type RoutingConfig struct {
	// Strategy is "thompson" or "cost".
	Strategy string `yaml:"strategy"`
	// SnapshotSeconds is the interval between bandit state snapshots
	// to storage. Zero disables periodic snapshots.
	SnapshotSeconds int `yaml:"snapshot_seconds"`
}

// BreakerConfig tunes the per-model circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	CooldownSeconds  int `yaml:"cooldown_seconds"`
}

// AdapterConfig declares one provider adapter to register at startup.
type AdapterConfig struct {
	// Provider is "anthropic", "openai", or "bedrock".
	Provider string `yaml:"provider"`
	// Model is the provider-native model identifier. Empty uses the
	// provider default.
	Model string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the API key.
	// Defaults to ANTHROPIC_API_KEY / OPENAI_API_KEY per provider.
	APIKeyEnv string `yaml:"api_key_env"`
	// Capabilities restricts the task types this adapter serves.
	// Empty means all task types.
	Capabilities []string `yaml:"capabilities"`
}

// StorageConfig holds persistence endpoints. Both are optional; the
// service runs with in-memory state when they are unset.
type StorageConfig struct {
	// DatabaseURL is the PostgreSQL connection string for bandit
	// state persistence.
	DatabaseURL string `yaml:"database_url"`
	// RedisURL is the Redis connection string for the daily budget
	// ledger.
	RedisURL string `yaml:"redis_url"`
}

// RAGConfig holds the retrieval service settings.
type RAGConfig struct {
	// Endpoint is the retrieval service URL. Empty disables RAG.
	Endpoint string `yaml:"endpoint"`
	// TimeoutSeconds bounds each retrieval call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Load reads configuration from the file named by FORGE1_CONFIG_FILE
// (if set), then applies environment overrides and defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("FORGE1_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document and applies defaults, without touching
// the environment. Intended for tests.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("ROUTING_STRATEGY"); v != "" {
		c.Routing.Strategy = v
	}
	if v := os.Getenv("BREAKER_FAILURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Breaker.FailureThreshold = n
		}
	}
	if v := os.Getenv("BREAKER_COOLDOWN_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Breaker.CooldownSeconds = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("RAG_ENDPOINT"); v != "" {
		c.RAG.Endpoint = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Routing.Strategy == "" {
		c.Routing.Strategy = DefaultStrategy
	}
	if c.Routing.SnapshotSeconds == 0 {
		c.Routing.SnapshotSeconds = DefaultSnapshotSeconds
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = DefaultFailureThreshold
	}
	if c.Breaker.CooldownSeconds == 0 {
		c.Breaker.CooldownSeconds = DefaultCooldownSeconds
	}
	if c.RAG.TimeoutSeconds == 0 {
		c.RAG.TimeoutSeconds = 10
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	switch c.Routing.Strategy {
	case "thompson", "cost":
	default:
		return fmt.Errorf("unknown routing strategy %q", c.Routing.Strategy)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure_threshold must be at least 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.CooldownSeconds < 1 {
		return fmt.Errorf("breaker cooldown_seconds must be at least 1, got %d", c.Breaker.CooldownSeconds)
	}
	for i, a := range c.Adapters {
		switch a.Provider {
		case "anthropic", "openai", "bedrock":
		default:
			return fmt.Errorf("adapters[%d]: unknown provider %q", i, a.Provider)
		}
	}
	return nil
}

// BreakerCooldown returns the cooldown as a duration.
func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownSeconds) * time.Second
}

// RAGTimeout returns the retrieval timeout as a duration.
func (c *Config) RAGTimeout() time.Duration {
	return time.Duration(c.RAG.TimeoutSeconds) * time.Second
}

// SnapshotInterval returns the bandit snapshot interval as a duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Routing.SnapshotSeconds) * time.Second
}
