// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the Forge1 Orchestrator service.
//
// The Orchestrator routes tasks to LLM provider adapters using adaptive
// (Thompson sampling) or deterministic (cost-based) selection, with
// per-model circuit breaking, policy-aware filtering, optional retrieval
// augmentation, and per-tenant cost accounting.
//
// Usage:
//
//	./orchestrator
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8081)
//	FORGE1_CONFIG_FILE - YAML config file path (optional)
//	ROUTING_STRATEGY - "thompson" or "cost" (default: thompson)
//	DATABASE_URL - PostgreSQL connection string for bandit persistence (optional)
//	REDIS_URL - Redis connection string for budget tracking (optional)
//	RAG_ENDPOINT - retrieval service URL (optional)
//	ANTHROPIC_API_KEY - Anthropic API key (optional)
//	OPENAI_API_KEY - OpenAI API key (optional)
//	BEDROCK_REGION - AWS Bedrock region (optional)
package main

import (
	"forge1/platform/orchestrator"
)

func main() {
	orchestrator.Run()
}
