// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

// Package cost provides model pricing lookup and per-tenant budget tracking
// for the routing core.
package cost

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
)

// ModelPricing contains pricing per 1K tokens for a model, in cents.
type ModelPricing struct {
	InputPer1KCents  float64 `json:"input_per_1k_cents"`
	OutputPer1KCents float64 `json:"output_per_1k_cents"`
}

// Blended returns a single per-1K figure assuming the typical 25% input /
// 75% output token split of completion traffic.
func (m ModelPricing) Blended() float64 {
	return 0.25*m.InputPer1KCents + 0.75*m.OutputPer1KCents
}

// PricingTable holds pricing for all providers and models. The wildcard
// model "*" is the per-provider fallback for unknown models.
type PricingTable struct {
	Providers map[string]map[string]ModelPricing `json:"providers"`
	mu        sync.RWMutex
}

// DefaultPricing contains default pricing for common providers and models,
// in cents per 1K tokens.
var DefaultPricing = map[string]map[string]ModelPricing{
	"anthropic": {
		"claude-opus-4":              {InputPer1KCents: 1.5, OutputPer1KCents: 7.5},
		"claude-sonnet-4":            {InputPer1KCents: 0.3, OutputPer1KCents: 1.5},
		"claude-3-5-sonnet-20241022": {InputPer1KCents: 0.3, OutputPer1KCents: 1.5},
		"claude-3-5-haiku-20241022":  {InputPer1KCents: 0.08, OutputPer1KCents: 0.4},
		"claude-3-haiku-20240307":    {InputPer1KCents: 0.025, OutputPer1KCents: 0.125},
		"*":                          {InputPer1KCents: 0.3, OutputPer1KCents: 1.5},
	},
	"openai": {
		"gpt-4o":        {InputPer1KCents: 0.25, OutputPer1KCents: 1.0},
		"gpt-4o-mini":   {InputPer1KCents: 0.015, OutputPer1KCents: 0.06},
		"gpt-4-turbo":   {InputPer1KCents: 1.0, OutputPer1KCents: 3.0},
		"gpt-3.5-turbo": {InputPer1KCents: 0.05, OutputPer1KCents: 0.15},
		"o1-mini":       {InputPer1KCents: 0.3, OutputPer1KCents: 1.2},
		"*":             {InputPer1KCents: 1.0, OutputPer1KCents: 3.0},
	},
	"bedrock": {
		"anthropic.claude-3-5-sonnet-20241022-v2:0": {InputPer1KCents: 0.3, OutputPer1KCents: 1.5},
		"anthropic.claude-3-haiku-20240307-v1:0":    {InputPer1KCents: 0.025, OutputPer1KCents: 0.125},
		"amazon.titan-text-express-v1":              {InputPer1KCents: 0.02, OutputPer1KCents: 0.06},
		"meta.llama3-70b-instruct-v1:0":             {InputPer1KCents: 0.265, OutputPer1KCents: 0.35},
		"*":                                         {InputPer1KCents: 0.3, OutputPer1KCents: 1.5},
	},
	"ollama": {
		// Self-hosted = free (compute cost not tracked here)
		"*": {InputPer1KCents: 0, OutputPer1KCents: 0},
	},
}

// NewPricingTable creates a pricing table seeded with defaults.
func NewPricingTable() *PricingTable {
	return &PricingTable{
		Providers: copyProviders(DefaultPricing),
	}
}

// LoadPricingFromEnv loads custom pricing from the FORGE1_PRICING_CONFIG
// env var (JSON, same shape as the table) merged over defaults.
func LoadPricingFromEnv() *PricingTable {
	table := NewPricingTable()

	pricingJSON := os.Getenv("FORGE1_PRICING_CONFIG")
	if pricingJSON != "" {
		var custom PricingTable
		if err := json.Unmarshal([]byte(pricingJSON), &custom); err == nil {
			table.Merge(custom.Providers)
		}
	}

	return table
}

// Merge overlays custom pricing on top of the current table.
func (p *PricingTable) Merge(providers map[string]map[string]ModelPricing) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for provider, models := range providers {
		if p.Providers[provider] == nil {
			p.Providers[provider] = make(map[string]ModelPricing)
		}
		for model, pricing := range models {
			p.Providers[provider][model] = pricing
		}
	}
}

// Pricing returns pricing for a provider/model pair, falling back to the
// provider wildcard. The second return value is false when the provider is
// unknown entirely.
func (p *PricingTable) Pricing(provider, model string) (ModelPricing, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	providerPricing, ok := p.Providers[strings.ToLower(provider)]
	if !ok {
		return ModelPricing{}, false
	}

	pricing, ok := providerPricing[model]
	if !ok {
		pricing, ok = providerPricing["*"]
	}
	return pricing, ok
}

// CalculateCostCents computes the cost of a finished request in cents.
func (p *PricingTable) CalculateCostCents(provider, model string, tokensIn, tokensOut int) float64 {
	pricing, ok := p.Pricing(provider, model)
	if !ok {
		return 0
	}

	inputCost := float64(tokensIn) / 1000.0 * pricing.InputPer1KCents
	outputCost := float64(tokensOut) / 1000.0 * pricing.OutputPer1KCents
	return inputCost + outputCost
}

// CostPer1KCents implements the router's PriceLookup over adapter model
// names of the form "{provider}-{model}". Unknown names cost zero, which
// ranks them as free rather than excluding them.
func (p *PricingTable) CostPer1KCents(modelName string) float64 {
	provider, model, ok := strings.Cut(modelName, "-")
	if !ok {
		return 0
	}

	pricing, found := p.Pricing(provider, model)
	if !found {
		return 0
	}
	return pricing.Blended()
}

// SetModelPricing sets pricing for a specific model.
func (p *PricingTable) SetModelPricing(provider, model string, pricing ModelPricing) {
	p.mu.Lock()
	defer p.mu.Unlock()

	provider = strings.ToLower(provider)
	if p.Providers[provider] == nil {
		p.Providers[provider] = make(map[string]ModelPricing)
	}
	p.Providers[provider][model] = pricing
}

func copyProviders(src map[string]map[string]ModelPricing) map[string]map[string]ModelPricing {
	dst := make(map[string]map[string]ModelPricing)
	for provider, models := range src {
		dst[provider] = make(map[string]ModelPricing)
		for model, pricing := range models {
			dst[provider][model] = pricing
		}
	}
	return dst
}
