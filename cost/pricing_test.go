// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package cost

import (
	"math"
	"testing"
)

func TestModelPricingBlended(t *testing.T) {
	p := ModelPricing{InputPer1KCents: 0.4, OutputPer1KCents: 2.0}

	// 25% input, 75% output weighting.
	want := 0.25*0.4 + 0.75*2.0
	if got := p.Blended(); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected blended %f, got %f", want, got)
	}
}

func TestPricingTableLookup(t *testing.T) {
	table := NewPricingTable()

	tests := []struct {
		name     string
		provider string
		model    string
		found    bool
	}{
		{"known model", "anthropic", "claude-3-5-sonnet-20241022", true},
		{"unknown model falls back to wildcard", "anthropic", "claude-99", true},
		{"provider is case-insensitive", "Anthropic", "claude-3-5-sonnet-20241022", true},
		{"unknown provider", "mystery", "anything", false},
		{"ollama is free", "ollama", "llama3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := table.Pricing(tt.provider, tt.model)
			if ok != tt.found {
				t.Errorf("expected found=%v, got %v", tt.found, ok)
			}
		})
	}

	wildcard, _ := table.Pricing("anthropic", "claude-99")
	known, _ := table.Pricing("anthropic", "*")
	if wildcard != known {
		t.Error("unknown model should resolve to the provider wildcard")
	}
}

func TestCalculateCostCents(t *testing.T) {
	table := NewPricingTable()
	table.SetModelPricing("testprov", "m", ModelPricing{InputPer1KCents: 1.0, OutputPer1KCents: 4.0})

	// 500 input at 1c/1K + 250 output at 4c/1K.
	want := 0.5 + 1.0
	got := table.CalculateCostCents("testprov", "m", 500, 250)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f cents, got %f", want, got)
	}

	if got := table.CalculateCostCents("unknown", "m", 1000, 1000); got != 0 {
		t.Errorf("unknown provider should cost zero, got %f", got)
	}

	if got := table.CalculateCostCents("ollama", "llama3", 100000, 100000); got != 0 {
		t.Errorf("self-hosted models should cost zero, got %f", got)
	}
}

func TestCostPer1KCentsParsesAdapterNames(t *testing.T) {
	table := NewPricingTable()
	table.SetModelPricing("openai", "gpt-test", ModelPricing{InputPer1KCents: 2.0, OutputPer1KCents: 2.0})

	// Adapter names are "{provider}-{model}"; the first dash splits them.
	if got := table.CostPer1KCents("openai-gpt-test"); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("expected 2.0, got %f", got)
	}

	// Names without a provider prefix rank as free.
	if got := table.CostPer1KCents("nodash"); got != 0 {
		t.Errorf("expected 0 for unparseable name, got %f", got)
	}

	// Unknown providers rank as free rather than being excluded.
	if got := table.CostPer1KCents("mystery-model"); got != 0 {
		t.Errorf("expected 0 for unknown provider, got %f", got)
	}
}

func TestPricingTableMerge(t *testing.T) {
	table := NewPricingTable()

	custom := ModelPricing{InputPer1KCents: 9.9, OutputPer1KCents: 9.9}
	table.Merge(map[string]map[string]ModelPricing{
		"anthropic": {"claude-3-5-sonnet-20241022": custom},
		"newprov":   {"*": {InputPer1KCents: 1, OutputPer1KCents: 1}},
	})

	got, _ := table.Pricing("anthropic", "claude-3-5-sonnet-20241022")
	if got != custom {
		t.Errorf("merge should overwrite existing pricing, got %+v", got)
	}

	// Untouched entries survive the merge.
	if _, ok := table.Pricing("anthropic", "claude-3-5-haiku-20241022"); !ok {
		t.Error("merge should not drop existing models")
	}

	if _, ok := table.Pricing("newprov", "anything"); !ok {
		t.Error("merge should add new providers")
	}
}

func TestNewPricingTableIsolatedFromDefaults(t *testing.T) {
	a := NewPricingTable()
	b := NewPricingTable()

	a.SetModelPricing("anthropic", "claude-3-5-sonnet-20241022", ModelPricing{InputPer1KCents: 100, OutputPer1KCents: 100})

	got, _ := b.Pricing("anthropic", "claude-3-5-sonnet-20241022")
	if got.InputPer1KCents == 100 {
		t.Error("tables must not share backing maps")
	}
}
