// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"testing"
)

// TestCostTierOrdering verifies the total order over cost tiers.
func TestCostTierOrdering(t *testing.T) {
	if !(CostFree < CostCheap && CostCheap < CostStandard && CostStandard < CostPremium) {
		t.Fatal("cost tiers are not strictly ordered")
	}
	if CostFree.Ordinal() != 1 || CostPremium.Ordinal() != 4 {
		t.Errorf("ordinals = %d..%d, want 1..4", CostFree.Ordinal(), CostPremium.Ordinal())
	}
}

// TestParseCostTier round-trips tier names and rejects junk.
func TestParseCostTier(t *testing.T) {
	for tier := CostFree; tier <= CostPremium; tier++ {
		got, ok := ParseCostTier(tier.String())
		if !ok || got != tier {
			t.Errorf("ParseCostTier(%q) = %s, %v", tier.String(), got, ok)
		}
	}
	if _, ok := ParseCostTier("platinum"); ok {
		t.Error("ParseCostTier accepted unknown tier")
	}
}

// TestCostOf verifies override-or-default model cost resolution.
func TestCostOf(t *testing.T) {
	info := Info{
		Name:     "cloud-x",
		CostTier: CostStandard,
		ModelCosts: map[string]CostTier{
			"model-big":   CostPremium,
			"model-small": CostCheap,
		},
	}

	if got := info.CostOf("model-big"); got != CostPremium {
		t.Errorf("CostOf(model-big) = %s, want PREMIUM", got)
	}
	if got := info.CostOf("model-unknown"); got != CostStandard {
		t.Errorf("CostOf(model-unknown) = %s, want provider default STANDARD", got)
	}
}

// TestCheapestAndPriciestModel verifies cost-bounded model lookup.
func TestCheapestAndPriciestModel(t *testing.T) {
	info := Info{
		Name:     "cloud-x",
		CostTier: CostStandard,
		ModelCosts: map[string]CostTier{
			"model-big":   CostPremium,
			"model-mid":   CostStandard,
			"model-small": CostCheap,
		},
	}

	if got := info.CheapestModel(CostCheap); got != "model-small" {
		t.Errorf("CheapestModel(CHEAP) = %q, want model-small", got)
	}
	if got := info.CheapestModel(CostPremium); got != "model-small" {
		t.Errorf("CheapestModel(PREMIUM) = %q, want model-small", got)
	}
	if got := info.PriciestModel(CostStandard); got != "model-mid" {
		t.Errorf("PriciestModel(STANDARD) = %q, want model-mid", got)
	}
	if got := info.PriciestModel(CostFree); got != "" {
		t.Errorf("PriciestModel(FREE) = %q, want none", got)
	}
}

// TestRegistryGetTotal verifies Get never fails, synthesizing cloud-like
// facts for unknown providers.
func TestRegistryGetTotal(t *testing.T) {
	r := NewRegistry(nil)

	info := r.Get("no-such-provider")
	if info.IsLocal || info.IsPrivate {
		t.Error("unknown provider must be treated as non-local and non-private")
	}
	if info.CostTier != CostStandard {
		t.Errorf("unknown provider cost = %s, want STANDARD", info.CostTier)
	}
	if r.Has("no-such-provider") {
		t.Error("Has reported true for unknown provider")
	}
}

// TestRegistryBuiltins verifies built-in facts and registration order.
func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry(nil)

	local := r.Get(LocalProviderName)
	if !local.IsLocal || !local.IsPrivate || local.CostTier != CostFree {
		t.Errorf("local provider facts wrong: %+v", local)
	}

	names := r.Names()
	if len(names) == 0 || names[0] != LocalProviderName {
		t.Errorf("Names() = %v, want %s first", names, LocalProviderName)
	}
}

// TestRegistryOverrides verifies init-time cost overrides are applied.
func TestRegistryOverrides(t *testing.T) {
	r := NewRegistry(map[string]Override{
		"openai": {CostTier: CostPremium},
	})

	if got := r.Get("openai").CostTier; got != CostPremium {
		t.Errorf("openai cost after override = %s, want PREMIUM", got)
	}
	// Per-model overrides survive the provider-level reassignment.
	if got := r.Get("openai").CostOf("gpt-4o-mini"); got != CostCheap {
		t.Errorf("gpt-4o-mini cost = %s, want CHEAP", got)
	}
}
