// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package policy defines the routing policy value object: the explicit
// cost/quality/privacy trade-off that admits or rejects providers during
// model selection. Policies are plain values; copy them freely.
package policy

import (
	"strings"

	"github.com/jeranaias/rigroute/internal/provider"
)

// =============================================================================
// ROUTING POLICY
// =============================================================================

// Policy encodes the cost/quality/privacy trade-off for routing decisions.
type Policy struct {
	// PreferLocal biases provider scoring toward local providers.
	PreferLocal bool `json:"prefer_local"`
	// RequirePrivate rejects any provider that sends prompts off-machine.
	RequirePrivate bool `json:"require_private"`
	// MaxCostTier rejects providers whose default tier exceeds it and caps
	// model choice within a provider.
	MaxCostTier provider.CostTier `json:"max_cost_tier"`
	// PreferCheap biases provider and model choice toward cheaper options.
	PreferCheap bool `json:"prefer_cheap"`
	// PreferQuality biases toward higher-quality (usually cloud) options.
	PreferQuality bool `json:"prefer_quality"`
	// MinQuality is the minimum acceptable quality score in [0, 1].
	MinQuality float64 `json:"min_quality"`
	// AllowedProviders, when non-empty, is an exclusive allow-list.
	AllowedProviders []string `json:"allowed_providers,omitempty"`
	// BlockedProviders are rejected unconditionally.
	BlockedProviders []string `json:"blocked_providers,omitempty"`
}

// Allows reports whether the policy admits a provider. It is a pure
// predicate over the provider facts:
//   - private required but provider is not private -> rejected
//   - provider default cost above MaxCostTier -> rejected
//   - allow-list present and provider absent -> rejected
//   - provider on the block-list -> rejected
func (p Policy) Allows(info provider.Info) bool {
	if p.RequirePrivate && !info.IsPrivate {
		return false
	}
	if info.CostTier.Ordinal() > p.MaxCostTier.Ordinal() {
		return false
	}
	if len(p.AllowedProviders) > 0 && !containsFold(p.AllowedProviders, info.Name) {
		return false
	}
	if containsFold(p.BlockedProviders, info.Name) {
		return false
	}
	return true
}

// Name returns the preset name the policy matches, or "custom".
// Policies carrying allow/block lists never match a preset.
func (p Policy) Name() string {
	if len(p.AllowedProviders) > 0 || len(p.BlockedProviders) > 0 {
		return "custom"
	}
	switch {
	case samePreset(p, PrivacyFirst()):
		return "privacy_first"
	case samePreset(p, CostFirst()):
		return "cost_first"
	case samePreset(p, QualityFirst()):
		return "quality_first"
	case samePreset(p, Balanced()):
		return "balanced"
	default:
		return "custom"
	}
}

// samePreset compares the scalar fields of two policies.
func samePreset(a, b Policy) bool {
	return a.PreferLocal == b.PreferLocal &&
		a.RequirePrivate == b.RequirePrivate &&
		a.MaxCostTier == b.MaxCostTier &&
		a.PreferCheap == b.PreferCheap &&
		a.PreferQuality == b.PreferQuality &&
		a.MinQuality == b.MinQuality
}

func containsFold(list []string, name string) bool {
	for _, item := range list {
		if strings.EqualFold(item, name) {
			return true
		}
	}
	return false
}

// =============================================================================
// PRESETS
// =============================================================================

// PrivacyFirst admits only private providers; prompts never leave the
// machine, whatever the cost in quality.
func PrivacyFirst() Policy {
	return Policy{
		PreferLocal:    true,
		RequirePrivate: true,
		MaxCostTier:    provider.CostPremium,
		MinQuality:     0.3,
	}
}

// CostFirst minimizes spend: cheap tiers only, local preferred.
func CostFirst() Policy {
	return Policy{
		PreferLocal: true,
		PreferCheap: true,
		MaxCostTier: provider.CostCheap,
		MinQuality:  0.4,
	}
}

// QualityFirst maximizes answer quality regardless of cost.
func QualityFirst() Policy {
	return Policy{
		PreferQuality: true,
		MaxCostTier:   provider.CostPremium,
		MinQuality:    0.8,
	}
}

// Balanced is the default trade-off: prefer local, accept standard-cost
// cloud when it buys quality.
func Balanced() Policy {
	return Policy{
		PreferLocal:   true,
		PreferQuality: true,
		MaxCostTier:   provider.CostStandard,
		MinQuality:    0.5,
	}
}

// Preset resolves a preset by name. Returns Balanced and false for unknown
// names.
func Preset(name string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "privacy_first", "privacy-first", "privacy":
		return PrivacyFirst(), true
	case "cost_first", "cost-first", "cost":
		return CostFirst(), true
	case "quality_first", "quality-first", "quality":
		return QualityFirst(), true
	case "balanced":
		return Balanced(), true
	default:
		return Balanced(), false
	}
}
