// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider holds static facts about backend compute providers:
// whether they run locally, whether prompts stay private, and how expensive
// their models are. The registry is built once at startup and frozen before
// routing begins, so selection decisions stay reproducible for the lifetime
// of the process.
package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// =============================================================================
// COST TIER
// =============================================================================

// CostTier is an ordered bucket approximating the monetary cost of a
// provider or model: Free < Cheap < Standard < Premium.
type CostTier int

const (
	// CostFree is local inference with no per-token cost.
	CostFree CostTier = iota + 1
	// CostCheap is budget cloud models.
	CostCheap
	// CostStandard is mainstream cloud models.
	CostStandard
	// CostPremium is frontier cloud models.
	CostPremium
)

// String returns the human-readable name of the cost tier.
func (c CostTier) String() string {
	switch c {
	case CostFree:
		return "FREE"
	case CostCheap:
		return "CHEAP"
	case CostStandard:
		return "STANDARD"
	case CostPremium:
		return "PREMIUM"
	default:
		return fmt.Sprintf("CostTier(%d)", c)
	}
}

// Ordinal returns the numeric order of the tier for comparison.
func (c CostTier) Ordinal() int {
	return int(c)
}

// ParseCostTier parses a cost tier name as produced by String.
// Returns CostStandard and false for unknown names.
func ParseCostTier(s string) (CostTier, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FREE":
		return CostFree, true
	case "CHEAP":
		return CostCheap, true
	case "STANDARD":
		return CostStandard, true
	case "PREMIUM":
		return CostPremium, true
	default:
		return CostStandard, false
	}
}

// =============================================================================
// PROVIDER INFO
// =============================================================================

// Info describes one provider. Instances are configuration data and must be
// treated as immutable once the registry is frozen.
type Info struct {
	// Name is the provider identifier (e.g. "ollama", "openai").
	Name string `json:"name"`
	// IsLocal is true when inference runs on this machine.
	IsLocal bool `json:"is_local"`
	// IsPrivate is true when prompts never leave this machine.
	IsPrivate bool `json:"is_private"`
	// CostTier is the provider-wide default cost tier.
	CostTier CostTier `json:"cost_tier"`
	// ModelCosts overrides the default tier per model name.
	ModelCosts map[string]CostTier `json:"model_costs,omitempty"`
}

// CostOf resolves the cost tier for a model: the per-model override when one
// exists, otherwise the provider default.
func (i Info) CostOf(model string) CostTier {
	if tier, ok := i.ModelCosts[model]; ok {
		return tier
	}
	return i.CostTier
}

// CheapestModel returns the cheapest known model at or below maxTier, or ""
// when no listed model qualifies.
func (i Info) CheapestModel(maxTier CostTier) string {
	best := ""
	bestTier := CostPremium + 1
	for _, model := range i.sortedModels() {
		tier := i.ModelCosts[model]
		if tier.Ordinal() <= maxTier.Ordinal() && tier < bestTier {
			best = model
			bestTier = tier
		}
	}
	return best
}

// PriciestModel returns the highest-cost-tier known model still at or below
// maxTier, or "" when no listed model qualifies.
func (i Info) PriciestModel(maxTier CostTier) string {
	best := ""
	bestTier := CostTier(0)
	for _, model := range i.sortedModels() {
		tier := i.ModelCosts[model]
		if tier.Ordinal() <= maxTier.Ordinal() && tier > bestTier {
			best = model
			bestTier = tier
		}
	}
	return best
}

// sortedModels returns model names in a stable order so tie-breaks between
// models of equal cost are deterministic.
func (i Info) sortedModels() []string {
	names := make([]string, 0, len(i.ModelCosts))
	for name := range i.ModelCosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// BUILT-IN PROVIDERS
// =============================================================================

// LocalProviderName is the designated local low-latency provider, used as a
// routing escape hatch when no provider matches policy.
const LocalProviderName = "ollama"

// builtins returns the built-in provider facts.
func builtins() []Info {
	return []Info{
		{
			Name:      LocalProviderName,
			IsLocal:   true,
			IsPrivate: true,
			CostTier:  CostFree,
		},
		{
			Name:     "openai",
			CostTier: CostStandard,
			ModelCosts: map[string]CostTier{
				"gpt-4":               CostPremium,
				"gpt-4-turbo":         CostPremium,
				"gpt-4-turbo-preview": CostPremium,
				"gpt-4o":              CostStandard,
				"gpt-4o-mini":         CostCheap,
				"gpt-3.5-turbo":       CostCheap,
			},
		},
		{
			Name:     "anthropic",
			CostTier: CostStandard,
			ModelCosts: map[string]CostTier{
				"claude-3-opus-20240229":     CostPremium,
				"claude-3-5-sonnet-20241022": CostStandard,
				"claude-3-sonnet-20240229":   CostStandard,
				"claude-3-haiku-20240307":    CostCheap,
			},
		},
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

// Override adjusts a built-in provider at registry construction time.
type Override struct {
	// CostTier reassigns the provider default cost tier when non-zero.
	CostTier CostTier
}

// Registry is a frozen catalog of provider facts. Get is total: unknown
// providers resolve to a synthetic non-local, non-private, standard-cost
// entry so policy checks never have to special-case missing providers.
//
// Registration order is preserved and exposed through Names so routing
// tie-breaks stay deterministic.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]Info
	frozen bool
}

// NewRegistry builds a registry from the built-in providers with optional
// per-provider overrides, then freezes it.
func NewRegistry(overrides map[string]Override) *Registry {
	r := &Registry{byName: make(map[string]Info)}
	for _, info := range builtins() {
		if ov, ok := overrides[info.Name]; ok && ov.CostTier != 0 {
			info.CostTier = ov.CostTier
		}
		r.register(info)
	}
	r.frozen = true
	return r
}

// NewRegistryFrom builds a frozen registry from an explicit provider list,
// preserving the given order. Intended for tests and embedders with their
// own catalogs.
func NewRegistryFrom(infos []Info) *Registry {
	r := &Registry{byName: make(map[string]Info)}
	for _, info := range infos {
		r.register(info)
	}
	r.frozen = true
	return r
}

func (r *Registry) register(info Info) {
	if r.frozen {
		// Registry is append-only pre-freeze and immutable after; a late
		// register call is a programming error, not a runtime condition.
		panic("provider: register after freeze")
	}
	if _, exists := r.byName[info.Name]; !exists {
		r.order = append(r.order, info.Name)
	}
	r.byName[info.Name] = info
}

// Get returns the provider facts for name. Unknown names yield a synthetic
// cloud-like entry so callers can apply policy checks uniformly.
func (r *Registry) Get(name string) Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if info, ok := r.byName[name]; ok {
		return info
	}
	return Info{
		Name:     name,
		CostTier: CostStandard,
	}
}

// Has reports whether name is a registered provider.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
