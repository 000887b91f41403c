// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router selects the provider and model for a task under a routing
// policy.
//
// Selection is deterministic: the same task, policy, and registry state
// always produce the same decision. The engine performs no network calls of
// its own except ranking installed local models, and that failure degrades
// to the next admissible provider instead of surfacing as an unrelated
// error. The engine never retries generation; fallbacks in the Selection
// are advisory metadata for the caller.
package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/jeranaias/rigroute/internal/complexity"
	"github.com/jeranaias/rigroute/internal/policy"
	"github.com/jeranaias/rigroute/internal/provider"
	"github.com/jeranaias/rigroute/internal/rank"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoProviderAvailable means the policy admits zero usable
	// providers. Fatal for the request.
	ErrNoProviderAvailable = errors.New("no provider available")
	// ErrProviderUnavailable means one specific provider could not serve.
	// The engine handles it internally by widening selection; it reaches
	// callers only when privacy requirements forbid widening.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// =============================================================================
// ENGINE
// =============================================================================

// Cloud models are not ranked individually; they carry fixed nominal scores
// and count as large for tier classification.
var cloudScores = rank.Scores{
	Capability:  0.9,
	Performance: 0.8,
	Speed:       0.7,
	Quality:     0.9,
	Total:       0.85,
}

const cloudModelSizeB = 100.0

// Options configures an Engine. Zero-value fields get working defaults.
type Options struct {
	Registry      *provider.Registry
	Estimator     *complexity.Estimator
	Classifier    Classifier
	Ranker        rank.Ranker
	DefaultPolicy *policy.Policy
	// Providers maps provider name to its wiring. Providers absent from
	// the map are treated as disabled.
	Providers map[string]ProviderConfig
}

// Engine is the routing decision point. Construct one at startup and share
// it; all fields are read-only after construction, so it is safe for
// concurrent use.
type Engine struct {
	registry      *provider.Registry
	estimator     *complexity.Estimator
	classifier    Classifier
	ranker        rank.Ranker
	defaultPolicy policy.Policy
	providers     map[string]ProviderConfig
}

// NewEngine creates a routing engine. Missing options default to the
// built-in registry, estimator, keyword classifier, balanced policy, and a
// local-only provider table.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		registry:      opts.Registry,
		estimator:     opts.Estimator,
		classifier:    opts.Classifier,
		ranker:        opts.Ranker,
		defaultPolicy: policy.Balanced(),
		providers:     opts.Providers,
	}
	if e.registry == nil {
		e.registry = provider.NewRegistry(nil)
	}
	if e.estimator == nil {
		e.estimator = complexity.NewEstimator()
	}
	if e.classifier == nil {
		e.classifier = KeywordClassifier{}
	}
	if opts.DefaultPolicy != nil {
		e.defaultPolicy = *opts.DefaultPolicy
	}
	if e.providers == nil {
		e.providers = map[string]ProviderConfig{
			provider.LocalProviderName: {Enabled: true, BaseURL: "http://127.0.0.1:11434"},
		}
	}
	return e
}

// =============================================================================
// SELECTION
// =============================================================================

// Select routes one task. It resolves policy, complexity, and task type,
// then walks providers best-first until one can serve, and assembles the
// full decision with fallbacks and generation parameters.
func (e *Engine) Select(ctx context.Context, req Request) (Selection, error) {
	pol := e.defaultPolicy
	if req.Policy != nil {
		pol = *req.Policy
	}

	var level complexity.Level
	if req.Complexity != nil {
		level = *req.Complexity
	} else {
		level = e.estimator.AnalyzeWithHints(req.Task, req.TaskType, req.PreferredModel).Level
	}

	taskType := req.TaskType
	if taskType == "" {
		taskType = e.classifier.Classify(req.Task)
	}

	excluded := make(map[string]bool)
	for {
		name, info, err := e.pickProvider(pol, excluded, true)
		if err != nil {
			return Selection{}, err
		}

		choice, err := e.pickModel(ctx, name, info, pol, taskType, level, req.PreferredModel)
		if err != nil {
			if pol.RequirePrivate {
				return Selection{}, fmt.Errorf(
					"provider %s unreachable and policy requires privacy, refusing to widen to cloud: %w", name, err)
			}
			log.Printf("ROUTING: provider %s unavailable, widening selection: %v", name, err)
			excluded[name] = true
			continue
		}

		sel := Selection{
			Model:       choice.model,
			Provider:    name,
			Server:      choice.server,
			Tier:        tierFor(choice.sizeB, level),
			Scores:      choice.scores,
			Complexity:  level,
			TaskType:    taskType,
			Reason:      buildReason(info, taskType, level, pol),
			Fallbacks:   e.findFallbacks(ctx, name, choice.model, pol, taskType, level),
			Temperature: complexity.TemperatureForTaskType(taskType, level),
			MaxTokens:   complexity.TokensForLevel(level),
			IsLocal:     info.IsLocal,
			IsPrivate:   info.IsPrivate,
			CostTier:    info.CostOf(choice.model),
			Policy:      pol,
		}

		log.Printf("ROUTING: selected %s @ %s (score %.2f, tier %s, complexity %s, private %t, cost %s)",
			sel.Model, sel.Provider, sel.Scores.Total, sel.Tier, sel.Complexity, sel.IsPrivate, sel.CostTier)
		return sel, nil
	}
}

// =============================================================================
// PROVIDER SELECTION
// =============================================================================

// pickProvider filters enabled providers through the policy and returns the
// highest scoring one. With escapeHatch set, an empty admissible set falls
// back once to the local provider, which stays private and free.
func (e *Engine) pickProvider(pol policy.Policy, excluded map[string]bool, escapeHatch bool) (string, provider.Info, error) {
	type candidate struct {
		name  string
		info  provider.Info
		score float64
	}

	var candidates []candidate
	for _, name := range e.registry.Names() {
		if excluded[name] {
			continue
		}
		if !e.providers[name].Enabled {
			continue
		}
		info := e.registry.Get(name)
		if !pol.Allows(info) {
			continue
		}
		candidates = append(candidates, candidate{name, info, providerScore(name, info, pol)})
	}

	if len(candidates) == 0 {
		if escapeHatch && !excluded[provider.LocalProviderName] && e.registry.Has(provider.LocalProviderName) {
			log.Printf("ROUTING: no provider admitted by policy %s, falling back to %s",
				pol.Name(), provider.LocalProviderName)
			return provider.LocalProviderName, e.registry.Get(provider.LocalProviderName), nil
		}
		return "", provider.Info{}, noProviderError(pol)
	}

	// Stable sort keeps registration order as the tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	best := candidates[0]
	return best.name, best.info, nil
}

// providerScore implements the policy-weighted provider preference.
func providerScore(name string, info provider.Info, pol policy.Policy) float64 {
	score := 0.0
	if pol.PreferLocal && info.IsLocal {
		score += 100
	}
	if pol.PreferCheap {
		score += float64(5-info.CostTier.Ordinal()) * 20
	}
	if pol.PreferQuality && !info.IsLocal {
		score += 10
	}
	// The local provider answers fastest; small standing bonus.
	if name == provider.LocalProviderName {
		score += 5
	}
	return score
}

// noProviderError renders the fatal condition with policy-aware guidance.
func noProviderError(pol policy.Policy) error {
	if pol.RequirePrivate {
		return fmt.Errorf("%w: policy %q requires privacy and no private provider is enabled; enable a local provider or relax require_private",
			ErrNoProviderAvailable, pol.Name())
	}
	return fmt.Errorf("%w: policy %q admits no enabled provider; check allowed/blocked lists and the cost ceiling",
		ErrNoProviderAvailable, pol.Name())
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

type modelChoice struct {
	model  string
	server string
	scores rank.Scores
	sizeB  float64
}

// pickModel chooses the model within a provider. Local providers delegate
// to the ranker; cloud providers resolve by cost against the policy.
func (e *Engine) pickModel(ctx context.Context, name string, info provider.Info, pol policy.Policy, taskType string, level complexity.Level, preferred string) (modelChoice, error) {
	cfg := e.providers[name]

	if info.IsLocal {
		if e.ranker == nil {
			return modelChoice{}, fmt.Errorf("%w: no local model ranker configured", ErrProviderUnavailable)
		}
		scored, err := e.ranker.Rank(ctx, taskType, level, preferred)
		if err != nil {
			return modelChoice{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		return modelChoice{scored.Model, cfg.BaseURL, scored.Scores, scored.SizeB}, nil
	}

	model := cfg.DefaultModel
	if pol.PreferCheap {
		if m := info.CheapestModel(pol.MaxCostTier); m != "" {
			model = m
		}
	}
	if level.AtLeast(complexity.LevelComplex) && pol.PreferQuality {
		if m := info.PriciestModel(pol.MaxCostTier); m != "" {
			model = m
		}
	}
	// The default model may be priced above the ceiling; pull back to the
	// cheapest admissible one rather than violate the policy.
	if model != "" && info.CostOf(model) > pol.MaxCostTier {
		if m := info.CheapestModel(pol.MaxCostTier); m != "" {
			model = m
		}
	}
	if model == "" {
		return modelChoice{}, fmt.Errorf("%w: provider %s has no model within cost tier %s",
			ErrProviderUnavailable, name, pol.MaxCostTier)
	}

	return modelChoice{model, cfg.BaseURL, cloudScores, cloudModelSizeB}, nil
}

// =============================================================================
// TIER CLASSIFICATION
// =============================================================================

// tierFor derives a coarse capability tier from model size, then nudges one
// step toward balanced when the tier and the task's complexity disagree
// badly.
func tierFor(sizeB float64, level complexity.Level) complexity.Tier {
	var tier complexity.Tier
	switch {
	case sizeB >= 30:
		tier = complexity.TierPowerful
	case sizeB >= 7:
		tier = complexity.TierBalanced
	default:
		tier = complexity.TierFast
	}

	if level.AtLeast(complexity.LevelComplex) && tier == complexity.TierFast {
		return complexity.TierBalanced
	}
	if !level.AtLeast(complexity.LevelModerate) && tier == complexity.TierPowerful {
		return complexity.TierBalanced
	}
	return tier
}

// =============================================================================
// FALLBACK CHAIN
// =============================================================================

// findFallbacks builds the priority-ordered alternate list: up to two
// same-provider alternates, then at most one cross-provider alternate when
// the policy does not require privacy. Never includes the primary. Best
// effort; ranking failures just shorten the chain.
func (e *Engine) findFallbacks(ctx context.Context, primaryProvider, primaryModel string, pol policy.Policy, taskType string, level complexity.Level) []Fallback {
	var fallbacks []Fallback
	info := e.registry.Get(primaryProvider)

	if info.IsLocal && e.ranker != nil {
		ranked, err := e.ranker.Ranked(ctx, taskType, level)
		if err == nil {
			for _, s := range ranked {
				if strings.EqualFold(s.Model, primaryModel) {
					continue
				}
				fallbacks = append(fallbacks, Fallback{Provider: primaryProvider, Model: s.Model})
				if len(fallbacks) >= 2 {
					break
				}
			}
		}
	} else {
		for _, m := range modelsWithinTier(info, pol.MaxCostTier) {
			if strings.EqualFold(m, primaryModel) {
				continue
			}
			fallbacks = append(fallbacks, Fallback{Provider: primaryProvider, Model: m})
			if len(fallbacks) >= 2 {
				break
			}
		}
	}

	if pol.RequirePrivate || len(fallbacks) >= 3 {
		return fallbacks
	}

	excluded := map[string]bool{primaryProvider: true}
	name, xinfo, err := e.pickProvider(pol, excluded, false)
	if err != nil {
		return fallbacks
	}
	choice, err := e.pickModel(ctx, name, xinfo, pol, taskType, level, "")
	if err != nil || choice.model == "" {
		return fallbacks
	}
	return append(fallbacks, Fallback{Provider: name, Model: choice.model})
}

// modelsWithinTier lists a provider's models at or under the ceiling,
// cheapest first, names breaking ties.
func modelsWithinTier(info provider.Info, maxTier provider.CostTier) []string {
	models := make([]string, 0, len(info.ModelCosts))
	for m, tier := range info.ModelCosts {
		if tier <= maxTier {
			models = append(models, m)
		}
	}
	sort.Slice(models, func(i, j int) bool {
		ci, cj := info.ModelCosts[models[i]], info.ModelCosts[models[j]]
		if ci != cj {
			return ci < cj
		}
		return models[i] < models[j]
	})
	return models
}

// =============================================================================
// REASON
// =============================================================================

// buildReason summarizes the decision for humans. Free-form; callers must
// never parse it.
func buildReason(info provider.Info, taskType string, level complexity.Level, pol policy.Policy) string {
	var parts []string

	if info.IsPrivate {
		parts = append(parts, "private")
	}
	if info.IsLocal {
		parts = append(parts, "local")
	}
	parts = append(parts, "cost:"+info.CostTier.String())

	if pol.RequirePrivate {
		parts = append(parts, "policy:privacy-required")
	} else if pol.PreferLocal {
		parts = append(parts, "policy:prefer-local")
	}
	if pol.PreferCheap {
		parts = append(parts, "policy:cost-optimized")
	}

	return fmt.Sprintf("Selected for %s/%s: %s", taskType, level, strings.Join(parts, ", "))
}
