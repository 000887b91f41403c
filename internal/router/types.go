// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"

	"github.com/jeranaias/rigroute/internal/complexity"
	"github.com/jeranaias/rigroute/internal/policy"
	"github.com/jeranaias/rigroute/internal/provider"
	"github.com/jeranaias/rigroute/internal/rank"
)

// =============================================================================
// REQUEST / SELECTION
// =============================================================================

// Request carries one routing question. Only Task is required; the rest are
// caller overrides for values the engine would otherwise derive.
type Request struct {
	// Task is the natural-language task text.
	Task string
	// TaskType skips classification when set (code, analysis, research,
	// reasoning, simple_chat, general).
	TaskType string
	// Complexity skips analysis when set. Callers that already ran the
	// estimator pass the level here.
	Complexity *complexity.Level
	// PreferredModel is honored when the selected provider has it.
	PreferredModel string
	// Policy overrides the engine's default policy for this request.
	Policy *policy.Policy
}

// Fallback is one alternate (provider, model) pair a caller may retry
// against without re-running selection.
type Fallback struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Selection is the routing decision for one task. Immutable once returned;
// it carries everything a caller needs to generate and to retry.
type Selection struct {
	// Model and Provider identify the primary choice. Server is the
	// endpoint base URL when the provider has one configured.
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Server   string `json:"server,omitempty"`

	// Tier is the coarse capability class the choice lands in.
	Tier complexity.Tier `json:"tier"`
	// Scores are the component scores behind the choice. Cloud models
	// carry fixed nominal scores; local models carry ranked scores.
	Scores rank.Scores `json:"scores"`

	// Complexity is the resolved level the decision was made for.
	Complexity complexity.Level `json:"complexity"`
	// TaskType is the resolved task category.
	TaskType string `json:"task_type"`

	// Reason summarizes, for humans, which policy clauses and provider
	// facts drove the decision. Never parse it.
	Reason string `json:"reason"`

	// Fallbacks lists up to three alternates in priority order. The
	// primary never appears here. Advisory; the engine does not retry.
	Fallbacks []Fallback `json:"fallbacks,omitempty"`

	// Temperature and MaxTokens are the recommended generation
	// parameters for the resolved task type and complexity.
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`

	IsLocal   bool              `json:"is_local"`
	IsPrivate bool              `json:"is_private"`
	CostTier  provider.CostTier `json:"cost_tier"`

	// Policy is the policy the decision was made under.
	Policy policy.Policy `json:"-"`
}

// =============================================================================
// CONSUMED CAPABILITIES
// =============================================================================

// Classifier maps task text to a task category. Pluggable so the keyword
// table can be swapped for a smarter classifier without touching the engine.
type Classifier interface {
	Classify(text string) string
}

// GenerateParams are the knobs a generation call accepts.
type GenerateParams struct {
	Temperature float64
	MaxTokens   int
}

// Generator performs text generation against one provider. The engine only
// decides; callers hold a Generator per provider and execute against the
// Selection.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, params GenerateParams) (string, error)
}

// ProviderConfig is the per-provider wiring the engine needs beyond what the
// registry knows: whether the provider is usable and what its endpoint and
// default model are.
type ProviderConfig struct {
	Enabled      bool
	BaseURL      string
	DefaultModel string
}
