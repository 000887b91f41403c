// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rank scores locally installed models for a task.
//
// Given the models a local server reports, the ranker estimates each model's
// parameter count from its name and derives capability, performance, speed
// and quality component scores for the task at hand. The router consumes the
// top-ranked model and its scores; the rest form the same-provider fallback
// chain.
package rank

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jeranaias/rigroute/internal/complexity"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoModelAvailable means the local server reported zero usable models.
	ErrNoModelAvailable = errors.New("no local model available")
)

// =============================================================================
// TYPES
// =============================================================================

// Scores holds the component scores for one model, each in [0, 1], plus
// their weighted total.
type Scores struct {
	Capability  float64 `json:"capability"`
	Performance float64 `json:"performance"`
	Speed       float64 `json:"speed"`
	Quality     float64 `json:"quality"`
	Total       float64 `json:"total"`
}

// Scored is one ranked model.
type Scored struct {
	// Model is the model name as reported by the server.
	Model string `json:"model"`
	// SizeB is the estimated parameter count in billions (0 = unknown).
	SizeB float64 `json:"size_b"`
	// Scores are the component scores for the requested task.
	Scores Scores `json:"scores"`
}

// ModelLister reports the models a local server currently has installed.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Ranker ranks local models for a task type and complexity.
type Ranker interface {
	// Rank returns the best model, honoring preferred when it is installed.
	// Returns ErrNoModelAvailable when no model qualifies; other errors
	// mean the local server could not be reached.
	Rank(ctx context.Context, taskType string, level complexity.Level, preferred string) (Scored, error)
	// Ranked returns all models ordered best-first for the task type.
	Ranked(ctx context.Context, taskType string, level complexity.Level) ([]Scored, error)
}

// =============================================================================
// PARAMETER COUNT EXTRACTION
// =============================================================================

// paramRegex matches parameter-count suffixes like "7b", "1.5b", ":32b".
var paramRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)b`)

// ParamCount extracts the parameter count in billions from a model name
// (e.g. "qwen2.5-coder:14b" -> 14). Returns 0 when the name carries no
// recognizable size.
func ParamCount(model string) float64 {
	matches := paramRegex.FindStringSubmatch(strings.ToLower(model))
	if len(matches) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// =============================================================================
// MODEL FAMILIES
// =============================================================================

// familyFor reports the capability family a model name advertises:
// "code", "reasoning", or "general".
func familyFor(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "coder") || strings.Contains(m, "code") ||
		strings.Contains(m, "codestral") || strings.Contains(m, "starcoder"):
		return "code"
	case strings.Contains(m, "r1") || strings.Contains(m, "reason") ||
		strings.Contains(m, "qwq") || strings.Contains(m, "think"):
		return "reasoning"
	default:
		return "general"
	}
}

// familyForTask maps a router task type onto the model family that handles
// it best.
func familyForTask(taskType string) string {
	switch strings.ToLower(taskType) {
	case "code", "code_generation":
		return "code"
	case "reasoning", "analysis", "research":
		return "reasoning"
	default:
		return "general"
	}
}

// =============================================================================
// LOCAL RANKER
// =============================================================================

// LocalRanker ranks models reported by a local server. Safe for concurrent
// use; it holds no mutable state beyond the lister it wraps.
type LocalRanker struct {
	lister ModelLister
}

// NewLocalRanker creates a ranker over the given model lister.
func NewLocalRanker(lister ModelLister) *LocalRanker {
	return &LocalRanker{lister: lister}
}

// Rank implements Ranker.
func (r *LocalRanker) Rank(ctx context.Context, taskType string, level complexity.Level, preferred string) (Scored, error) {
	ranked, err := r.Ranked(ctx, taskType, level)
	if err != nil {
		return Scored{}, err
	}

	if preferred != "" {
		for _, s := range ranked {
			if strings.EqualFold(s.Model, preferred) {
				return s, nil
			}
		}
	}
	return ranked[0], nil
}

// Ranked implements Ranker.
func (r *LocalRanker) Ranked(ctx context.Context, taskType string, level complexity.Level) ([]Scored, error) {
	models, err := r.lister.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local models: %w", err)
	}
	if len(models) == 0 {
		return nil, ErrNoModelAvailable
	}

	ranked := make([]Scored, 0, len(models))
	for _, model := range models {
		ranked = append(ranked, Score(model, taskType, level))
	}

	// Best first; name order breaks score ties deterministically.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Scores.Total != ranked[j].Scores.Total {
			return ranked[i].Scores.Total > ranked[j].Scores.Total
		}
		return ranked[i].Model < ranked[j].Model
	})
	return ranked, nil
}

// =============================================================================
// SCORING
// =============================================================================

// Score computes the component scores for one model against a task type and
// complexity level. Pure function; exported for tests and for embedders with
// their own model inventories.
func Score(model, taskType string, level complexity.Level) Scored {
	size := ParamCount(model)

	// Size factor: 0 for unknown/tiny, 1 for 70B-class models.
	sizeFactor := size / 70
	if sizeFactor > 1 {
		sizeFactor = 1
	}

	capability := 0.6
	if familyFor(model) == familyForTask(taskType) {
		capability = 0.9
	}

	performance := 0.3 + sizeFactor*0.7
	speed := 1.0 - sizeFactor*0.8
	quality := 0.4 + sizeFactor*0.6

	// Harder tasks weight capability and quality; easy tasks weight speed.
	var wCap, wPerf, wSpeed, wQual float64
	switch {
	case level.AtLeast(complexity.LevelComplex):
		wCap, wPerf, wSpeed, wQual = 0.35, 0.2, 0.1, 0.35
	case level.AtLeast(complexity.LevelModerate):
		wCap, wPerf, wSpeed, wQual = 0.3, 0.25, 0.2, 0.25
	default:
		wCap, wPerf, wSpeed, wQual = 0.25, 0.15, 0.45, 0.15
	}

	total := capability*wCap + performance*wPerf + speed*wSpeed + quality*wQual

	return Scored{
		Model: model,
		SizeB: size,
		Scores: Scores{
			Capability:  capability,
			Performance: performance,
			Speed:       speed,
			Quality:     quality,
			Total:       total,
		},
	}
}
