// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package complexity estimates how hard a natural-language task is.
//
// The estimator is a pure function of the task text: it produces an ordered
// complexity level, a 0-10 score, and recommended generation parameters
// (temperature, token budget, model tier). Analysis is advisory and must
// never block task execution, so Analyze cannot fail; any internal fault
// degrades to a default moderate result.
package complexity

import (
	"fmt"
	"log"
	"strings"
)

// =============================================================================
// COMPLEXITY LEVEL
// =============================================================================

// Level represents the estimated complexity of a task.
// Ordered: Trivial < Simple < Moderate < Complex < VeryComplex < Extreme.
type Level int

const (
	// LevelTrivial covers greetings and one-line questions (< 10 sec).
	LevelTrivial Level = iota
	// LevelSimple covers basic single-step tasks (10-30 sec).
	LevelSimple
	// LevelModerate covers typical tasks (30 sec - 2 min).
	LevelModerate
	// LevelComplex covers multi-step tasks (2-10 min).
	LevelComplex
	// LevelVeryComplex covers large multi-part tasks (10-30 min).
	LevelVeryComplex
	// LevelExtreme covers whole-project scale tasks (30+ min).
	LevelExtreme
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelTrivial:
		return "trivial"
	case LevelSimple:
		return "simple"
	case LevelModerate:
		return "moderate"
	case LevelComplex:
		return "complex"
	case LevelVeryComplex:
		return "very_complex"
	case LevelExtreme:
		return "extreme"
	default:
		return fmt.Sprintf("Level(%d)", l)
	}
}

// ParseLevel parses a level name as produced by String.
// Returns LevelModerate and false for unknown names.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trivial":
		return LevelTrivial, true
	case "simple":
		return LevelSimple, true
	case "moderate":
		return LevelModerate, true
	case "complex":
		return LevelComplex, true
	case "very_complex":
		return LevelVeryComplex, true
	case "extreme":
		return LevelExtreme, true
	default:
		return LevelModerate, false
	}
}

// AtLeast returns true if the level is at or above other.
func (l Level) AtLeast(other Level) bool {
	return l >= other
}

// =============================================================================
// MODEL TIER
// =============================================================================

// Tier represents a coarse model capability class.
type Tier int

const (
	// TierFast represents small, quick models for simple tasks.
	TierFast Tier = iota
	// TierBalanced represents mid-size models with a good speed/quality trade-off.
	TierBalanced
	// TierPowerful represents large models for complex tasks.
	TierPowerful
)

// String returns the human-readable name of the tier.
func (t Tier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierBalanced:
		return "balanced"
	case TierPowerful:
		return "powerful"
	default:
		return fmt.Sprintf("Tier(%d)", t)
	}
}

// =============================================================================
// SCORING TABLES
// =============================================================================

// factorWeight tags a scoring category with its weight contribution.
// All weights are non-negative so the score is monotonic in the number of
// matched signals: adding text or complexity keywords never lowers it.
type factorWeight struct {
	factor  string
	weight  float64
	matches []string
}

// keywordWeights is the tagged scoring table consumed by scoreText.
var keywordWeights = []factorWeight{
	{
		factor: "scope",
		weight: 2.5,
		matches: []string{
			"entire project", "whole codebase", "whole project", "all files",
			"across the codebase", "every module", "full rewrite", "from scratch",
		},
	},
	{
		factor: "multi_step",
		weight: 1.5,
		matches: []string{
			"multi-step", "step by step", "and then", "pipeline", "workflow",
			"migrate", "refactor", "redesign", "rewrite",
		},
	},
	{
		factor: "engineering",
		weight: 1.0,
		matches: []string{
			"implement", "build", "create", "design", "architect", "integrate",
			"distributed", "microservice", "test coverage", "benchmark",
		},
	},
	{
		factor: "reasoning",
		weight: 0.5,
		matches: []string{
			"why", "explain", "analyze", "compare", "evaluate", "prove",
			"trade-off", "optimize", "debug",
		},
	},
	{
		factor: "code",
		weight: 0.5,
		matches: []string{
			"```", "func ", "def ", "class ", "import ", "function",
		},
	},
}

// tokensByLevel maps a level to the recommended max-token budget.
var tokensByLevel = map[Level]int{
	LevelTrivial:     500,
	LevelSimple:      1000,
	LevelModerate:    2000,
	LevelComplex:     3000,
	LevelVeryComplex: 4000,
	LevelExtreme:     6000,
}

// temperatureByTaskType maps a task type to its base sampling temperature.
var temperatureByTaskType = map[string]float64{
	"code":            0.1,
	"code_generation": 0.1,
	"math":            0.1,
	"analysis":        0.3,
	"reasoning":       0.4,
	"research":        0.5,
	"chat":            0.7,
	"general":         0.7,
	"simple_chat":     0.8,
	"creative":        0.9,
}

// minutesByLevel maps a level to a rough wall-clock estimate.
var minutesByLevel = map[Level]float64{
	LevelTrivial:     0.2,
	LevelSimple:      0.5,
	LevelModerate:    2,
	LevelComplex:     10,
	LevelVeryComplex: 30,
	LevelExtreme:     60,
}

// TokensForLevel returns the recommended max-token budget for a level.
func TokensForLevel(l Level) int {
	if v, ok := tokensByLevel[l]; ok {
		return v
	}
	return tokensByLevel[LevelModerate]
}

// TemperatureForTaskType returns the base sampling temperature for a task
// type, shifted down by 0.1 (floored at 0.1) for complex and harder tasks.
func TemperatureForTaskType(taskType string, level Level) float64 {
	temp, ok := temperatureByTaskType[strings.ToLower(taskType)]
	if !ok {
		temp = temperatureByTaskType["general"]
	}
	if level.AtLeast(LevelComplex) {
		temp -= 0.1
		if temp < 0.1 {
			temp = 0.1
		}
	}
	return temp
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of a single task analysis.
// It is created fresh per call and never mutated afterwards.
type Result struct {
	// Level is the ordered complexity classification.
	Level Level `json:"level"`
	// Score is the numeric complexity score in [0, 10].
	Score float64 `json:"score"`
	// EstimatedMinutes is a rough wall-clock estimate for the task.
	EstimatedMinutes float64 `json:"estimated_minutes"`
	// RecommendedTier is the suggested model tier.
	RecommendedTier Tier `json:"recommended_tier"`
	// RecommendedTemperature is the suggested sampling temperature.
	RecommendedTemperature float64 `json:"recommended_temperature"`
	// RecommendedMaxTokens is the suggested token budget.
	RecommendedMaxTokens int `json:"recommended_max_tokens"`
	// Factors explains which scoring categories contributed and how much.
	Factors map[string]float64 `json:"factors,omitempty"`
	// ShouldWarn is true when the task looks expensive enough to flag.
	ShouldWarn bool `json:"should_warn"`
	// WarningMessage is non-empty whenever ShouldWarn is true.
	WarningMessage string `json:"warning_message,omitempty"`
}

// =============================================================================
// ESTIMATOR
// =============================================================================

// DefaultWarnThreshold is the score at or above which results carry a warning.
const DefaultWarnThreshold = 7.0

// Estimator analyzes task text. The zero value is not usable; construct with
// NewEstimator. Estimators are immutable after construction and safe for
// concurrent use.
type Estimator struct {
	warnThreshold float64
}

// NewEstimator creates an estimator with the default warning threshold.
func NewEstimator() *Estimator {
	return NewEstimatorWithThreshold(DefaultWarnThreshold)
}

// NewEstimatorWithThreshold creates an estimator that warns at or above the
// given score. Non-positive thresholds fall back to the default.
func NewEstimatorWithThreshold(threshold float64) *Estimator {
	if threshold <= 0 {
		threshold = DefaultWarnThreshold
	}
	return &Estimator{warnThreshold: threshold}
}

// Analyze classifies a task with no task-type hint.
func (e *Estimator) Analyze(task string) Result {
	return e.AnalyzeWithHints(task, "", "")
}

// AnalyzeWithHints classifies a task. taskType biases the recommended
// temperature (pass "" when unknown); model is recorded as a factor only,
// so callers can see a preferred model flowed through the analysis.
//
// AnalyzeWithHints never fails. An internal fault degrades to a default
// moderate result, because complexity analysis is advisory.
func (e *Estimator) AnalyzeWithHints(task, taskType, model string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("COMPLEXITY: analysis degraded to default: %v", r)
			res = defaultResult(taskType)
		}
	}()

	score, factors := scoreText(task)
	level := levelForScore(score)

	if model != "" {
		factors["preferred_model"] = 0
	}

	tt := taskType
	if tt == "" {
		tt = "general"
	}

	res = Result{
		Level:                  level,
		Score:                  score,
		EstimatedMinutes:       minutesByLevel[level],
		RecommendedTier:        tierForLevel(level),
		RecommendedTemperature: TemperatureForTaskType(tt, level),
		RecommendedMaxTokens:   TokensForLevel(level),
		Factors:                factors,
	}

	if score >= e.warnThreshold {
		res.ShouldWarn = true
		res.WarningMessage = fmt.Sprintf(
			"task scored %.1f/10 (%s): expect roughly %.0f minutes of generation",
			score, level, res.EstimatedMinutes)
	}

	return res
}

// scoreText computes the 0-10 score and the contributing factors.
// Length and keyword contributions are all non-negative, which keeps the
// score monotonic: a longer task with more complexity signals never scores
// below a short plain one.
func scoreText(task string) (float64, map[string]float64) {
	factors := make(map[string]float64)
	lower := strings.ToLower(task)
	words := len(strings.Fields(task))

	// Length contribution: 0 to 3 points.
	var lengthScore float64
	switch {
	case words >= 200:
		lengthScore = 3
	case words >= 80:
		lengthScore = 2
	case words >= 30:
		lengthScore = 1.5
	case words >= 10:
		lengthScore = 1
	case words >= 5:
		lengthScore = 0.5
	}
	if lengthScore > 0 {
		factors["length"] = lengthScore
	}

	score := lengthScore
	for _, fw := range keywordWeights {
		hits := 0
		for _, kw := range fw.matches {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		// First hit counts full weight, repeats count half, capped at 2x
		// so one chatty prompt cannot saturate a single category.
		contribution := fw.weight + float64(hits-1)*fw.weight/2
		if contribution > fw.weight*2 {
			contribution = fw.weight * 2
		}
		factors[fw.factor] = contribution
		score += contribution
	}

	if score > 10 {
		score = 10
	}
	return score, factors
}

// levelForScore buckets a score into a level.
func levelForScore(score float64) Level {
	switch {
	case score >= 8.5:
		return LevelExtreme
	case score >= 7:
		return LevelVeryComplex
	case score >= 5:
		return LevelComplex
	case score >= 2.5:
		return LevelModerate
	case score >= 1:
		return LevelSimple
	default:
		return LevelTrivial
	}
}

// tierForLevel maps a level to the recommended model tier.
func tierForLevel(l Level) Tier {
	switch {
	case l.AtLeast(LevelComplex):
		return TierPowerful
	case l.AtLeast(LevelModerate):
		return TierBalanced
	default:
		return TierFast
	}
}

// defaultResult is the degraded moderate result used when analysis faults.
func defaultResult(taskType string) Result {
	tt := taskType
	if tt == "" {
		tt = "general"
	}
	return Result{
		Level:                  LevelModerate,
		Score:                  5,
		EstimatedMinutes:       minutesByLevel[LevelModerate],
		RecommendedTier:        TierBalanced,
		RecommendedTemperature: TemperatureForTaskType(tt, LevelModerate),
		RecommendedMaxTokens:   TokensForLevel(LevelModerate),
		Factors:                map[string]float64{"degraded": 1},
	}
}
