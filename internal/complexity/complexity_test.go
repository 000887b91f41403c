// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package complexity

import (
	"testing"
)

// TestAnalyzeLevels verifies that representative tasks land in sensible
// complexity buckets.
func TestAnalyzeLevels(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name string
		task string
		max  Level
		min  Level
	}{
		{
			name: "greeting_is_trivial",
			task: "hi",
			min:  LevelTrivial,
			max:  LevelTrivial,
		},
		{
			name: "short_question_is_easy",
			task: "what is a goroutine",
			min:  LevelTrivial,
			max:  LevelSimple,
		},
		{
			name: "refactor_is_at_least_moderate",
			task: "refactor the parser and then add tests for the edge cases",
			min:  LevelModerate,
			max:  LevelComplex,
		},
		{
			name: "whole_codebase_is_hard",
			task: "Refactor the whole codebase from scratch: redesign every module, migrate the pipeline step by step, and implement full test coverage across all files",
			min:  LevelVeryComplex,
			max:  LevelExtreme,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Analyze(tt.task)
			if res.Level < tt.min || res.Level > tt.max {
				t.Errorf("Analyze(%q).Level = %s, want in [%s, %s] (score %.1f, factors %v)",
					tt.task, res.Level, tt.min, tt.max, res.Score, res.Factors)
			}
		})
	}
}

// TestScoreMonotonic verifies the monotonicity property: a long task full of
// complexity signals never scores below a short plain one.
func TestScoreMonotonic(t *testing.T) {
	e := NewEstimator()

	small := e.Analyze("hi")
	big := e.Analyze("Refactor the entire distributed billing system with full test coverage across five microservices")

	if small.Score > big.Score {
		t.Errorf("score not monotonic: %.2f (trivial) > %.2f (heavy)", small.Score, big.Score)
	}
}

// TestScoreBounds verifies scores stay within [0, 10].
func TestScoreBounds(t *testing.T) {
	e := NewEstimator()

	tasks := []string{
		"",
		"hello",
		"refactor rewrite redesign migrate the entire project whole codebase from scratch with every module and full rewrite, implement build create design architect integrate distributed microservice test coverage benchmark, explain why analyze compare evaluate prove trade-off optimize debug",
	}
	for _, task := range tasks {
		res := e.Analyze(task)
		if res.Score < 0 || res.Score > 10 {
			t.Errorf("Analyze(%q).Score = %.2f, want in [0, 10]", task, res.Score)
		}
	}
}

// TestWarningMessage verifies ShouldWarn implies a non-empty message and a
// configurable threshold is honored.
func TestWarningMessage(t *testing.T) {
	heavy := "Refactor the whole codebase from scratch: redesign every module, migrate the pipeline step by step, and implement full test coverage across all files"

	res := NewEstimator().Analyze(heavy)
	if res.ShouldWarn && res.WarningMessage == "" {
		t.Error("ShouldWarn is true but WarningMessage is empty")
	}

	// With a threshold of 1 everything but trivial text warns.
	low := NewEstimatorWithThreshold(1)
	if res := low.Analyze(heavy); !res.ShouldWarn {
		t.Errorf("threshold 1 should warn for heavy task, score %.1f", res.Score)
	}
	if res := low.Analyze(heavy); res.WarningMessage == "" {
		t.Error("warning message empty with low threshold")
	}
}

// TestRecommendations verifies generation parameter recommendations follow
// the task-type and complexity tables.
func TestRecommendations(t *testing.T) {
	e := NewEstimator()

	res := e.AnalyzeWithHints("write a sort function", "code", "")
	if res.RecommendedTemperature > 0.2 {
		t.Errorf("code temperature = %.2f, want <= 0.2", res.RecommendedTemperature)
	}

	res = e.Analyze("hi")
	if res.RecommendedMaxTokens != 500 {
		t.Errorf("trivial max tokens = %d, want 500", res.RecommendedMaxTokens)
	}
	if res.RecommendedTier != TierFast {
		t.Errorf("trivial tier = %s, want fast", res.RecommendedTier)
	}
}

// TestTemperatureComplexShift verifies the -0.1 shift for complex+ levels
// and the 0.1 floor.
func TestTemperatureComplexShift(t *testing.T) {
	if got := TemperatureForTaskType("chat", LevelComplex); got != 0.6 {
		t.Errorf("chat/complex temperature = %.2f, want 0.6", got)
	}
	if got := TemperatureForTaskType("code", LevelExtreme); got != 0.1 {
		t.Errorf("code/extreme temperature = %.2f, want floor 0.1", got)
	}
	if got := TemperatureForTaskType("unknown-type", LevelSimple); got != 0.7 {
		t.Errorf("unknown task type temperature = %.2f, want general default 0.7", got)
	}
}

// TestParseLevel round-trips every level name.
func TestParseLevel(t *testing.T) {
	for l := LevelTrivial; l <= LevelExtreme; l++ {
		got, ok := ParseLevel(l.String())
		if !ok || got != l {
			t.Errorf("ParseLevel(%q) = %s, %v", l.String(), got, ok)
		}
	}
	if _, ok := ParseLevel("bogus"); ok {
		t.Error("ParseLevel accepted bogus level")
	}
}
