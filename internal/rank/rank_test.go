// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rank

import (
	"context"
	"errors"
	"testing"

	"github.com/jeranaias/rigroute/internal/complexity"
)

type stubLister struct {
	models []string
	err    error
}

func (s *stubLister) ListModels(ctx context.Context) ([]string, error) {
	return s.models, s.err
}

func TestParamCount(t *testing.T) {
	tests := []struct {
		model string
		want  float64
	}{
		{"llama3.1:8b", 8},
		{"qwen2.5-coder:14b", 14},
		{"deepseek-r1:1.5b", 1.5},
		{"llama3.3:70b", 70},
		{"mistral", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ParamCount(tt.model); got != tt.want {
			t.Errorf("ParamCount(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestScoreFamilies(t *testing.T) {
	coder := Score("qwen2.5-coder:14b", "code", complexity.LevelModerate)
	chat := Score("llama3.1:8b", "code", complexity.LevelModerate)

	if coder.Scores.Capability <= chat.Scores.Capability {
		t.Errorf("coder capability %v should exceed generic %v for code tasks",
			coder.Scores.Capability, chat.Scores.Capability)
	}
}

func TestScoreSizeTradeoff(t *testing.T) {
	big := Score("llama3.3:70b", "general", complexity.LevelComplex)
	small := Score("llama3.2:3b", "general", complexity.LevelComplex)

	if big.Scores.Quality <= small.Scores.Quality {
		t.Errorf("70b quality %v should exceed 3b quality %v", big.Scores.Quality, small.Scores.Quality)
	}
	if big.Scores.Speed >= small.Scores.Speed {
		t.Errorf("70b speed %v should trail 3b speed %v", big.Scores.Speed, small.Scores.Speed)
	}
	// Complex tasks weight quality over speed, so the big model wins overall.
	if big.Scores.Total <= small.Scores.Total {
		t.Errorf("70b total %v should exceed 3b total %v on complex tasks", big.Scores.Total, small.Scores.Total)
	}
}

func TestScoreTrivialPrefersSpeed(t *testing.T) {
	big := Score("llama3.3:70b", "general", complexity.LevelTrivial)
	small := Score("llama3.2:3b", "general", complexity.LevelTrivial)

	if small.Scores.Total <= big.Scores.Total {
		t.Errorf("trivial tasks should favor the small model: 3b=%v 70b=%v",
			small.Scores.Total, big.Scores.Total)
	}
}

func TestRankPreferred(t *testing.T) {
	r := NewLocalRanker(&stubLister{models: []string{"llama3.3:70b", "llama3.2:3b", "mistral:7b"}})

	got, err := r.Rank(context.Background(), "general", complexity.LevelComplex, "mistral:7b")
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got.Model != "mistral:7b" {
		t.Errorf("Rank() = %q, want preferred mistral:7b", got.Model)
	}

	// Preferred model that is not installed falls back to the best ranked.
	got, err = r.Rank(context.Background(), "general", complexity.LevelComplex, "gpt-4")
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if got.Model != "llama3.3:70b" {
		t.Errorf("Rank() = %q, want llama3.3:70b", got.Model)
	}
}

func TestRankNoModels(t *testing.T) {
	r := NewLocalRanker(&stubLister{})

	_, err := r.Rank(context.Background(), "general", complexity.LevelModerate, "")
	if !errors.Is(err, ErrNoModelAvailable) {
		t.Errorf("Rank() error = %v, want ErrNoModelAvailable", err)
	}
}

func TestRankListerError(t *testing.T) {
	sentinel := errors.New("connection refused")
	r := NewLocalRanker(&stubLister{err: sentinel})

	_, err := r.Rank(context.Background(), "general", complexity.LevelModerate, "")
	if !errors.Is(err, sentinel) {
		t.Errorf("Rank() error = %v, want wrapped lister error", err)
	}
}

func TestRankedDeterministicOrder(t *testing.T) {
	r := NewLocalRanker(&stubLister{models: []string{"b-model:7b", "a-model:7b"}})

	ranked, err := r.Ranked(context.Background(), "general", complexity.LevelModerate)
	if err != nil {
		t.Fatalf("Ranked() error = %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("Ranked() len = %d, want 2", len(ranked))
	}
	if ranked[0].Model != "a-model:7b" {
		t.Errorf("equal scores should order by name, got %q first", ranked[0].Model)
	}
}
