// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
)

// ============================================================================
// TASK TYPE CLASSIFICATION
// ============================================================================

// Task categories the keyword classifier produces.
const (
	TaskCode       = "code"
	TaskAnalysis   = "analysis"
	TaskResearch   = "research"
	TaskReasoning  = "reasoning"
	TaskSimpleChat = "simple_chat"
	TaskGeneral    = "general"
)

// taskCategory pairs a category with its trigger keywords. Order matters:
// the first category with a match wins.
type taskCategory struct {
	name     string
	keywords []string
}

var taskCategories = []taskCategory{
	{TaskCode, []string{
		"code", "function", "class", "script", "implement", "refactor",
		"debug", "compile", "python", "javascript", "write a", "build a",
		"generate a", "api", "game", "app",
	}},
	{TaskAnalysis, []string{
		"analyze", "analysis", "compare", "evaluate", "examine", "review",
	}},
	{TaskResearch, []string{
		"research", "find information", "what is", "look up", "investigate",
	}},
	{TaskReasoning, []string{
		"explain", "why", "how does", "how it works", "logic", "prove",
	}},
	{TaskSimpleChat, []string{
		"hello", "hi", "hey", "how are you", "good morning", "thanks",
	}},
}

// KeywordClassifier classifies tasks by keyword lookup. Deterministic:
// first matching category in table order wins, default is general.
type KeywordClassifier struct{}

// Classify implements Classifier.
func (KeywordClassifier) Classify(text string) string {
	// Pad with spaces so single-word keywords match on word boundaries
	// ("hi" must not fire inside "this").
	q := " " + strings.ToLower(text) + " "
	for _, c := range []string{",", ".", "!", "?", ":", ";"} {
		q = strings.ReplaceAll(q, c, " ")
	}

	for _, cat := range taskCategories {
		for _, kw := range cat.keywords {
			if strings.Contains(q, " "+kw+" ") {
				return cat.name
			}
		}
	}
	return TaskGeneral
}
