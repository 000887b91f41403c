// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"testing"
)

func TestClassify(t *testing.T) {
	c := KeywordClassifier{}

	tests := []struct {
		text string
		want string
	}{
		{"write a function to reverse a string", TaskCode},
		{"refactor the billing module", TaskCode},
		{"please analyze these benchmark results", TaskAnalysis},
		{"compare postgres and sqlite", TaskAnalysis},
		{"what is a bloom filter", TaskResearch},
		{"explain the raft consensus algorithm", TaskReasoning},
		{"why does the sky look blue", TaskReasoning},
		{"hello there", TaskSimpleChat},
		{"hi", TaskSimpleChat},
		{"summarize this document for me", TaskGeneral},
		{"", TaskGeneral},
	}

	for _, tt := range tests {
		if got := c.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyWordBoundaries(t *testing.T) {
	c := KeywordClassifier{}

	// "hi" inside "this" must not classify as chat.
	if got := c.Classify("summarize this for me"); got == TaskSimpleChat {
		t.Errorf("Classify matched a keyword inside another word")
	}
}

func TestClassifyFirstCategoryWins(t *testing.T) {
	c := KeywordClassifier{}

	// Matches both code ("function") and reasoning ("explain"); code is
	// declared first.
	if got := c.Classify("explain this function"); got != TaskCode {
		t.Errorf("Classify() = %q, want %q", got, TaskCode)
	}
}
