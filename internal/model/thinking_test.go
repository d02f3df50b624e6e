// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitThinking(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		visible   string
		reasoning string
		open      bool
	}{
		{
			name:    "no tag passes through",
			content: "plain answer text",
			visible: "plain answer text",
		},
		{
			name:      "closed block keeps only trailing answer",
			content:   "pre<think>reasoning</think>post",
			visible:   "post",
			reasoning: "reasoning",
		},
		{
			name:      "open block hides everything",
			content:   "<think>still going",
			reasoning: "still going",
			open:      true,
		},
		{
			name:      "thought variant",
			content:   "<thought>hmm</thought>the answer",
			visible:   "the answer",
			reasoning: "hmm",
		},
		{
			name:      "multiline reasoning",
			content:   "<think>line one\nline two</think>\nanswer",
			visible:   "\nanswer",
			reasoning: "line one\nline two",
		},
		{
			name:      "open block after prefix text",
			content:   "lead-in <think>partial",
			reasoning: "partial",
			open:      true,
		},
		{
			name:    "empty content",
			content: "",
			visible: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitThinking(tt.content)
			assert.Equal(t, tt.visible, got.Visible)
			assert.Equal(t, tt.reasoning, got.Reasoning)
			assert.Equal(t, tt.open, got.Open)
		})
	}
}

func TestWebSourcesRoundTrip(t *testing.T) {
	sources := []WebSource{
		{URL: "https://example.com/a", Title: "A"},
		{URL: "https://example.com/b", Title: "B"},
	}

	encoded := EncodeWebSources(sources)
	assert.NotEmpty(t, encoded)
	assert.Equal(t, sources, DecodeWebSources(encoded))

	assert.Empty(t, EncodeWebSources(nil))
	assert.Nil(t, DecodeWebSources(""))
	assert.Nil(t, DecodeWebSources("not json"))
}

func TestRoleDisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())
	assert.Equal(t, "System", RoleSystem.DisplayName())
	assert.Equal(t, "other", Role("other").DisplayName())
}
