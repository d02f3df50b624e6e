// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "regexp"

// Reasoning models emit an inline reasoning span wrapped in <think>...</think>
// (some backends use <thought>...</thought>). The span is shown live in the
// UI while it streams but is never part of conversation history: only the
// visible answer is persisted.

// thinkingRe matches an opening tag, its reasoning body, and either the
// matching closing tag or end-of-input (block still streaming).
var thinkingRe = regexp.MustCompile(`(?s)<(think|thought)>(.*?)(</(?:think|thought)>|$)`)

// ThinkingSplit is the result of separating a reasoning span from the
// visible answer of an accumulated assistant response.
type ThinkingSplit struct {
	// Visible is the answer text. While the block is still open, no answer
	// is visible; once the closing tag has arrived, everything after it is.
	Visible string

	// Reasoning is the text between the tags accumulated so far.
	Reasoning string

	// Open reports that an opening tag was seen without its closing tag yet.
	Open bool
}

// SplitThinking separates a <think>/<thought> reasoning span from content.
// Content without a tag passes through untouched.
func SplitThinking(content string) ThinkingSplit {
	loc := thinkingRe.FindStringSubmatchIndex(content)
	if loc == nil {
		return ThinkingSplit{Visible: content}
	}

	reasoning := content[loc[4]:loc[5]]
	closing := content[loc[6]:loc[7]]

	if closing == "" {
		// Closing tag not seen yet: everything after the opening tag is
		// in-progress reasoning and nothing is visible.
		return ThinkingSplit{Reasoning: reasoning, Open: true}
	}

	return ThinkingSplit{Visible: content[loc[1]:], Reasoning: reasoning}
}
