// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "strings"

// =============================================================================
// CONVERSATION MODES
// =============================================================================

// Mode bundles the generation parameters for one conversation style. Modes
// select a system prompt and temperature; they never change the model.
type Mode struct {
	// Name is the stable identifier used in config and commands.
	Name string
	// Label is the human-readable display name.
	Label string
	// SystemPrompt is prepended to every request in this mode. Empty means
	// no system message.
	SystemPrompt string
	// Temperature is the sampling temperature for this mode.
	Temperature float64
	// WebSearchDefault enables web search for conversations started in
	// this mode.
	WebSearchDefault bool
}

// modes is the fixed mode table, in display order.
var modes = []Mode{
	{
		Name:         "standard",
		Label:        "Standard",
		SystemPrompt: "",
		Temperature:  0.7,
	},
	{
		Name:  "create",
		Label: "Create",
		SystemPrompt: "You are a creative collaborator. Offer vivid, original ideas, " +
			"embrace unusual angles, and build on the user's direction rather than " +
			"playing it safe.",
		Temperature: 1.0,
	},
	{
		Name:  "explore",
		Label: "Explore",
		SystemPrompt: "You are a research companion. Survey the topic broadly, name " +
			"competing viewpoints, and point at sources or directions worth digging into.",
		Temperature:      0.8,
		WebSearchDefault: true,
	},
	{
		Name:  "code",
		Label: "Code",
		SystemPrompt: "You are an expert programmer. Give working, idiomatic code with " +
			"brief explanations. Prefer complete examples over fragments and mention " +
			"pitfalls only when they matter.",
		Temperature: 0.3,
	},
	{
		Name:  "learn",
		Label: "Learn",
		SystemPrompt: "You are a patient tutor. Explain step by step from first " +
			"principles, check understanding with short questions, and use concrete " +
			"examples before abstractions.",
		Temperature: 0.5,
	},
}

// Modes returns the mode table in display order.
func Modes() []Mode {
	out := make([]Mode, len(modes))
	copy(out, modes)
	return out
}

// ModeNames returns the valid mode identifiers in display order.
func ModeNames() []string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = m.Name
	}
	return names
}

// ModeByName looks up a mode by its identifier, case-insensitively.
func ModeByName(name string) (Mode, bool) {
	for _, m := range modes {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return Mode{}, false
}

// IsValidMode reports whether name identifies a known mode.
func IsValidMode(name string) bool {
	_, ok := ModeByName(name)
	return ok
}
