// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// STYLES
// =============================================================================

var (
	// Prompt style
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")). // Cyan
			Bold(true)

	// Welcome banner style
	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")). // Purple
			Bold(true)

	// Secondary information (hints, timestamps, counts)
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Light gray

	// Slash command names in help output
	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Emerald

	// Warnings and recoverable errors
	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")) // Amber

	// Hard errors
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // Red

	// Assistant role label
	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	// User role label
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	// Web source citations
	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)
