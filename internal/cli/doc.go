// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the interactive terminal front-end: a liner-based
// read-eval loop with slash commands, glamour markdown rendering for
// assistant replies, and lipgloss styling for prompts and status lines.
//
// The package is a thin presentation layer. All conversation and streaming
// logic lives in internal/state; the CLI consumes its event channels and
// prints deltas as they arrive.
package cli
