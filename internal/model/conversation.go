// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// DefaultTitle is the title given to a conversation before one is set
// manually or generated from the first exchange.
const DefaultTitle = "New Chat"

// Conversation holds the metadata of a chat session. Message bodies are
// loaded separately; UpdatedAt is bumped on every message append and is the
// sort key for conversation listings.
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Model     string    `json:"model"`

	// Per-conversation web search preference.
	WebSearchEnabled bool `json:"web_search_enabled"`

	// Optional project assignment. Zero means unassigned.
	ProjectID int64 `json:"project_id,omitempty"`

	// MessageCount is populated by listing queries.
	MessageCount int `json:"message_count,omitempty"`
}

// Project groups conversations into a named folder.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	OrderIndex  int       `json:"order_index"`
}

// DefaultProjectColor is used when a project is created without a color.
const DefaultProjectColor = "#4a9eff"
