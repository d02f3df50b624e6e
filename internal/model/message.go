// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// WEB SOURCE TYPE
// =============================================================================

// WebSource is a single citation attached to a web-search answer.
type WebSource struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// EncodeWebSources serializes sources for storage. Returns "" for an empty
// or nil list so the column stays NULL when no sources were captured.
func EncodeWebSources(sources []WebSource) string {
	if len(sources) == 0 {
		return ""
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeWebSources parses the stored JSON form back into sources.
// An empty string decodes to nil.
func DecodeWebSources(raw string) []WebSource {
	if raw == "" {
		return nil
	}
	var sources []WebSource
	if err := json.Unmarshal([]byte(raw), &sources); err != nil {
		return nil
	}
	return sources
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single persisted message in a conversation.
// Messages are immutable once written; the assistant message of a send cycle
// is created exactly once, after the stream completes.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`

	// Web search metadata
	UsedWebSearch bool        `json:"used_web_search"`
	WebSources    []WebSource `json:"web_sources,omitempty"`
}
