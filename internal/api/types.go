// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "github.com/jeranaias/nanochat/internal/model"

// =============================================================================
// CHAT TYPES
// =============================================================================

// ChatMessage represents a single message in a chat completion request.
// Only role and content cross the wire; message metadata stays local.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// chatRequest is the chat completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatResponse is the non-streaming chat completions response body.
type chatResponse struct {
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// =============================================================================
// WEB SEARCH TYPES
// =============================================================================

// webSearchRequest is the web search endpoint request body. Web search is
// always single-shot: there is no streaming variant of this endpoint.
type webSearchRequest struct {
	Query      string `json:"query"`
	Depth      string `json:"depth"`
	OutputType string `json:"outputType"`
}

// =============================================================================
// MODELS TYPES
// =============================================================================

// modelsResponse is the response body for listing available models.
type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// =============================================================================
// SEND REQUEST
// =============================================================================

// SendRequest describes one message-send call to the backend.
type SendRequest struct {
	// Message is the new user message text.
	Message string

	// History is the trimmed prior conversation, role/content pairs only.
	// It must not include the message being sent.
	History []ChatMessage

	// SystemPrompt, when non-empty, is prepended as a system message.
	SystemPrompt string

	// UseWebSearch routes the call to the web search endpoint. Web search
	// responses are always single-shot regardless of Stream.
	UseWebSearch bool

	// Stream requests incremental token deltas from the chat endpoint.
	Stream bool

	// Temperature is the sampling temperature. Zero means the backend default.
	Temperature float64

	// MaxTokens caps the generated output. Zero means the client default.
	MaxTokens int

	// Model overrides the client's default model when non-empty.
	Model string
}

// messages assembles the wire-format message list for the chat endpoint:
// optional system prompt, prior history, then the new user message.
func (r *SendRequest) messages() []ChatMessage {
	msgs := make([]ChatMessage, 0, len(r.History)+2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, NewSystemMessage(r.SystemPrompt))
	}
	msgs = append(msgs, r.History...)
	msgs = append(msgs, NewUserMessage(r.Message))
	return msgs
}

// StreamChunk is the uniform unit of communication between the client and
// its consumer, normalized from the heterogeneous backend response shapes.
// Transient: chunks are never persisted as-is.
type StreamChunk struct {
	// Content is the incremental content delta (or, for single-shot
	// responses, the complete answer).
	Content string

	// Done marks the terminal chunk of the stream.
	Done bool

	// WebSources carries citations when the backend attaches them, either
	// mid-stream or on the terminal chunk.
	WebSources []model.WebSource
}
