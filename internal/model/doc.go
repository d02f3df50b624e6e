// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the domain types shared between the API client,
// the conversation store, and the send state machine: messages, conversation
// metadata, projects, web sources, and the thinking-block splitter that
// separates inline model reasoning from the answer that gets persisted.
package model
