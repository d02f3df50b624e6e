// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides SQLite-backed persistence for conversations,
// messages, and projects.
//
// # Key Types
//
//   - Store: the database handle with all persistence operations
//
// # Usage
//
// Open a store and create a conversation:
//
//	store, err := storage.Open(dbPath)
//	conv, err := store.CreateConversation(ctx, "New Chat", model)
//
// Append messages (this bumps the conversation's updated_at in the same
// transaction):
//
//	msg, err := store.AppendMessage(ctx, conv.ID, model.RoleUser, text, false, nil)
//
// # Storage Location
//
// The database lives at ~/.nanochat/nanochat.db by default, in WAL mode
// with a single connection (SQLite allows one writer at a time).
package storage
