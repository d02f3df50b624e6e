// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/nanochat/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.CreateConversation(context.Background(), "keep", "m")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening migrates nothing and keeps the data.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	convs, err := store.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "keep", convs[0].Title)
}

func TestCreateConversationDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "", "test/model")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, conv.Title)
	assert.Equal(t, "test/model", conv.Model)
	assert.False(t, conv.WebSearchEnabled)

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, model.DefaultTitle, got.Title)
	assert.Equal(t, 0, got.MessageCount)
}

func TestGetConversationNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetConversation(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendMessageBumpsUpdatedAt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateConversation(ctx, "first", "m")
	require.NoError(t, err)
	second, err := store.CreateConversation(ctx, "second", "m")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, first.ID, model.RoleUser, "hi", false, nil)
	require.NoError(t, err)

	convs, err := store.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	// Message activity moved "first" ahead of "second".
	assert.Equal(t, first.ID, convs[0].ID)
	assert.Equal(t, second.ID, convs[1].ID)
	assert.Equal(t, 1, convs[0].MessageCount)

	// Nanosecond storage keeps updated_at strictly increasing even for
	// back-to-back appends.
	assert.True(t, convs[0].UpdatedAt.After(first.UpdatedAt))
	before := convs[0].UpdatedAt
	_, err = store.AppendMessage(ctx, first.ID, model.RoleAssistant, "hello", false, nil)
	require.NoError(t, err)
	got, err := store.GetConversation(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(before))
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	store := newTestStore(t)
	_, err := store.AppendMessage(context.Background(), 42, model.RoleUser, "hi", false, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListMessagesOrderAndSources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "c", "m")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, conv.ID, model.RoleUser, "question", false, nil)
	require.NoError(t, err)
	sources := []model.WebSource{{URL: "https://a.example", Title: "A"}}
	_, err = store.AppendMessage(ctx, conv.ID, model.RoleAssistant, "answer", true, sources)
	require.NoError(t, err)

	msgs, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "question", msgs[0].Content)
	assert.False(t, msgs[0].UsedWebSearch)
	assert.Nil(t, msgs[0].WebSources)

	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.True(t, msgs[1].UsedWebSearch)
	assert.Equal(t, sources, msgs[1].WebSources)
}

func TestDeleteConversationCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "c", "m")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, conv.ID, model.RoleUser, "hi", false, nil)
	require.NoError(t, err)

	require.NoError(t, store.DeleteConversation(ctx, conv.ID))

	_, err = store.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	msgs, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.ErrorIs(t, store.DeleteConversation(ctx, conv.ID), ErrNotFound)
}

func TestRenameConversation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "old", "m")
	require.NoError(t, err)

	require.NoError(t, store.RenameConversation(ctx, conv.ID, "new title"))
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "new title", got.Title)

	// Empty titles fall back to the default.
	require.NoError(t, store.RenameConversation(ctx, conv.ID, ""))
	got, err = store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultTitle, got.Title)

	assert.ErrorIs(t, store.RenameConversation(ctx, 999, "x"), ErrNotFound)
}

func TestSetWebSearchEnabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "c", "m")
	require.NoError(t, err)

	require.NoError(t, store.SetWebSearchEnabled(ctx, conv.ID, true))
	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.WebSearchEnabled)

	require.NoError(t, store.SetWebSearchEnabled(ctx, conv.ID, false))
	got, err = store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, got.WebSearchEnabled)
}

func TestDeleteLastAssistantMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "c", "m")
	require.NoError(t, err)

	_, err = store.AppendMessage(ctx, conv.ID, model.RoleUser, "q1", false, nil)
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, conv.ID, model.RoleAssistant, "a1", false, nil)
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, conv.ID, model.RoleUser, "q2", false, nil)
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, conv.ID, model.RoleAssistant, "a2", false, nil)
	require.NoError(t, err)

	require.NoError(t, store.DeleteLastAssistantMessage(ctx, conv.ID))

	msgs, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "q2", msgs[2].Content)

	// Only assistant messages are removed; the user questions stay.
	require.NoError(t, store.DeleteLastAssistantMessage(ctx, conv.ID))
	assert.ErrorIs(t, store.DeleteLastAssistantMessage(ctx, conv.ID), ErrNotFound)

	msgs, err = store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
}

func TestCountMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "c", "m")
	require.NoError(t, err)

	n, err := store.CountMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = store.AppendMessage(ctx, conv.ID, model.RoleUser, "q", false, nil)
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, conv.ID, model.RoleAssistant, "a", false, nil)
	require.NoError(t, err)

	n, err = store.CountMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
