// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/nanochat/internal/model"
)

// =============================================================================
// CONVERSATION OPERATIONS
// =============================================================================

// CreateConversation inserts a new conversation and returns it. An empty
// title gets the default.
func (s *Store) CreateConversation(ctx context.Context, title, chatModel string) (*model.Conversation, error) {
	if title == "" {
		title = model.DefaultTitle
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (title, model, web_search_enabled, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
	`, title, chatModel, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &model.Conversation{
		ID:        id,
		Title:     title,
		Model:     chatModel,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation loads one conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id int64) (*model.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.title, c.model, c.web_search_enabled, c.project_id,
		       c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE c.id = ?
	`, id)
	return scanConversation(row)
}

// ListConversations returns all conversations, most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]*model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.model, c.web_search_enabled, c.project_id,
		       c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()
	return collectConversations(rows)
}

// ListConversationsByProject returns the conversations assigned to one
// project, most recently updated first. projectID 0 selects unassigned
// conversations.
func (s *Store) ListConversationsByProject(ctx context.Context, projectID int64) ([]*model.Conversation, error) {
	query := `
		SELECT c.id, c.title, c.model, c.web_search_enabled, c.project_id,
		       c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		WHERE `
	var args []any
	if projectID == 0 {
		query += "c.project_id IS NULL"
	} else {
		query += "c.project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY c.updated_at DESC, c.id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()
	return collectConversations(rows)
}

// RenameConversation sets a conversation's title. Renaming does not bump
// updated_at; only message activity does.
func (s *Store) RenameConversation(ctx context.Context, id int64, title string) error {
	if title == "" {
		title = model.DefaultTitle
	}
	res, err := s.db.ExecContext(ctx, "UPDATE conversations SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return requireRow(res)
}

// SetConversationModel records the model a conversation uses.
func (s *Store) SetConversationModel(ctx context.Context, id int64, chatModel string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE conversations SET model = ? WHERE id = ?", chatModel, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return requireRow(res)
}

// SetWebSearchEnabled toggles the per-conversation web search preference.
func (s *Store) SetWebSearchEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET web_search_enabled = ? WHERE id = ?", boolToInt(enabled), id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return requireRow(res)
}

// AssignConversationToProject moves a conversation into a project.
// projectID 0 unassigns it.
func (s *Store) AssignConversationToProject(ctx context.Context, id, projectID int64) error {
	var pid any
	if projectID != 0 {
		pid = projectID
	}
	res, err := s.db.ExecContext(ctx, "UPDATE conversations SET project_id = ? WHERE id = ?", pid, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return requireRow(res)
}

// DeleteConversation removes a conversation and, via cascade, its messages.
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return requireRow(res)
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// AppendMessage inserts a message and bumps the conversation's updated_at in
// the same transaction, keeping the listing order consistent with message
// activity.
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, role model.Role, content string, usedWebSearch bool, sources []model.WebSource) (*model.Message, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	encoded := model.EncodeWebSources(sources)
	var sourcesCol any
	if encoded != "" {
		sourcesCol = encoded
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, role, content, used_web_search, web_sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, conversationID, string(role), content, boolToInt(usedWebSearch), sourcesCol, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	bump, err := tx.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE id = ?", now.UnixNano(), conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if err := requireRow(bump); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &model.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
		UsedWebSearch:  usedWebSearch,
		WebSources:     sources,
	}, nil
}

// ListMessages returns a conversation's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, used_web_search, web_sources, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		var (
			m       model.Message
			role    string
			used    int
			sources sql.NullString
			created int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &used, &sources, &created); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
		m.Role = model.Role(role)
		m.UsedWebSearch = used != 0
		m.WebSources = model.DecodeWebSources(sources.String)
		m.CreatedAt = time.Unix(0, created).UTC()
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return msgs, nil
}

// CountMessages returns the number of messages in a conversation.
func (s *Store) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return n, nil
}

// DeleteLastAssistantMessage removes the most recent assistant message of a
// conversation. Used by regenerate before re-sending the prior user message.
// Returns ErrNotFound when the conversation has no assistant messages.
func (s *Store) DeleteLastAssistantMessage(ctx context.Context, conversationID int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE id = (
			SELECT id FROM messages
			WHERE conversation_id = ? AND role = ?
			ORDER BY id DESC
			LIMIT 1
		)
	`, conversationID, string(model.RoleAssistant))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return requireRow(res)
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*model.Conversation, error) {
	var (
		c         model.Conversation
		webSearch int
		projectID sql.NullInt64
		created   int64
		updated   int64
	)
	err := row.Scan(&c.ID, &c.Title, &c.Model, &webSearch, &projectID, &created, &updated, &c.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	c.WebSearchEnabled = webSearch != 0
	c.ProjectID = projectID.Int64
	c.CreatedAt = time.Unix(0, created).UTC()
	c.UpdatedAt = time.Unix(0, updated).UTC()
	return &c, nil
}

func collectConversations(rows *sql.Rows) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return convs, nil
}

// requireRow converts a zero-row update or delete into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
