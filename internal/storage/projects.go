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
// PROJECT OPERATIONS
// =============================================================================

// CreateProject inserts a new project. The new project is appended to the
// display order. An empty color gets the default.
func (s *Store) CreateProject(ctx context.Context, name, color, description string) (*model.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("project name cannot be empty")
	}
	if color == "" {
		color = model.DefaultProjectColor
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	var maxOrder sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT MAX(order_index) FROM projects").Scan(&maxOrder); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	order := int(maxOrder.Int64) + 1

	res, err := tx.ExecContext(ctx, `
		INSERT INTO projects (name, color, description, order_index, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, name, color, description, order, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &model.Project{
		ID:          id,
		Name:        name,
		Color:       color,
		Description: description,
		OrderIndex:  order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetProject loads one project by ID.
func (s *Store) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, color, description, order_index, created_at, updated_at
		FROM projects WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects returns all projects in display order.
func (s *Store) ListProjects(ctx context.Context) ([]*model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, color, description, order_index, created_at, updated_at
		FROM projects
		ORDER BY order_index ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return projects, nil
}

// UpdateProject sets a project's name, color, and description.
func (s *Store) UpdateProject(ctx context.Context, id int64, name, color, description string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if color == "" {
		color = model.DefaultProjectColor
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, color = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, name, color, description, time.Now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return requireRow(res)
}

// DeleteProject removes a project. Its conversations are kept and become
// unassigned (project_id set to NULL by the foreign key).
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return requireRow(res)
}

// ReorderProjects applies a new display order. ids lists every project ID in
// the desired order; missing projects keep their old index.
func (s *Store) ReorderProjects(ctx context.Context, ids []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"UPDATE projects SET order_index = ? WHERE id = ?", i, id); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	return nil
}

func scanProject(row rowScanner) (*model.Project, error) {
	var (
		p       model.Project
		created int64
		updated int64
	)
	err := row.Scan(&p.ID, &p.Name, &p.Color, &p.Description, &p.OrderIndex, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}
