// Package templates stores user email templates in Postgres and renders
// them with Liquid.
package templates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("template not found")
	ErrInvalid  = errors.New("invalid template")
)

// Template is a reusable email body owned by one user.
type Template struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Category    string    `json:"category"`
	Content     string    `json:"content"`
	HTMLContent string    `json:"html_content"`
	UsageCount  int       `json:"usage_count"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input is the editable part of a template.
type Input struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Category    string `json:"category"`
	Content     string `json:"content"`
	HTMLContent string `json:"html_content"`
}

// Validate checks required fields and fills defaults.
func (in *Input) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if in.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalid)
	}
	if in.Category == "" {
		in.Category = "general"
	}
	if in.HTMLContent == "" {
		in.HTMLContent = in.Content
	}
	return nil
}

// Store implements template persistence against PostgreSQL.
type Store struct{ db *sql.DB }

// NewStore creates a Postgres-backed template store.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const templateColumns = `id, user_id, name, subject, category, content, html_content, usage_count, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(s scanner) (*Template, error) {
	var t Template
	if err := s.Scan(&t.ID, &t.UserID, &t.Name, &t.Subject, &t.Category, &t.Content,
		&t.HTMLContent, &t.UsageCount, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns the user's active templates, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+templateColumns+`
		FROM email_templates
		WHERE user_id = $1 AND is_active = true
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := []Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// validID reports whether id can match the uuid primary key. Anything else
// is treated as missing rather than sent to Postgres.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns one active template owned by the user.
func (s *Store) Get(ctx context.Context, userID, id string) (*Template, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM email_templates
		WHERE id = $1 AND user_id = $2 AND is_active = true
	`, id, userID)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// Create inserts a template for the user.
func (s *Store) Create(ctx context.Context, userID string, in Input) (*Template, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO email_templates (id, user_id, name, subject, category, content, html_content, usage_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, true, NOW(), NOW())
		RETURNING `+templateColumns,
		uuid.New().String(), userID, in.Name, in.Subject, in.Category, in.Content, in.HTMLContent)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

// Update replaces the editable fields of a template.
func (s *Store) Update(ctx context.Context, userID, id string, in Input) (*Template, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE email_templates
		SET name = $3, subject = $4, category = $5, content = $6, html_content = $7, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active = true
		RETURNING `+templateColumns,
		id, userID, in.Name, in.Subject, in.Category, in.Content, in.HTMLContent)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return t, nil
}

// Delete deactivates a template; the row is kept.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_templates SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active = true
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsage bumps the usage counter after a template is used.
func (s *Store) IncrementUsage(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE email_templates SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active = true
	`, id, userID)
	if err != nil {
		return fmt.Errorf("increment template usage: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
