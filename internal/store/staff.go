package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

var ErrEmailTaken = errors.New("email already registered")

type PostgresStaff struct {
	db *sql.DB
}

func NewPostgresStaff(db *sql.DB) *PostgresStaff {
	return &PostgresStaff{db: db}
}

func (s *PostgresStaff) GetByEmail(ctx context.Context, email string) (*models.StaffAccount, error) {
	var a models.StaffAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, organization_id, created_at, is_active
		FROM staff_accounts
		WHERE LOWER(email) = LOWER($1)
	`, strings.TrimSpace(email)).Scan(&a.ID, &a.Email, &a.PasswordHash, &a.OrganizationID, &a.CreatedAt, &a.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a staff account; PasswordHash must already be hashed.
func (s *PostgresStaff) Create(ctx context.Context, a *models.StaffAccount) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO staff_accounts (email, password_hash, organization_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, is_active
	`, strings.ToLower(strings.TrimSpace(a.Email)), a.PasswordHash, a.OrganizationID).Scan(&a.ID, &a.CreatedAt, &a.IsActive)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}
