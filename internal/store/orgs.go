package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

var ErrSlugTaken = errors.New("slug already taken")

type PostgresOrgs struct {
	db *sql.DB
}

func NewPostgresOrgs(db *sql.DB) *PostgresOrgs {
	return &PostgresOrgs{db: db}
}

const orgColumns = `id, name, slug, center_x, center_y, focus_area, created_at`

func scanOrg(row interface{ Scan(...any) error }) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.Center.X, &o.Center.Y, &o.FocusArea, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresOrgs) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE LOWER(slug) = LOWER($1)`,
		strings.TrimSpace(slug))
	return scanOrg(row)
}

func (s *PostgresOrgs) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	return scanOrg(row)
}

func (s *PostgresOrgs) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM organizations WHERE LOWER(slug) = LOWER($1))`, slug).Scan(&exists)
	return exists, err
}

// Create inserts org and fills in ID and CreatedAt.
func (s *PostgresOrgs) Create(ctx context.Context, org *models.Organization) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO organizations (name, slug, center_x, center_y, focus_area)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, org.Name, org.Slug, org.Center.X, org.Center.Y, org.FocusArea).Scan(&org.ID, &org.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrSlugTaken
	}
	return err
}
