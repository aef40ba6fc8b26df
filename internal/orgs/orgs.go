// Package orgs provisions organizations and resolves them by slug.
package orgs

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/store"
)

const (
	DemoSlug     = "demo"
	maxSlugTries = 5
)

// Demo is served for the "demo" slug when no such organization is stored.
var Demo = models.Organization{
	ID:        "demo",
	Name:      "Demo City",
	Slug:      DemoSlug,
	Center:    models.Point{X: 40.7128, Y: -74.0060},
	FocusArea: "General",
}

type Repository interface {
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Create(ctx context.Context, org *models.Organization) error
}

type Service struct {
	repo     Repository
	cache    *Cache
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService wires the repository. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, validate: validator.New(), logger: logger}
}

// Slugify generates a URL-friendly slug from an organization name.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '-'
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	if s == "" {
		s = "org"
	}
	return s
}

// uniqueSlug appends a short random suffix until the slug is free. Lookup
// failures fall back to a uuid-suffixed slug instead of blocking creation.
func (s *Service) uniqueSlug(ctx context.Context, base string) string {
	slug := base
	for {
		exists, err := s.repo.SlugExists(ctx, slug)
		if err != nil {
			s.logger.Warn("slug lookup failed", zap.String("slug", slug), zap.Error(err))
			return base + "-" + uuid.NewString()
		}
		if !exists {
			return slug
		}
		slug = base + "-" + uuid.NewString()[:8]
	}
}

// Create validates the wizard payload and stores the organization.
func (s *Service) Create(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("invalid_organization", validationMessage(err))
	}

	base := Slugify(req.Name)
	if req.Slug != "" {
		base = Slugify(req.Slug)
	}
	if base == DemoSlug {
		base = "demo-city"
	}

	org := &models.Organization{
		Name:      req.Name,
		Center:    models.Point{X: req.CenterX, Y: req.CenterY},
		FocusArea: strings.TrimSpace(req.FocusArea),
	}
	for i := 0; i < maxSlugTries; i++ {
		org.Slug = s.uniqueSlug(ctx, base)
		err := s.repo.Create(ctx, org)
		if errors.Is(err, store.ErrSlugTaken) {
			// lost a race with a concurrent create
			continue
		}
		if err != nil {
			return nil, apperr.External("org_create_failed", "Failed to create organization. Please try again.", err)
		}
		s.logger.Info("organization created", zap.String("org_id", org.ID), zap.String("slug", org.Slug))
		s.store(ctx, org)
		return org, nil
	}
	return nil, apperr.Validation("slug_taken", "That organization address is taken. Please choose another.")
}

// GetBySlug resolves an organization, serving Demo City for an unknown "demo".
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, apperr.Validation("slug_required", "Organization is required.")
	}

	if s.cache != nil {
		var cached models.Organization
		found, err := s.cache.Get(ctx, CacheKey("org", slug), &cached)
		if err != nil {
			s.logger.Warn("organization cache read failed", zap.String("slug", slug), zap.Error(err))
		}
		if errors.Is(err, ErrCorruptEntry) {
			if err := s.cache.Delete(ctx, CacheKey("org", slug)); err != nil {
				s.logger.Warn("organization cache evict failed", zap.String("slug", slug), zap.Error(err))
			}
		}
		if found {
			return &cached, nil
		}
	}

	org, err := s.repo.GetBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		if slug == DemoSlug {
			demo := Demo
			return &demo, nil
		}
		return nil, apperr.NotFound("org_not_found", "Organization not found.")
	}
	if err != nil {
		return nil, apperr.External("org_lookup_failed", "Failed to load organization.", err)
	}
	s.store(ctx, org)
	return org, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	if id == Demo.ID {
		demo := Demo
		return &demo, nil
	}
	org, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("org_not_found", "Organization not found.")
	}
	if err != nil {
		return nil, apperr.External("org_lookup_failed", "Failed to load organization.", err)
	}
	return org, nil
}

func (s *Service) store(ctx context.Context, org *models.Organization) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, CacheKey("org", strings.ToLower(org.Slug)), org, DefaultCacheTTL); err != nil {
		s.logger.Warn("organization cache write failed", zap.String("slug", org.Slug), zap.Error(err))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid organization details."
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Name":
		return "Organization name must be between 2 and 120 characters."
	case "Slug":
		return "Organization address is too long."
	case "CenterX", "CenterY":
		return "Map center is out of range."
	case "AdminEmail":
		return "Admin email is invalid."
	case "AdminPassword":
		return "Admin password is required with an admin email."
	}
	return "Invalid organization details."
}
