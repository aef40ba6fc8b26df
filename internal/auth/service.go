// Package auth signs staff in to the triage dashboard and validates bearer
// tokens for staff and residents.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/store"
)

type StaffRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.StaffAccount, error)
	Create(ctx context.Context, a *models.StaffAccount) error
}

type Service struct {
	staff    StaffRepository
	tokens   *Tokens
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(staff StaffRepository, tokens *Tokens, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{staff: staff, tokens: tokens, validate: validator.New(), logger: logger}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

var errBadCredentials = apperr.Unauthorized("Invalid email or password.")

// SignIn checks the credentials and returns a staff token.
func (s *Service) SignIn(ctx context.Context, req models.SignInRequest) (*models.SignInResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("invalid_credentials", "Please enter a valid email and a password of at least 8 characters.")
	}

	acct, err := s.staff.GetByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, apperr.External("signin_failed", "Failed to sign in. Please try again.", err)
	}
	if !acct.IsActive {
		return nil, apperr.Unauthorized("This account has been deactivated.")
	}

	ok, err := VerifyPassword(req.Password, acct.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", zap.String("staff_id", acct.ID), zap.Error(err))
		return nil, errBadCredentials
	}
	if !ok {
		return nil, errBadCredentials
	}

	token, _, err := s.tokens.Issue(acct.ID, acct.Email, RoleStaff, acct.OrganizationID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("staff signed in", zap.String("staff_id", acct.ID), zap.String("org_id", acct.OrganizationID))
	return &models.SignInResponse{Success: true, Message: "Signed in", Staff: acct, Token: token}, nil
}

// CreateStaff registers the first dashboard account of a new organization.
func (s *Service) CreateStaff(ctx context.Context, email, password, orgID string) (*models.StaffAccount, error) {
	req := models.SignInRequest{Email: strings.ToLower(strings.TrimSpace(email)), Password: password}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation("invalid_staff_account", "Please enter a valid email and a password of at least 8 characters.")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	acct := &models.StaffAccount{Email: req.Email, PasswordHash: hash, OrganizationID: orgID}
	err = s.staff.Create(ctx, acct)
	if errors.Is(err, store.ErrEmailTaken) {
		return nil, apperr.Validation("email_taken", "An account with this email already exists.")
	}
	if err != nil {
		return nil, apperr.External("staff_create_failed", "Failed to create staff account.", err)
	}
	return acct, nil
}
