package models

import "time"

// Identity is the signed-in resident attached to reports for attribution.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// StaffAccount can sign in to the triage dashboard of one organization.
type StaffAccount struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	IsActive       bool      `json:"is_active"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignInResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Staff   *StaffAccount `json:"staff,omitempty"`
	Token   string        `json:"token,omitempty"`
}
