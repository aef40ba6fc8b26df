package models

import "time"

// Organization is a tenant workspace. The slug is unique and never changes.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Center    Point     `json:"center"`
	FocusArea string    `json:"focus_area"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateOrganizationRequest is the provisioning wizard payload.
type CreateOrganizationRequest struct {
	Name      string  `json:"name" validate:"required,min=2,max=120"`
	Slug      string  `json:"slug" validate:"omitempty,max=60"`
	CenterX   float64 `json:"center_x" validate:"gte=-180,lte=180"`
	CenterY   float64 `json:"center_y" validate:"gte=-180,lte=180"`
	FocusArea string  `json:"focus_area" validate:"max=120"`

	// Optional first staff account for the new organization.
	AdminEmail    string `json:"admin_email,omitempty" validate:"omitempty,email"`
	AdminPassword string `json:"admin_password,omitempty" validate:"required_with=AdminEmail"`
}
