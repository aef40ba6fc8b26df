package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/pkg/utils"
)

// insightsSampleSize bounds how many recent reports feed one insights brief.
const insightsSampleSize = 100

type OrganizationResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message,omitempty"`
	Organization *models.Organization `json:"organization"`
	Staff        *models.StaffAccount `json:"staff,omitempty"`
}

func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.Orgs.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, OrganizationResponse{Success: true, Organization: org})
}

// CreateOrganization runs the provisioning wizard. When admin credentials
// are included the first staff account is created as well.
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	org, err := h.Orgs.Create(ctx, req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	resp := OrganizationResponse{Success: true, Message: "Organization created", Organization: org}
	if req.AdminEmail != "" && h.Auth != nil {
		acct, err := h.Auth.CreateStaff(ctx, req.AdminEmail, req.AdminPassword, org.ID)
		if err != nil {
			h.Logger.Warn("organization created without staff account", zap.String("org_id", org.ID), zap.Error(err))
			resp.Message = "Organization created, but the staff account could not be: " + apperr.Message(err)
		} else {
			resp.Staff = acct
		}
	}
	utils.WriteJSON(w, http.StatusCreated, resp)
}

type InsightsResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message,omitempty"`
	Brief       string    `json:"brief"`
	ReportCount int       `json:"report_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// GetInsights writes an executive brief of the staff member's organization.
func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	claims := staffClaims(r)
	if claims == nil {
		utils.WriteError(w, apperr.Unauthorized("Staff access required."))
		return
	}
	if h.Insights == nil {
		utils.WriteError(w, apperr.Config("ai_unconfigured", "AI insights are not configured."))
		return
	}

	ctx := r.Context()
	org, err := h.Orgs.GetBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if org.ID != claims.OrganizationID {
		utils.WriteError(w, apperr.NotFound("org_not_found", "Organization not found."))
		return
	}
	listCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	reports, err := h.Reports.List(listCtx, org.ID, 0, insightsSampleSize)
	cancel()
	if err != nil {
		utils.WriteError(w, apperr.External("feed_load_failed", "Failed to load reports.", err))
		return
	}

	brief, err := h.Insights.GenerateReport(ctx, org.Name, reports)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, InsightsResponse{
		Success:     true,
		Brief:       brief,
		ReportCount: len(reports),
		GeneratedAt: time.Now().UTC(),
	})
}
