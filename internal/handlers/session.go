package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/feed"
	"github.com/AnshRaj112/civicpulse-backend/internal/middleware"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/session"
	"github.com/AnshRaj112/civicpulse-backend/pkg/utils"
)

type SessionResponse struct {
	Success          bool                      `json:"success"`
	Message          string                    `json:"message,omitempty"`
	ClientID         string                    `json:"client_id"`
	OrganizationID   string                    `json:"organization_id,omitempty"`
	CanSubmit        bool                      `json:"can_submit"`
	WaitSeconds      int                       `json:"wait_seconds"`
	Karma            int                       `json:"karma"`
	OwnReports       int                       `json:"own_reports"`
	Resolved         int                       `json:"resolved"`
	DuplicateWarning *session.DuplicateWarning `json:"duplicate_warning,omitempty"`
}

func (h *Handler) sessionState(ctx context.Context, sess *session.Session) SessionResponse {
	resp := SessionResponse{
		Success:          true,
		ClientID:         sess.ID(),
		OrganizationID:   sess.OrganizationID(),
		CanSubmit:        sess.Check(ctx),
		WaitSeconds:      sess.WaitSeconds(ctx),
		DuplicateWarning: sess.DuplicateWarning(),
	}
	if f := sess.Feed(); f != nil {
		d := f.Derived()
		resp.Karma = d.Karma
		resp.OwnReports = len(d.OwnReports)
		resp.Resolved = d.Resolved
	}
	return resp
}

// GetSession returns the caller's organization, wait indicator and karma.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.sessionState(r.Context(), sess))
}

// ResetSession clears the rate-limit window and the organization pointer.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	clientID := middleware.ClientIDFromContext(r.Context())
	if err := h.Sessions.Reset(r.Context(), clientID); err != nil {
		h.Logger.Error("session reset failed", zap.String("client_id", clientID), zap.Error(err))
		utils.WriteError(w, apperr.External("reset_failed", "Failed to reset session.", err))
		return
	}
	utils.WriteMessage(w, http.StatusOK, "Session reset")
}

type SetOrganizationRequest struct {
	Slug string `json:"slug"`
}

type OrganizationFeedResponse struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message,omitempty"`
	Organization *models.Organization `json:"organization"`
	Reports      []models.Report      `json:"reports"`
	HasMore      bool                 `json:"has_more"`
}

// SetOrganization switches the caller to another organization and returns
// its first page of reports.
func (h *Handler) SetOrganization(w http.ResponseWriter, r *http.Request) {
	var req SetOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	if strings.TrimSpace(req.Slug) == "" {
		utils.WriteError(w, apperr.Validation("slug_required", "Organization is required."))
		return
	}

	sess, err := h.session(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	org, err := h.Orgs.GetBySlug(r.Context(), req.Slug)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := sess.SetOrganization(r.Context(), org.ID); err != nil {
		// the in-memory switch happened; only the pointer write failed
		h.Logger.Warn("failed to persist organization pointer", zap.String("client_id", sess.ID()), zap.Error(err))
	}

	f := sess.Feed()
	if err := loadFeed(r.Context(), f); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, OrganizationFeedResponse{
		Success:      true,
		Organization: org,
		Reports:      view(r, f.Reports()),
		HasMore:      f.HasMore(),
	})
}

func loadFeed(ctx context.Context, f *feed.Feed) error {
	if f == nil {
		return apperr.Validation("organization_required", "Select an organization first.")
	}
	if err := f.LoadInitial(ctx); err != nil {
		return apperr.External("feed_load_failed", "Failed to load reports.", err)
	}
	return nil
}
