package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/objectstore"
	"github.com/AnshRaj112/civicpulse-backend/internal/pipeline"
	"github.com/AnshRaj112/civicpulse-backend/internal/realtime"
	"github.com/AnshRaj112/civicpulse-backend/internal/sanitize"
	"github.com/AnshRaj112/civicpulse-backend/internal/store"
	"github.com/AnshRaj112/civicpulse-backend/pkg/utils"
)

const maxNoteLength = 2000

type ReportResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Report  *models.Report `json:"report,omitempty"`
}

type ReportsResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Reports []models.Report `json:"reports"`
	HasMore bool            `json:"has_more"`
	Karma   int             `json:"karma"`
}

// SubmitReport accepts JSON or multipart (with an optional "image" file).
// An empty draft is ignored with 204.
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	draft, err := parseDraft(w, r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	sub, err := h.Pipeline.Submit(r.Context(), sess, draft)
	if errors.Is(err, pipeline.ErrNoop) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		if apperr.KindOf(err) == 0 || apperr.Is(err, apperr.KindExternal) {
			h.Logger.Error("report submission failed", zap.String("client_id", sess.ID()), zap.Error(err))
		}
		utils.WriteError(w, err)
		return
	}

	rep := sub.Report
	if staffClaims(r) == nil {
		rep = rep.Public()
	}
	utils.WriteJSON(w, http.StatusCreated, ReportResponse{
		Success: true,
		Message: "Report submitted. Thank you!",
		Report:  &rep,
	})
}

func parseDraft(w http.ResponseWriter, r *http.Request) (pipeline.Draft, error) {
	var d pipeline.Draft
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := decodeJSON(w, r, &d)
		return d, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, objectstore.MaxObjectSize+(1<<20))
	if err := r.ParseMultipartForm(objectstore.MaxObjectSize); err != nil {
		return d, apperr.Validation("invalid_form", "Failed to parse form. Images must be under 10MB.")
	}
	d.Content = r.FormValue("content")
	d.Category = r.FormValue("category")
	d.ChallengeToken = r.FormValue("challenge_token")
	d.AuthorName = r.FormValue("author_name")
	d.ContactEmail = r.FormValue("contact_email")
	d.Language = r.FormValue("language")
	d.Location.X, _ = strconv.ParseFloat(r.FormValue("x"), 64)
	d.Location.Y, _ = strconv.ParseFloat(r.FormValue("y"), 64)

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return d, nil
	}
	if err != nil {
		return d, apperr.Validation("invalid_image", "Failed to read image.")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, objectstore.MaxObjectSize+1))
	if err != nil {
		return d, apperr.Validation("invalid_image", "Failed to read image.")
	}
	d.Image = &pipeline.Attachment{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	return d, nil
}

// ListReports loads the first page of the active organization's feed.
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	f := sess.Feed()
	if err := loadFeed(r.Context(), f); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, ReportsResponse{
		Success: true,
		Reports: view(r, f.Reports()),
		HasMore: f.HasMore(),
		Karma:   f.Derived().Karma,
	})
}

// LoadMore appends the next page. When nothing is fetched the current list
// is returned unchanged.
func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	f := sess.Feed()
	if f == nil {
		utils.WriteError(w, apperr.Validation("organization_required", "Select an organization first."))
		return
	}
	if _, err := f.LoadMore(r.Context()); err != nil {
		utils.WriteError(w, apperr.External("feed_load_failed", "Failed to load more reports.", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, ReportsResponse{
		Success: true,
		Reports: view(r, f.Reports()),
		HasMore: f.HasMore(),
		Karma:   f.Derived().Karma,
	})
}

type DraftRequest struct {
	Content  string       `json:"content"`
	Location models.Point `json:"location"`
}

// UpdateDraft restarts the debounced duplicate check for the caller's draft.
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req DraftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	h.Watcher.Update(sess, sanitize.Text(req.Content), req.Location)
	utils.WriteMessage(w, http.StatusAccepted, "Draft received")
}

type DuplicateWarningResponse struct {
	Success     bool   `json:"success"`
	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateID string `json:"duplicate_id,omitempty"`
}

func (h *Handler) DraftWarning(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	resp := DuplicateWarningResponse{Success: true}
	if warn := sess.DuplicateWarning(); warn != nil {
		resp.IsDuplicate = true
		resp.DuplicateID = warn.DuplicateID
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

// Vote adds one upvote to a report.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	rep, err := h.Reports.Vote(ctx, chi.URLParam(r, "id"))
	if err != nil {
		utils.WriteError(w, storeError(err))
		return
	}
	h.publishUpdate(*rep)
	pub := rep.Public()
	utils.WriteJSON(w, http.StatusOK, ReportResponse{Success: true, Message: "Vote recorded", Report: &pub})
}

type UpdateStatusRequest struct {
	Status models.ReportStatus `json:"status"`
}

// UpdateStatus moves a report to any valid status. Staff only.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	if !req.Status.Valid() {
		utils.WriteError(w, apperr.Validation("invalid_status", "Status must be one of received, triaged, in_progress, resolved."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	id := chi.URLParam(r, "id")
	if err := h.authorizeReport(ctx, r, id); err != nil {
		utils.WriteError(w, err)
		return
	}
	rep, err := h.Reports.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		utils.WriteError(w, storeError(err))
		return
	}
	h.Logger.Info("report status changed", zap.String("report_id", id), zap.String("status", string(req.Status)))
	h.publishUpdate(*rep)
	utils.WriteJSON(w, http.StatusOK, ReportResponse{Success: true, Message: "Status updated", Report: rep})
}

type AddNoteRequest struct {
	Text string `json:"text"`
}

// AddNote appends a staff note. Staff only.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req AddNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	text := sanitize.Text(req.Text)
	if text == "" {
		utils.WriteError(w, apperr.Validation("note_required", "Note text is required."))
		return
	}
	if len(text) > maxNoteLength {
		utils.WriteError(w, apperr.Validation("note_too_long", "Notes are limited to 2000 characters."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	id := chi.URLParam(r, "id")
	if err := h.authorizeReport(ctx, r, id); err != nil {
		utils.WriteError(w, err)
		return
	}
	claims := staffClaims(r)
	rep, err := h.Reports.AppendNote(ctx, id, models.Note{Author: claims.Email, Text: text, CreatedAt: time.Now().UTC()})
	if err != nil {
		utils.WriteError(w, storeError(err))
		return
	}
	h.publishUpdate(*rep)
	utils.WriteJSON(w, http.StatusCreated, ReportResponse{Success: true, Message: "Note added", Report: rep})
}

// authorizeReport checks that the staff caller belongs to the report's organization.
func (h *Handler) authorizeReport(ctx context.Context, r *http.Request, id string) error {
	claims := staffClaims(r)
	if claims == nil {
		return apperr.Unauthorized("Staff access required.")
	}
	rep, err := h.Reports.Get(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if rep.OrganizationID != claims.OrganizationID {
		return apperr.NotFound("report_not_found", "Report not found.")
	}
	return nil
}

func (h *Handler) publishUpdate(rep models.Report) {
	if h.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev := realtime.Event{Type: realtime.EventUpdate, OrganizationID: rep.OrganizationID, Report: rep}
	if err := h.Publisher.Publish(ctx, ev); err != nil {
		h.Logger.Warn("failed to publish report update", zap.String("report_id", rep.ID), zap.Error(err))
	}
}

func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("report_not_found", "Report not found.")
	}
	return apperr.External("report_store_failed", "Failed to update report. Please try again.", err)
}
