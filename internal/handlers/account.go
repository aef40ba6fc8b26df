package handlers

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/mailer"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/objectstore"
	"github.com/AnshRaj112/civicpulse-backend/pkg/utils"
)

// SignIn authenticates a staff member and returns a bearer token.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req models.SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp, err := h.Auth.SignIn(ctx, req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
	Backend string `json:"backend,omitempty"`
}

// UploadFile stores a multipart "file" (max 10MB) and returns its URL.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, objectstore.MaxObjectSize+(1<<20))
	if err := r.ParseMultipartForm(objectstore.MaxObjectSize); err != nil {
		utils.WriteError(w, apperr.Validation("invalid_form", "Failed to parse form. Files must be under 10MB."))
		return
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		utils.WriteError(w, apperr.Validation("file_required", "No file provided."))
		return
	}
	if err != nil {
		utils.WriteError(w, apperr.Validation("invalid_file", "Failed to read file."))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, objectstore.MaxObjectSize+1))
	if err != nil {
		utils.WriteError(w, apperr.Validation("invalid_file", "Failed to read file."))
		return
	}
	if len(data) > objectstore.MaxObjectSize {
		utils.WriteError(w, apperr.Validation("file_too_large", "File size exceeds 10MB limit."))
		return
	}

	obj := objectstore.NewObject(header.Filename, header.Header.Get("Content-Type"), data)
	url, err := h.Objects.Put(r.Context(), obj)
	if err != nil {
		h.Logger.Error("upload failed", zap.String("backend", h.Objects.Name()), zap.Error(err))
		utils.WriteError(w, apperr.External("upload_failed", "Failed to upload file.", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, UploadResponse{
		Success: true,
		Message: "File uploaded successfully",
		URL:     url,
		Backend: h.Objects.Name(),
	})
}

type CheckoutRequest struct {
	Plan  string `json:"plan"`
	Email string `json:"email"`
}

type CheckoutResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	if h.Billing == nil {
		utils.WriteError(w, apperr.Config("billing_unconfigured", "Billing is not configured."))
		return
	}
	url, err := h.Billing.Checkout(r.Context(), strings.ToLower(strings.TrimSpace(req.Plan)), req.Email)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, CheckoutResponse{Success: true, URL: url})
}

// SendEmail queues a staff email. Delivery happens in the background.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	claims := staffClaims(r)
	if claims == nil {
		utils.WriteError(w, apperr.Unauthorized("Staff access required."))
		return
	}
	var msg mailer.Message
	if err := decodeJSON(w, r, &msg); err != nil {
		utils.WriteError(w, err)
		return
	}
	if h.Mailer == nil {
		utils.WriteError(w, apperr.Config("email_unconfigured", "Email is not configured."))
		return
	}
	if err := h.Mailer.Send(msg); err != nil {
		utils.WriteError(w, err)
		return
	}
	h.Logger.Info("staff email queued", zap.String("staff_id", claims.Subject), zap.Int("recipients", len(msg.To)))
	utils.WriteMessage(w, http.StatusAccepted, "Email queued")
}

type UnblockIPRequest struct {
	IP string `json:"ip"`
}

// UnblockIP lifts a per-IP block placed by the request guard. Staff only.
func (h *Handler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	claims := staffClaims(r)
	if claims == nil {
		utils.WriteError(w, apperr.Unauthorized("Staff access required."))
		return
	}
	var req UnblockIPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		utils.WriteError(w, err)
		return
	}
	ip := strings.TrimSpace(req.IP)
	if net.ParseIP(ip) == nil {
		utils.WriteError(w, apperr.Validation("invalid_ip", "A valid IP address is required."))
		return
	}
	if h.Guard == nil {
		utils.WriteMessage(w, http.StatusOK, "IP unblocked")
		return
	}
	if err := h.Guard.UnblockIP(r.Context(), ip); err != nil {
		utils.WriteError(w, apperr.External("unblock_failed", "Failed to unblock IP.", err))
		return
	}
	h.Logger.Info("ip unblocked", zap.String("ip", ip), zap.String("staff_id", claims.Subject))
	utils.WriteMessage(w, http.StatusOK, "IP unblocked")
}
