// Package handlers exposes the HTTP and websocket API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/auth"
	"github.com/AnshRaj112/civicpulse-backend/internal/billing"
	"github.com/AnshRaj112/civicpulse-backend/internal/mailer"
	"github.com/AnshRaj112/civicpulse-backend/internal/middleware"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/objectstore"
	"github.com/AnshRaj112/civicpulse-backend/internal/orgs"
	"github.com/AnshRaj112/civicpulse-backend/internal/pipeline"
	"github.com/AnshRaj112/civicpulse-backend/internal/session"
)

const requestTimeout = 5 * time.Second

// ReportStore is the report persistence used outside the submission path.
type ReportStore interface {
	List(ctx context.Context, orgID string, offset, limit int) ([]models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus) (*models.Report, error)
	AppendNote(ctx context.Context, id string, note models.Note) (*models.Report, error)
	Vote(ctx context.Context, id string) (*models.Report, error)
}

type InsightGenerator interface {
	GenerateReport(ctx context.Context, orgName string, reports []models.Report) (string, error)
}

type Deps struct {
	Sessions  *session.Manager
	Pipeline  *pipeline.Pipeline
	Watcher   *pipeline.DuplicateWatcher
	Reports   ReportStore
	Publisher pipeline.EventPublisher
	Orgs      *orgs.Service
	Auth      *auth.Service
	Insights  InsightGenerator
	Objects   objectstore.Store
	Mailer    *mailer.Mailer
	Billing   *billing.Client
	Guard     *middleware.IPGuard
	Logger    *zap.Logger

	// AllowedOrigins gates websocket upgrades. Empty or "*" accepts any origin.
	AllowedOrigins []string
}

type Handler struct {
	Deps
	upgrader websocket.Upgrader
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Objects == nil {
		d.Objects = objectstore.InlineStore{}
	}
	h := &Handler{Deps: d}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(d.AllowedOrigins),
	}
	return h
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("OK"))
}

// session resolves the caller's session and attaches the resident identity
// carried by the bearer token, if any.
func (h *Handler) session(r *http.Request) (*session.Session, error) {
	sess, err := h.Sessions.Get(r.Context(), middleware.ClientIDFromContext(r.Context()))
	if err != nil {
		return nil, apperr.Validation("invalid_client", "Missing or invalid client id.")
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && claims.Role == auth.RoleResident {
		sess.SetIdentity(claims.Identity())
	} else if !ok {
		sess.SetIdentity(nil)
	}
	return sess, nil
}

func staffClaims(r *http.Request) *auth.Claims {
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || c.Role != auth.RoleStaff {
		return nil
	}
	return c
}

// view hides contact details from everyone but staff.
func view(r *http.Request, reports []models.Report) []models.Report {
	if staffClaims(r) != nil {
		return reports
	}
	out := make([]models.Report, len(reports))
	for i, rep := range reports {
		out[i] = rep.Public()
	}
	return out
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid_body", "Invalid request body")
	}
	return nil
}
