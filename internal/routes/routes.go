package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/civicpulse-backend/internal/auth"
	"github.com/AnshRaj112/civicpulse-backend/internal/handlers"
	"github.com/AnshRaj112/civicpulse-backend/internal/middleware"
)

// SetupRoutes registers the API. Request-wide middleware (client id,
// optional auth, rate limits) is installed by the caller.
func SetupRoutes(r chi.Router, h *handlers.Handler, tokens *auth.Tokens) {
	r.Get("/health", h.Health)

	// Session state
	r.Get("/api/session", h.GetSession)
	r.Post("/api/session/reset", h.ResetSession)
	r.Put("/api/session/organization", h.SetOrganization)

	// Reports
	r.Post("/api/reports", h.SubmitReport)
	r.Get("/api/reports", h.ListReports)
	r.Get("/api/reports/more", h.LoadMore)
	r.Post("/api/reports/draft", h.UpdateDraft)
	r.Get("/api/reports/draft/warning", h.DraftWarning)
	r.Post("/api/reports/{id}/vote", h.Vote)

	// Organizations
	r.Get("/api/orgs/{slug}", h.GetOrganization)
	r.Post("/api/orgs", h.CreateOrganization)

	r.Post("/api/upload", h.UploadFile)
	r.Post("/api/auth/signin", h.SignIn)
	r.Post("/api/billing/checkout", h.Checkout)

	// Live channel
	r.Get("/ws/reports", h.ReportsWebSocket)

	// Staff dashboard
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireStaff(tokens))
		r.Patch("/api/reports/{id}/status", h.UpdateStatus)
		r.Post("/api/reports/{id}/notes", h.AddNote)
		r.Get("/api/orgs/{slug}/insights", h.GetInsights)
		r.Post("/api/admin/email", h.SendEmail)
		r.Put("/api/admin/unblock-ip", h.UnblockIP)
	})
}
