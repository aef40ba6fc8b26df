package middleware

import (
	"context"
	"net/http"

	"github.com/AnshRaj112/civicpulse-backend/internal/session"
)

// ClientIDHeader carries the opaque per-browser id that keys session state.
const ClientIDHeader = "X-Client-ID"

const clientIDContextKey contextKey = "client_id"

// ClientID makes sure every request carries a client id. A missing or
// malformed id is replaced by a fresh one, echoed back in the response header.
// Websocket upgrades may pass it as the client_id query parameter.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ClientIDHeader)
		if id == "" {
			id = r.URL.Query().Get("client_id")
		}
		if !session.ValidClientID(id) {
			id = session.NewClientID()
		}
		w.Header().Set(ClientIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIDContextKey, id)))
	})
}

// ClientIDFromContext returns the id set by ClientID.
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDContextKey).(string)
	return id
}
