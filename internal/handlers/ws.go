package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/auth"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/sanitize"
	"github.com/AnshRaj112/civicpulse-backend/internal/session"
)

const (
	wsReadTimeout  = 90 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// originChecker accepts upgrades from the configured frontends. Browsers do
// not apply CORS to websocket handshakes, so the Origin header is checked
// here. Requests without one come from non-browser clients and pass.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || allowed[0] == "*" {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[normalizeOrigin(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return set[normalizeOrigin(origin)]
	}
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

// WSClientMessage is sent by the browser over the live channel.
type WSClientMessage struct {
	Type     string       `json:"type"` // "ping", "draft"
	Content  string       `json:"content,omitempty"`
	Location models.Point `json:"location"`
}

// ReportsWebSocket streams the caller's session notices: live inserts and
// updates for the active organization, duplicate warnings and failed writes.
// The client is identified by X-Client-ID or the client_id query parameter.
func (h *Handler) ReportsWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	out := make(chan session.Notice, 8)
	done := make(chan struct{})
	defer close(done)

	go h.writeNotices(conn, sess, staffClaims(r), out, done)

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg WSClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "ping":
			select {
			case out <- session.Notice{Type: "pong", At: time.Now().UTC()}:
			default:
			}
		case "draft":
			if h.Watcher != nil {
				h.Watcher.Update(sess, sanitize.Text(msg.Content), msg.Location)
			}
		}
	}
}

// redactNotice strips contact fields and staff notes from a carried report
// unless staff of the report's organization is listening.
func redactNotice(n session.Notice, staff *auth.Claims) session.Notice {
	if n.Report == nil {
		return n
	}
	if staff != nil && staff.OrganizationID == n.Report.OrganizationID {
		return n
	}
	pub := n.Report.Public()
	n.Report = &pub
	return n
}

// writeNotices is the only writer on conn.
func (h *Handler) writeNotices(conn *websocket.Conn, sess *session.Session, staff *auth.Claims, out <-chan session.Notice, done <-chan struct{}) {
	defer conn.Close()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	write := func(n session.Notice) bool {
		n = redactNotice(n, staff)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(n); err != nil {
			h.Logger.Debug("websocket write failed", zap.String("client_id", sess.ID()), zap.Error(err))
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			return
		case n, ok := <-sess.Notices():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			if !write(n) {
				return
			}
		case n := <-out:
			if !write(n) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
