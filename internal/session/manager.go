package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/admission"
	"github.com/AnshRaj112/civicpulse-backend/internal/feed"
)

var (
	ErrClosed          = errors.New("session closed")
	ErrInvalidClientID = errors.New("invalid client id")
)

const (
	DefaultIdleTTL         = 30 * time.Minute
	defaultCleanupInterval = 5 * time.Minute
	maxClientIDLength      = 64
)

// Manager maps client ids to live sessions. Sessions idle longer than the
// TTL are closed by the cleanup loop; their persisted state survives.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	admission *admission.Controller
	pointers  PointerStore
	reports   feed.Source
	hub       Subscriber
	logger    *zap.Logger
	idleTTL   time.Duration
	now       func() time.Time

	cleanupOnce sync.Once
}

type Deps struct {
	Admission *admission.Controller
	Pointers  PointerStore
	Reports   feed.Source
	Hub       Subscriber
	Logger    *zap.Logger
	IdleTTL   time.Duration
}

func NewManager(d Deps) *Manager {
	m := &Manager{
		sessions:  make(map[string]*Session),
		admission: d.Admission,
		pointers:  d.Pointers,
		reports:   d.Reports,
		hub:       d.Hub,
		logger:    d.Logger,
		idleTTL:   d.IdleTTL,
		now:       time.Now,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.idleTTL <= 0 {
		m.idleTTL = DefaultIdleTTL
	}
	if m.pointers == nil {
		m.pointers = NewMemoryPointers()
	}
	if m.admission == nil {
		m.admission = admission.New(admission.NewMemoryStore(), admission.DefaultLimit, admission.DefaultWindow)
	}
	return m
}

// NewClientID returns a fresh opaque client id.
func NewClientID() string { return uuid.NewString() }

// ValidClientID accepts short ids made of URL-safe characters.
func ValidClientID(id string) bool {
	if id == "" || len(id) > maxClientIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Get returns the client's session, creating it and restoring its persisted
// organization pointer on first use.
func (m *Manager) Get(ctx context.Context, clientID string) (*Session, error) {
	clientID = strings.TrimSpace(clientID)
	if !ValidClientID(clientID) {
		return nil, ErrInvalidClientID
	}

	m.mu.Lock()
	s, ok := m.sessions[clientID]
	if ok {
		m.mu.Unlock()
		s.touch()
		return s, nil
	}
	s = newSession(clientID, m)
	m.sessions[clientID] = s
	m.mu.Unlock()

	orgID, err := m.pointers.Get(ctx, clientID)
	if err != nil {
		// A lost pointer only means the client picks its organization again.
		m.logger.Warn("organization pointer unreadable", zap.String("client_id", clientID), zap.Error(err))
		return s, nil
	}
	if orgID != "" {
		if err := s.SetOrganization(ctx, orgID); err != nil {
			m.logger.Warn("failed to restore organization", zap.String("client_id", clientID), zap.Error(err))
		}
	}
	return s, nil
}

// Reset clears a client's persisted state and live feed.
func (m *Manager) Reset(ctx context.Context, clientID string) error {
	s, err := m.Get(ctx, clientID)
	if err != nil {
		return err
	}
	return s.Reset(ctx)
}

// Drop closes and forgets a session without touching persisted state.
func (m *Manager) Drop(clientID string) {
	m.mu.Lock()
	s, ok := m.sessions[clientID]
	delete(m.sessions, clientID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle closes sessions unused for longer than the idle TTL.
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.idleTTL)
	var stale []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// StartCleanup runs EvictIdle periodically until ctx is done.
func (m *Manager) StartCleanup(ctx context.Context) {
	m.cleanupOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(defaultCleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := m.EvictIdle(); n > 0 {
						m.logger.Debug("evicted idle sessions", zap.Int("count", n))
					}
				}
			}
		}()
	})
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
