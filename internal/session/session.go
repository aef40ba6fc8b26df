// Package session owns per-client state: the admission window, the current
// organization pointer, the live report feed for that organization and the
// notices pushed back to the client.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/admission"
	"github.com/AnshRaj112/civicpulse-backend/internal/feed"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/realtime"
)

const noticeBuffer = 32

type NoticeType string

const (
	NoticeReportInserted NoticeType = "report_inserted"
	NoticeReportUpdated  NoticeType = "report_updated"
	NoticePersistFailed  NoticeType = "persist_failed"
	NoticeDuplicate      NoticeType = "duplicate_warning"
	NoticeOrgChanged     NoticeType = "organization_changed"
	NoticeReset          NoticeType = "session_reset"
)

// Notice is pushed to the client's live channel.
type Notice struct {
	Type     NoticeType     `json:"type"`
	Report   *models.Report `json:"report,omitempty"`
	ReportID string         `json:"report_id,omitempty"`
	OrgID    string         `json:"organization_id,omitempty"`
	Message  string         `json:"message,omitempty"`
	At       time.Time      `json:"at"`
}

// DuplicateWarning points at an existing report that looks like the draft.
type DuplicateWarning struct {
	DuplicateID string    `json:"duplicate_id"`
	At          time.Time `json:"at"`
}

// Subscriber hands out live report subscriptions per organization.
type Subscriber interface {
	Subscribe(orgID string) *realtime.Subscription
}

type Session struct {
	id  string
	mgr *Manager

	mu        sync.Mutex
	orgID     string
	identity  *models.Identity
	feed      *feed.Feed
	sub       *realtime.Subscription
	warning   *DuplicateWarning
	waiting   bool
	lastUsed  time.Time
	closed    bool
	notices   chan Notice
	draftStop func()
}

func newSession(id string, mgr *Manager) *Session {
	return &Session{
		id:       id,
		mgr:      mgr,
		lastUsed: mgr.now(),
		notices:  make(chan Notice, noticeBuffer),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = s.mgr.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) OrganizationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orgID
}

// Feed returns the live feed of the active organization, or nil.
func (s *Session) Feed() *feed.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed
}

func (s *Session) Identity() *models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// SetIdentity attaches the signed-in resident; nil signs out.
func (s *Session) SetIdentity(id *models.Identity) {
	s.mu.Lock()
	if sameIdentity(s.identity, id) {
		s.mu.Unlock()
		return
	}
	if id != nil {
		cp := *id
		id = &cp
	}
	s.identity = id
	f := s.feed
	s.mu.Unlock()
	if f != nil {
		f.SetIdentity(id)
	}
}

func sameIdentity(a, b *models.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SetOrganization switches the active organization. The previous live
// subscription is released before the new one is opened so no event is
// delivered twice across the switch.
func (s *Session) SetOrganization(ctx context.Context, orgID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.orgID == orgID && s.feed != nil {
		s.mu.Unlock()
		return nil
	}
	s.releaseLocked()

	s.orgID = orgID
	s.warning = nil
	if orgID != "" {
		f := feed.New(s.mgr.reports, orgID)
		f.SetIdentity(s.identity)
		s.feed = f
		if s.mgr.hub != nil {
			s.sub = s.mgr.hub.Subscribe(orgID)
			go s.pump(s.sub, f)
		}
	}
	s.mu.Unlock()

	s.Notify(Notice{Type: NoticeOrgChanged, OrgID: orgID})

	if orgID == "" {
		return s.mgr.pointers.Clear(ctx, s.id)
	}
	return s.mgr.pointers.Set(ctx, s.id, orgID)
}

// releaseLocked tears down the live subscription and feed. Caller holds s.mu.
func (s *Session) releaseLocked() {
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}
	if s.draftStop != nil {
		s.draftStop()
		s.draftStop = nil
	}
	s.feed = nil
}

// pump merges live events into f until sub is closed.
func (s *Session) pump(sub *realtime.Subscription, f *feed.Feed) {
	for ev := range sub.Events() {
		r := ev.Report
		if s.Feed() != f {
			continue
		}
		switch ev.Type {
		case realtime.EventInsert:
			if f.ApplyInsert(r) {
				s.Notify(Notice{Type: NoticeReportInserted, Report: &r, ReportID: r.ID, OrgID: ev.OrganizationID})
			}
		case realtime.EventUpdate:
			if f.ApplyUpdate(r) {
				s.Notify(Notice{Type: NoticeReportUpdated, Report: &r, ReportID: r.ID, OrgID: ev.OrganizationID})
			}
		}
	}
}

// Notify queues n for the live channel. Notices are dropped when the client
// is not reading.
func (s *Session) Notify(n Notice) {
	if n.At.IsZero() {
		n.At = s.mgr.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.notices <- n:
	default:
		s.mgr.logger.Debug("notice dropped", zap.String("client_id", s.id), zap.String("type", string(n.Type)))
	}
}

// Notices is closed when the session is closed.
func (s *Session) Notices() <-chan Notice { return s.notices }

// SetDuplicateWarning records the latest advisory duplicate match and pushes it.
func (s *Session) SetDuplicateWarning(duplicateID string) {
	w := &DuplicateWarning{DuplicateID: duplicateID, At: s.mgr.now()}
	s.mu.Lock()
	s.warning = w
	s.mu.Unlock()
	s.Notify(Notice{Type: NoticeDuplicate, ReportID: duplicateID})
}

func (s *Session) ClearDuplicateWarning() {
	s.mu.Lock()
	s.warning = nil
	s.mu.Unlock()
}

func (s *Session) DuplicateWarning() *DuplicateWarning {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warning == nil {
		return nil
	}
	cp := *s.warning
	return &cp
}

// SetDraftCanceler registers the stop function of the pending duplicate
// check so later input or an organization switch can cancel it. Any
// previously registered check is stopped first.
func (s *Session) SetDraftCanceler(stop func()) {
	s.mu.Lock()
	prev := s.draftStop
	s.draftStop = stop
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// Admission wrappers bound to this client.

func (s *Session) Check(ctx context.Context) bool {
	return s.mgr.admission.Check(ctx, s.id)
}

func (s *Session) Admit(ctx context.Context) error {
	err := s.mgr.admission.Admit(ctx, s.id)
	if err != nil {
		s.mu.Lock()
		s.waiting = true
		s.mu.Unlock()
	}
	return err
}

// Record counts a successful submission and clears the wait indicator.
func (s *Session) Record(ctx context.Context) error {
	s.mu.Lock()
	s.waiting = false
	s.mu.Unlock()
	return s.mgr.admission.Record(ctx, s.id)
}

func (s *Session) TimeUntilReset(ctx context.Context) time.Duration {
	return s.mgr.admission.TimeUntilReset(ctx, s.id)
}

// WaitSeconds is the indicator shown after a blocked submission, 0 otherwise.
func (s *Session) WaitSeconds(ctx context.Context) int {
	s.mu.Lock()
	waiting := s.waiting
	s.mu.Unlock()
	if !waiting {
		return 0
	}
	secs := admission.Seconds(s.TimeUntilReset(ctx))
	if secs == 0 {
		s.mu.Lock()
		s.waiting = false
		s.mu.Unlock()
	}
	return secs
}

// Reset clears the admission window and organization pointer and drops the
// live feed, returning the client to its first-visit state.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.releaseLocked()
	s.orgID = ""
	s.warning = nil
	s.waiting = false
	s.mu.Unlock()

	s.Notify(Notice{Type: NoticeReset})

	if err := s.mgr.admission.Reset(ctx, s.id); err != nil {
		return err
	}
	return s.mgr.pointers.Clear(ctx, s.id)
}

// Close releases the live subscription and closes the notice channel.
// The persisted pointer and admission window are kept.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.releaseLocked()
	s.closed = true
	close(s.notices)
}
