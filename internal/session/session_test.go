package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/civicpulse-backend/internal/admission"
	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/realtime"
	"github.com/AnshRaj112/civicpulse-backend/internal/store"
)

func newManager(t *testing.T) (*Manager, *realtime.Hub, *MemoryPointers) {
	t.Helper()
	hub := realtime.NewHub(nil, nil)
	pointers := NewMemoryPointers()
	m := NewManager(Deps{
		Admission: admission.New(admission.NewMemoryStore(), 3, time.Minute),
		Pointers:  pointers,
		Reports:   store.NewMemoryReports(),
		Hub:       hub,
	})
	t.Cleanup(m.Close)
	return m, hub, pointers
}

func waitNotice(t *testing.T, s *Session, typ NoticeType) Notice {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n, ok := <-s.Notices():
			require.True(t, ok, "notice channel closed")
			if n.Type == typ {
				return n
			}
		case <-deadline:
			t.Fatalf("no %s notice", typ)
		}
	}
}

func TestGetCreatesAndReusesSession(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	a, err := m.Get(ctx, "client-1")
	require.NoError(t, err)
	b, err := m.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, m.Len())

	_, err = m.Get(ctx, "bad id!")
	assert.ErrorIs(t, err, ErrInvalidClientID)
}

func TestGetRestoresOrganizationPointer(t *testing.T) {
	m, hub, pointers := newManager(t)
	ctx := context.Background()
	require.NoError(t, pointers.Set(ctx, "client-1", "org-a"))

	s, err := m.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "org-a", s.OrganizationID())
	require.NotNil(t, s.Feed())
	assert.Equal(t, 1, hub.SubscriberCount("org-a"))
}

func TestSetOrganizationReleasesPreviousSubscription(t *testing.T) {
	m, hub, pointers := newManager(t)
	ctx := context.Background()
	s, err := m.Get(ctx, "client-1")
	require.NoError(t, err)

	require.NoError(t, s.SetOrganization(ctx, "org-a"))
	feedA := s.Feed()
	assert.Equal(t, 1, hub.SubscriberCount("org-a"))

	require.NoError(t, s.SetOrganization(ctx, "org-b"))
	assert.Equal(t, 0, hub.SubscriberCount("org-a"))
	assert.Equal(t, 1, hub.SubscriberCount("org-b"))
	assert.NotSame(t, feedA, s.Feed())

	got, err := pointers.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "org-b", got)

	// switching to the same org is a no-op
	feedB := s.Feed()
	require.NoError(t, s.SetOrganization(ctx, "org-b"))
	assert.Same(t, feedB, s.Feed())
	assert.Equal(t, 1, hub.SubscriberCount("org-b"))
}

func TestLiveInsertMergedOnce(t *testing.T) {
	m, hub, _ := newManager(t)
	ctx := context.Background()
	s, err := m.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NoError(t, s.SetOrganization(ctx, "org-a"))
	waitNotice(t, s, NoticeOrgChanged)

	r := models.Report{ID: "r1", OrganizationID: "org-a"}
	hub.Dispatch(realtime.Event{Type: realtime.EventInsert, OrganizationID: "org-a", Report: r})
	n := waitNotice(t, s, NoticeReportInserted)
	assert.Equal(t, "r1", n.ReportID)

	hub.Dispatch(realtime.Event{Type: realtime.EventInsert, OrganizationID: "org-a", Report: r})
	hub.Dispatch(realtime.Event{Type: realtime.EventInsert, OrganizationID: "org-b", Report: models.Report{ID: "r2", OrganizationID: "org-b"}})

	assert.Never(t, func() bool { return s.Feed().Len() != 1 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestAdmissionThroughSession(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	s, err := m.Get(ctx, "client-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Admit(ctx))
		require.NoError(t, s.Record(ctx))
	}
	assert.Zero(t, s.WaitSeconds(ctx), "indicator only after a blocked attempt")

	var rl *apperr.RateLimitedError
	require.ErrorAs(t, s.Admit(ctx), &rl)
	assert.Positive(t, rl.Wait)
	assert.Positive(t, s.WaitSeconds(ctx))
}

func TestResetClearsEverything(t *testing.T) {
	m, hub, pointers := newManager(t)
	ctx := context.Background()
	s, err := m.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NoError(t, s.SetOrganization(ctx, "org-a"))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx))
	}
	s.SetDuplicateWarning("r-7")
	require.False(t, s.Check(ctx))

	require.NoError(t, m.Reset(ctx, "client-1"))

	assert.True(t, s.Check(ctx))
	assert.Empty(t, s.OrganizationID())
	assert.Nil(t, s.Feed())
	assert.Nil(t, s.DuplicateWarning())
	assert.Equal(t, 0, hub.SubscriberCount("org-a"))
	got, _ := pointers.Get(ctx, "client-1")
	assert.Empty(t, got)
}

func TestCloseReleasesSubscription(t *testing.T) {
	m, hub, pointers := newManager(t)
	ctx := context.Background()
	s, err := m.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NoError(t, s.SetOrganization(ctx, "org-a"))

	stopped := false
	s.SetDraftCanceler(func() { stopped = true })

	m.Drop("client-1")
	assert.Equal(t, 0, hub.SubscriberCount("org-a"))
	assert.True(t, stopped)
	assert.ErrorIs(t, s.SetOrganization(ctx, "org-b"), ErrClosed)

	// persisted pointer survives so the next visit restores it
	got, _ := pointers.Get(ctx, "client-1")
	assert.Equal(t, "org-a", got)

	for range s.Notices() {
	}
}

func TestEvictIdle(t *testing.T) {
	m, _, _ := newManager(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := m.Get(ctx, "old")
	require.NoError(t, err)
	now = now.Add(DefaultIdleTTL + time.Minute)
	_, err = m.Get(ctx, "fresh")
	require.NoError(t, err)

	assert.Equal(t, 1, m.EvictIdle())
	assert.Equal(t, 1, m.Len())
}

func TestIdentityFlowsIntoKarma(t *testing.T) {
	m, hub, _ := newManager(t)
	ctx := context.Background()
	s, err := m.Get(ctx, "client-1")
	require.NoError(t, err)
	s.SetIdentity(&models.Identity{ID: "u1"})
	require.NoError(t, s.SetOrganization(ctx, "org-a"))

	hub.Dispatch(realtime.Event{Type: realtime.EventInsert, OrganizationID: "org-a",
		Report: models.Report{ID: "r1", OrganizationID: "org-a", AuthorID: "u1", Status: models.StatusResolved}})
	waitNotice(t, s, NoticeReportInserted)
	assert.Equal(t, 60, s.Feed().Derived().Karma)

	s.SetIdentity(nil)
	assert.Zero(t, s.Feed().Derived().Karma)
}

func TestRedisPointers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	p := NewRedisPointers(client)
	ctx := context.Background()

	got, err := p.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, p.Set(ctx, "c1", "org-a"))
	assert.Equal(t, PointerDuration, mr.TTL(PointerKeyPrefix+"c1"))
	got, err = p.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "org-a", got)

	require.NoError(t, p.Clear(ctx, "c1"))
	assert.False(t, mr.Exists(PointerKeyPrefix+"c1"))
}

func TestValidClientID(t *testing.T) {
	assert.True(t, ValidClientID(NewClientID()))
	assert.True(t, ValidClientID("abc_DEF-123"))
	assert.False(t, ValidClientID(""))
	assert.False(t, ValidClientID("has space"))
	assert.False(t, ValidClientID(string(make([]byte, 65))))
}
