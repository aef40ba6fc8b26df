package orgs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/store"
)

type memRepo struct {
	mu      sync.Mutex
	bySlug  map[string]models.Organization
	lookups int
	failErr error
}

func newMemRepo() *memRepo { return &memRepo{bySlug: map[string]models.Organization{}} }

func (r *memRepo) GetBySlug(_ context.Context, slug string) (*models.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.failErr != nil {
		return nil, r.failErr
	}
	o, ok := r.bySlug[strings.ToLower(slug)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*models.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.bySlug {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *memRepo) SlugExists(_ context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bySlug[strings.ToLower(slug)]
	return ok, nil
}

func (r *memRepo) Create(_ context.Context, org *models.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySlug[org.Slug]; ok {
		return store.ErrSlugTaken
	}
	org.ID = "org-" + org.Slug
	org.CreatedAt = time.Now().UTC()
	r.bySlug[org.Slug] = *org
	return nil
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Springfield City Council", "springfield-city-council"},
		{"  San José  ", "san-jos"},
		{"Parks_and Rec!!", "parks-and-rec"},
		{"---", "org"},
		{"", "org"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.in), tc.in)
	}
}

func TestDemoFallback(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)

	org, err := svc.GetBySlug(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "Demo City", org.Name)
	assert.Equal(t, Demo.Center, org.Center)

	_, err = svc.GetBySlug(context.Background(), "nowhere")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStoredDemoWins(t *testing.T) {
	repo := newMemRepo()
	repo.bySlug["demo"] = models.Organization{ID: "real", Name: "Real Demo", Slug: "demo"}
	svc := NewService(repo, nil, nil)

	org, err := svc.GetBySlug(context.Background(), "DEMO")
	require.NoError(t, err)
	assert.Equal(t, "Real Demo", org.Name)
}

func TestLookupFailureIsExternal(t *testing.T) {
	repo := newMemRepo()
	repo.failErr = errors.New("connection refused")
	svc := NewService(repo, nil, nil)

	_, err := svc.GetBySlug(context.Background(), "demo")
	assert.True(t, apperr.Is(err, apperr.KindExternal))
}

func TestCreateGeneratesUniqueSlug(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, models.CreateOrganizationRequest{Name: "Springfield", CenterX: 1, CenterY: 2})
	require.NoError(t, err)
	assert.Equal(t, "springfield", a.Slug)
	assert.Equal(t, models.Point{X: 1, Y: 2}, a.Center)

	b, err := svc.Create(ctx, models.CreateOrganizationRequest{Name: "Springfield"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Slug, b.Slug)
	assert.True(t, strings.HasPrefix(b.Slug, "springfield-"))

	c, err := svc.Create(ctx, models.CreateOrganizationRequest{Name: "Demo"})
	require.NoError(t, err)
	assert.Equal(t, "demo-city", c.Slug)
}

func TestCreateValidates(t *testing.T) {
	svc := NewService(newMemRepo(), nil, nil)

	_, err := svc.Create(context.Background(), models.CreateOrganizationRequest{Name: "x"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, apperr.Message(err), "name")

	_, err = svc.Create(context.Background(), models.CreateOrganizationRequest{Name: "Valid", CenterX: 500})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGetBySlugUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := newMemRepo()
	repo.bySlug["springfield"] = models.Organization{ID: "o1", Name: "Springfield", Slug: "springfield"}
	svc := NewService(repo, NewCache(client), nil)
	ctx := context.Background()

	_, err := svc.GetBySlug(ctx, "springfield")
	require.NoError(t, err)
	org, err := svc.GetBySlug(ctx, "springfield")
	require.NoError(t, err)
	assert.Equal(t, "o1", org.ID)
	assert.Equal(t, 1, repo.lookups)

	assert.Equal(t, DefaultCacheTTL, mr.TTL(CacheKeyPrefix+"org:springfield"))
}

func TestCorruptCacheEntryIsEvicted(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set(CacheKeyPrefix+"org:gone", "{not json"))

	svc := NewService(newMemRepo(), NewCache(client), nil)
	_, err := svc.GetBySlug(context.Background(), "gone")

	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.False(t, mr.Exists(CacheKeyPrefix+"org:gone"))
}

func TestCacheReportsCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set(CacheKeyPrefix+"bad", "{"))

	var v int
	found, err := NewCache(client).Get(context.Background(), "bad", &v)
	assert.False(t, found)
	assert.ErrorIs(t, err, ErrCorruptEntry)
}

func TestCacheClampsTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewCache(client)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	assert.Equal(t, MinCacheTTL, mr.TTL(CacheKeyPrefix+"a"))
	require.NoError(t, c.Set(ctx, "b", 1, 48*time.Hour))
	assert.Equal(t, MaxCacheTTL, mr.TTL(CacheKeyPrefix+"b"))

	var v int
	found, err := c.Get(ctx, "missing", &v)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Delete(ctx, "a"))
	assert.False(t, mr.Exists(CacheKeyPrefix+"a"))
}
