package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/store"
)

type memStaff struct {
	accounts map[string]*models.StaffAccount
}

func (m *memStaff) GetByEmail(_ context.Context, email string) (*models.StaffAccount, error) {
	a, ok := m.accounts[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStaff) Create(_ context.Context, a *models.StaffAccount) error {
	if _, ok := m.accounts[a.Email]; ok {
		return store.ErrEmailTaken
	}
	a.ID = "staff-" + a.Email
	a.IsActive = true
	a.CreatedAt = time.Now()
	cp := *a
	m.accounts[a.Email] = &cp
	return nil
}

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"))

	ok, err := VerifyPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salted")

	_, err = VerifyPassword("x", "$bcrypt$nope")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	signed, exp, err := tokens.Issue("u1", "me@example.com", RoleResident, "")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tokens.Parse("Bearer " + signed)
	require.NoError(t, err)
	assert.Equal(t, RoleResident, claims.Role)
	assert.Equal(t, &models.Identity{ID: "u1", Email: "me@example.com"}, claims.Identity())
}

func TestTokensRejected(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	_, err := tokens.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, _, err := NewTokens("other-secret", time.Hour).Issue("u1", "", RoleStaff, "o1")
	require.NoError(t, err)
	_, err = tokens.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	past := NewTokens("secret", time.Minute)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := past.Issue("u1", "", RoleStaff, "o1")
	require.NoError(t, err)
	_, err = tokens.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "iss": issuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignIn(t *testing.T) {
	repo := &memStaff{accounts: map[string]*models.StaffAccount{}}
	svc := NewService(repo, NewTokens("secret", time.Hour), nil)
	ctx := context.Background()

	_, err := svc.CreateStaff(ctx, "Clerk@City.gov", "password123", "org-1")
	require.NoError(t, err)
	_, err = svc.CreateStaff(ctx, "clerk@city.gov", "password123", "org-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	resp, err := svc.SignIn(ctx, models.SignInRequest{Email: " CLERK@city.gov", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	claims, err := svc.Tokens().Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, RoleStaff, claims.Role)
	assert.Equal(t, "org-1", claims.OrganizationID)

	_, err = svc.SignIn(ctx, models.SignInRequest{Email: "clerk@city.gov", Password: "wrongpass1"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.SignIn(ctx, models.SignInRequest{Email: "nobody@city.gov", Password: "password123"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.SignIn(ctx, models.SignInRequest{Email: "not-an-email", Password: "short"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	repo.accounts["clerk@city.gov"].IsActive = false
	_, err = svc.SignIn(ctx, models.SignInRequest{Email: "clerk@city.gov", Password: "password123"})
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
