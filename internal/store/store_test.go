package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

func seed(t *testing.T, s *MemoryReports, orgID string, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, s.Insert(context.Background(), models.Report{
			ID:             fmt.Sprintf("%s-%03d", orgID, i),
			OrganizationID: orgID,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			Status:         models.StatusReceived,
		}))
	}
}

func TestMemoryReportsListNewestFirst(t *testing.T) {
	s := NewMemoryReports()
	seed(t, s, "org-a", 5)
	seed(t, s, "org-b", 2)
	ctx := context.Background()

	page, err := s.List(ctx, "org-a", 0, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "org-a-004", page[0].ID)
	assert.Equal(t, "org-a-002", page[2].ID)

	page, err = s.List(ctx, "org-a", 3, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "org-a-001", page[0].ID)

	page, err = s.List(ctx, "org-a", 10, 3)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, 3, s.ListCalls())
}

func TestMemoryReportsMutations(t *testing.T) {
	s := NewMemoryReports()
	seed(t, s, "org", 1)
	ctx := context.Background()

	r, err := s.UpdateStatus(ctx, "org-000", models.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, r.Status)

	// any-to-any transitions
	r, err = s.UpdateStatus(ctx, "org-000", models.StatusReceived)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, r.Status)

	r, err = s.AppendNote(ctx, "org-000", models.Note{Author: "ops", Text: "crew dispatched"})
	require.NoError(t, err)
	require.Len(t, r.Notes, 1)

	r, err = s.Vote(ctx, "org-000")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Votes)

	_, err = s.Vote(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("write failed")
	s.FailWith(boom)
	assert.ErrorIs(t, s.Insert(ctx, models.Report{ID: "x"}), boom)
	s.FailWith(nil)
	assert.NoError(t, s.Insert(ctx, models.Report{ID: "x"}))
	assert.Equal(t, 2, s.Len())
}

func TestPostgresOrgsGetBySlug(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresOrgs(db)
	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE LOWER\\(slug\\)").
		WithArgs("springfield").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "center_x", "center_y", "focus_area", "created_at"}).
			AddRow("org-1", "Springfield", "springfield", 39.78, -89.65, "Roads", created))

	org, err := s.GetBySlug(context.Background(), " springfield ")
	require.NoError(t, err)
	assert.Equal(t, "Springfield", org.Name)
	assert.Equal(t, models.Point{X: 39.78, Y: -89.65}, org.Center)

	mock.ExpectQuery("SELECT (.+) FROM organizations WHERE LOWER\\(slug\\)").
		WithArgs("nowhere").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "center_x", "center_y", "focus_area", "created_at"}))

	_, err = s.GetBySlug(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOrgsCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresOrgs(db)

	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("Shelbyville", "shelbyville", 1.0, 2.0, "Parks").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("org-2", time.Now()))

	org := &models.Organization{Name: "Shelbyville", Slug: "shelbyville", Center: models.Point{X: 1, Y: 2}, FocusArea: "Parks"}
	require.NoError(t, s.Create(context.Background(), org))
	assert.Equal(t, "org-2", org.ID)

	mock.ExpectQuery("INSERT INTO organizations").
		WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, s.Create(context.Background(), &models.Organization{Name: "Dup", Slug: "shelbyville"}), ErrSlugTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStaffGetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStaff(db)

	mock.ExpectQuery("SELECT (.+) FROM staff_accounts").
		WithArgs("ops@city.gov").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "organization_id", "created_at", "is_active"}).
			AddRow("s-1", "ops@city.gov", "hash", "org-1", time.Now(), true))

	a, err := s.GetByEmail(context.Background(), "ops@city.gov")
	require.NoError(t, err)
	assert.Equal(t, "org-1", a.OrganizationID)
	assert.True(t, a.IsActive)

	mock.ExpectQuery("SELECT (.+) FROM staff_accounts").
		WithArgs("nobody@city.gov").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "organization_id", "created_at", "is_active"}))
	_, err = s.GetByEmail(context.Background(), "nobody@city.gov")
	assert.ErrorIs(t, err, ErrNotFound)
}
