package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/civicpulse-backend/internal/classifier"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

func seedNearby(f *fixture) {
	f.sess.Feed().ApplyInsert(models.Report{
		ID: "r-near", OrganizationID: "org-a", Content: "pothole on main street",
		Location: models.Point{X: 0.5004, Y: 0.4996},
	})
	f.sess.Feed().ApplyInsert(models.Report{
		ID: "r-far", OrganizationID: "org-a", Content: "broken light",
		Location: models.Point{X: 0.6, Y: 0.6},
	})
}

func TestDuplicateWarningAfterDebounce(t *testing.T) {
	f := newFixture(t)
	seedNearby(f)
	w := NewDuplicateWatcher(f.ai, 10*time.Millisecond, nil)

	f.ai.On("CheckDuplicate", mock.Anything, "big pothole on Main St", mock.MatchedBy(func(c []classifier.Candidate) bool {
		return len(c) == 1 && c[0].ID == "r-near"
	})).Return(classifier.DuplicateVerdict{IsDuplicate: true, DuplicateID: "r-near"}).Once()

	w.Update(f.sess, "big pothole on Main St", models.Point{X: 0.5, Y: 0.5})

	require.Eventually(t, func() bool { return f.sess.DuplicateWarning() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "r-near", f.sess.DuplicateWarning().DuplicateID)
	f.ai.AssertExpectations(t)
}

func TestDuplicateDebounceKeepsLatestInput(t *testing.T) {
	f := newFixture(t)
	seedNearby(f)
	w := NewDuplicateWatcher(f.ai, 50*time.Millisecond, nil)

	called := make(chan struct{})
	f.ai.On("CheckDuplicate", mock.Anything, "pothole on main street again", mock.Anything).
		Return(classifier.DuplicateVerdict{}).
		Run(func(mock.Arguments) { close(called) }).
		Once()

	loc := models.Point{X: 0.5, Y: 0.5}
	w.Update(f.sess, "pothole on main", loc)
	w.Update(f.sess, "pothole on main street", loc)
	w.Update(f.sess, "pothole on main street again", loc)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("duplicate check never ran")
	}
	time.Sleep(100 * time.Millisecond)
	f.ai.AssertNumberOfCalls(t, "CheckDuplicate", 1)
	assert.Nil(t, f.sess.DuplicateWarning())
}

func TestDuplicateShortDraftSkipped(t *testing.T) {
	f := newFixture(t)
	seedNearby(f)
	w := NewDuplicateWatcher(f.ai, time.Millisecond, nil)
	f.sess.SetDuplicateWarning("r-old")

	w.Update(f.sess, "pothole", models.Point{X: 0.5, Y: 0.5})
	time.Sleep(30 * time.Millisecond)

	f.ai.AssertNotCalled(t, "CheckDuplicate", mock.Anything, mock.Anything, mock.Anything)
	assert.Nil(t, f.sess.DuplicateWarning())
}

func TestDuplicateNoNearbyCandidates(t *testing.T) {
	f := newFixture(t)
	w := NewDuplicateWatcher(f.ai, time.Millisecond, nil)

	w.Update(f.sess, "pothole in the far corner", models.Point{X: 0.1, Y: 0.1})
	time.Sleep(30 * time.Millisecond)

	f.ai.AssertNotCalled(t, "CheckDuplicate", mock.Anything, mock.Anything, mock.Anything)
}

func TestDuplicateCancelledByOrganizationSwitch(t *testing.T) {
	f := newFixture(t)
	seedNearby(f)
	w := NewDuplicateWatcher(f.ai, 30*time.Millisecond, nil)

	w.Update(f.sess, "big pothole on Main St", models.Point{X: 0.5, Y: 0.5})
	require.NoError(t, f.sess.SetOrganization(context.Background(), "org-b"))
	time.Sleep(80 * time.Millisecond)

	f.ai.AssertNotCalled(t, "CheckDuplicate", mock.Anything, mock.Anything, mock.Anything)
}
