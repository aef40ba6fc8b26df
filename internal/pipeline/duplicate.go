package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/classifier"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/session"
)

const (
	DefaultDebounce       = 1500 * time.Millisecond
	MinDuplicateLength    = 10
	DuplicateRadius       = 0.001
	duplicateCheckTimeout = 30 * time.Second
)

// DuplicateWatcher runs an advisory duplicate check once a draft stops
// changing. It never blocks submission.
type DuplicateWatcher struct {
	classifier Classifier
	debounce   time.Duration
	logger     *zap.Logger
}

func NewDuplicateWatcher(c Classifier, debounce time.Duration, logger *zap.Logger) *DuplicateWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuplicateWatcher{classifier: c, debounce: debounce, logger: logger}
}

// Update restarts the debounce for the session's draft. Short drafts cancel
// any pending check and clear the last warning.
func (w *DuplicateWatcher) Update(sess *session.Session, content string, loc models.Point) {
	content = strings.TrimSpace(content)
	if len([]rune(content)) < MinDuplicateLength {
		sess.SetDraftCanceler(nil)
		sess.ClearDuplicateWarning()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := time.AfterFunc(w.debounce, func() {
		defer cancel()
		w.check(ctx, sess, content, loc)
	})
	sess.SetDraftCanceler(func() {
		t.Stop()
		cancel()
	})
}

func (w *DuplicateWatcher) check(ctx context.Context, sess *session.Session, content string, loc models.Point) {
	f := sess.Feed()
	if f == nil {
		return
	}
	nearby := f.Nearby(loc, DuplicateRadius)
	if len(nearby) == 0 {
		return
	}
	candidates := make([]classifier.Candidate, 0, len(nearby))
	for _, r := range nearby {
		candidates = append(candidates, classifier.Candidate{ID: r.ID, Text: r.Content})
	}

	ctx, cancel := context.WithTimeout(ctx, duplicateCheckTimeout)
	defer cancel()
	verdict := w.classifier.CheckDuplicate(ctx, content, candidates)
	if ctx.Err() != nil {
		// superseded by newer input
		return
	}
	if verdict.IsDuplicate {
		w.logger.Debug("possible duplicate report",
			zap.String("client_id", sess.ID()),
			zap.String("duplicate_id", verdict.DuplicateID))
		sess.SetDuplicateWarning(verdict.DuplicateID)
	}
}
