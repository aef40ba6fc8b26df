// Package pipeline turns a resident's draft into a stored, classified report.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
	"github.com/AnshRaj112/civicpulse-backend/internal/classifier"
	"github.com/AnshRaj112/civicpulse-backend/internal/models"
	"github.com/AnshRaj112/civicpulse-backend/internal/objectstore"
	"github.com/AnshRaj112/civicpulse-backend/internal/realtime"
	"github.com/AnshRaj112/civicpulse-backend/internal/sanitize"
	"github.com/AnshRaj112/civicpulse-backend/internal/session"
)

const (
	DefaultPersistTimeout = 5 * time.Second
	DefaultUploadTimeout  = 30 * time.Second
	publishTimeout        = 2 * time.Second
)

// ErrNoop is returned for a draft with neither text nor image. Callers ignore it.
var ErrNoop = errors.New("empty draft")

type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) (*classifier.Result, error)
	CheckDuplicate(ctx context.Context, draft string, candidates []classifier.Candidate) classifier.DuplicateVerdict
}

type ReportWriter interface {
	Insert(ctx context.Context, r models.Report) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Draft is what the resident typed and selected before pressing submit.
type Draft struct {
	Content        string       `json:"content"`
	Category       string       `json:"category"`
	Location       models.Point `json:"location"`
	ChallengeToken string       `json:"challenge_token"`
	AuthorName     string       `json:"author_name,omitempty"`
	ContactEmail   string       `json:"contact_email,omitempty"`
	Language       string       `json:"language,omitempty"`
	Image          *Attachment  `json:"-"`
}

func (d Draft) empty() bool {
	return strings.TrimSpace(d.Content) == "" && (d.Image == nil || len(d.Image.Data) == 0)
}

// Submission is the optimistic result of Submit. Persisted receives the
// outcome of the background write exactly once.
type Submission struct {
	Report    models.Report
	Persisted <-chan error
}

type Pipeline struct {
	classifier     Classifier
	reports        ReportWriter
	objects        objectstore.Store
	publisher      EventPublisher
	logger         *zap.Logger
	persistTimeout time.Duration
	now            func() time.Time
}

type Option func(*Pipeline)

func WithPublisher(p EventPublisher) Option { return func(pl *Pipeline) { pl.publisher = p } }

func WithLogger(l *zap.Logger) Option { return func(pl *Pipeline) { pl.logger = l } }

func WithPersistTimeout(d time.Duration) Option {
	return func(pl *Pipeline) { pl.persistTimeout = d }
}

func WithClock(now func() time.Time) Option { return func(pl *Pipeline) { pl.now = now } }

func New(c Classifier, reports ReportWriter, objects objectstore.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier:     c,
		reports:        reports,
		objects:        objects,
		logger:         zap.NewNop(),
		persistTimeout: DefaultPersistTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.objects == nil {
		p.objects = objectstore.InlineStore{}
	}
	return p
}

// Submit validates the draft, classifies it, inserts it into the session's
// feed and starts the background write. Nothing is rolled back when the
// write fails; the session is notified instead.
func (p *Pipeline) Submit(ctx context.Context, sess *session.Session, d Draft) (*Submission, error) {
	if d.empty() {
		return nil, ErrNoop
	}
	if strings.TrimSpace(d.ChallengeToken) == "" {
		return nil, apperr.Validation("challenge_missing", "Security check incomplete. Please complete the challenge.")
	}
	if strings.TrimSpace(d.Category) == "" {
		return nil, apperr.Validation("category_required", "Please select a category.")
	}
	f := sess.Feed()
	if f == nil {
		return nil, apperr.Validation("organization_required", "Select an organization first.")
	}
	if err := sess.Admit(ctx); err != nil {
		return nil, err
	}

	content := sanitize.Text(d.Content)
	var img *classifier.Image
	if d.Image != nil && len(d.Image.Data) > 0 {
		if len(d.Image.Data) > objectstore.MaxObjectSize {
			return nil, apperr.Validation("image_too_large", "Image is too large. Maximum size is 10MB.")
		}
		obj := objectstore.NewObject(d.Image.Filename, d.Image.ContentType, d.Image.Data)
		d.Image.ContentType = obj.ContentType
		img = &classifier.Image{MIMEType: obj.ContentType, Data: d.Image.Data}
	}

	result, err := p.classifier.Classify(ctx, classifier.Request{
		Text:         content,
		Image:        img,
		CategoryHint: strings.TrimSpace(d.Category),
		Language:     d.Language,
	})
	if err != nil {
		return nil, err
	}
	if !result.IsCivicIssue {
		return nil, apperr.Refusal(result.RefusalReason)
	}

	var attachments []string
	if img != nil {
		url, err := p.upload(ctx, d.Image)
		if err != nil {
			return nil, err
		}
		attachments = []string{url}
	}

	r := models.Report{
		ID:                 uuid.NewString(),
		OrganizationID:     f.OrganizationID(),
		Location:           d.Location,
		Content:            content,
		CreatedAt:          p.now().UTC(),
		Sentiment:          result.Sentiment,
		Category:           result.Category,
		Summary:            result.Summary,
		RiskScore:          result.RiskScore,
		EcoImpactScore:     result.EcoImpactScore,
		EcoImpactReasoning: result.EcoImpactReasoning,
		Status:             models.StatusReceived,
		AuthorName:         sanitize.Text(d.AuthorName),
		ContactEmail:       strings.TrimSpace(d.ContactEmail),
		Attachments:        attachments,
	}
	if id := sess.Identity(); id != nil {
		r.AuthorID = id.ID
	}

	f.InsertOptimistic(r)
	sess.ClearDuplicateWarning()

	done := make(chan error, 1)
	go p.persist(sess, r.Clone(), done)

	return &Submission{Report: r, Persisted: done}, nil
}

func (p *Pipeline) upload(ctx context.Context, a *Attachment) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultUploadTimeout)
	defer cancel()
	obj := objectstore.NewObject(a.Filename, a.ContentType, a.Data)
	url, err := p.objects.Put(ctx, obj)
	if err != nil {
		return "", apperr.External("upload_failed", "Failed to upload image. Please try again.", err)
	}
	return url, nil
}

// persist writes r in the background. The request context is not used so a
// client disconnect does not abort the write.
func (p *Pipeline) persist(sess *session.Session, r models.Report, done chan<- error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.persistTimeout)
	defer cancel()

	if err := p.reports.Insert(ctx, r); err != nil {
		p.logger.Error("failed to persist report",
			zap.String("report_id", r.ID),
			zap.String("org_id", r.OrganizationID),
			zap.Error(err))
		sess.Notify(session.Notice{
			Type:     session.NoticePersistFailed,
			ReportID: r.ID,
			OrgID:    r.OrganizationID,
			Message:  "Your report could not be saved. Please try again.",
		})
		done <- err
		return
	}

	if err := sess.Record(ctx); err != nil {
		p.logger.Warn("failed to record admission", zap.String("client_id", sess.ID()), zap.Error(err))
	}

	if p.publisher != nil {
		pctx, pcancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.publisher.Publish(pctx, realtime.Event{Type: realtime.EventInsert, OrganizationID: r.OrganizationID, Report: r}); err != nil {
			p.logger.Warn("failed to publish report insert", zap.String("report_id", r.ID), zap.Error(err))
		}
		pcancel()
	}
	done <- nil
}
