package models

import (
	"time"
)

// Sentiment is the classifier's tone label for a report.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// ReportStatus is the triage workflow state. Any status may move to any other.
type ReportStatus string

const (
	StatusReceived   ReportStatus = "received"
	StatusTriaged    ReportStatus = "triaged"
	StatusInProgress ReportStatus = "in_progress"
	StatusResolved   ReportStatus = "resolved"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusReceived, StatusTriaged, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Point is a normalized map coordinate. X doubles as latitude and Y as longitude.
type Point struct {
	X float64 `bson:"x" json:"x"`
	Y float64 `bson:"y" json:"y"`
}

// Near reports whether p lies within radius of q on both axes.
func (p Point) Near(q Point, radius float64) bool {
	dx := p.X - q.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - q.Y
	if dy < 0 {
		dy = -dy
	}
	return dx <= radius && dy <= radius
}

type Note struct {
	Author    string    `bson:"author" json:"author"`
	Text      string    `bson:"text" json:"text"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Report is stored in MongoDB, one document per submission. IDs are generated
// at submission time and never change.
type Report struct {
	ID                 string       `bson:"_id" json:"id"`
	OrganizationID     string       `bson:"org_id" json:"organization_id"`
	Location           Point        `bson:"location" json:"location"`
	Content            string       `bson:"content" json:"content"`
	CreatedAt          time.Time    `bson:"created_at" json:"created_at"`
	Sentiment          Sentiment    `bson:"sentiment" json:"sentiment"`
	Category           string       `bson:"category" json:"category"`
	Summary            string       `bson:"summary,omitempty" json:"summary,omitempty"`
	RiskScore          int          `bson:"risk_score" json:"risk_score"`
	EcoImpactScore     int          `bson:"eco_impact_score" json:"eco_impact_score"`
	EcoImpactReasoning string       `bson:"eco_impact_reasoning,omitempty" json:"eco_impact_reasoning,omitempty"`
	Status             ReportStatus `bson:"status" json:"status"`
	AuthorName         string       `bson:"author_name,omitempty" json:"author_name,omitempty"`
	ContactEmail       string       `bson:"contact_email,omitempty" json:"contact_email,omitempty"`
	AuthorID           string       `bson:"author_id,omitempty" json:"author_id,omitempty"`
	Attachments        []string     `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Votes              int          `bson:"votes" json:"votes"`
	Notes              []Note       `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Public returns a copy without contact fields or internal notes, for
// unauthenticated readers.
func (r Report) Public() Report {
	r.AuthorName = ""
	r.ContactEmail = ""
	r.Notes = nil
	return r
}

// Clone returns a deep copy so list state can be handed out without aliasing.
func (r Report) Clone() Report {
	if r.Attachments != nil {
		r.Attachments = append([]string(nil), r.Attachments...)
	}
	if r.Notes != nil {
		r.Notes = append([]Note(nil), r.Notes...)
	}
	return r
}
