// Package store persists reports in MongoDB and organizations and staff
// accounts in PostgreSQL.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

var ErrNotFound = errors.New("not found")

const reportsCollection = "reports"

// MaxPageSize bounds a single List call.
const MaxPageSize = 100

type MongoReports struct {
	col *mongo.Collection
}

func NewMongoReports(db *mongo.Database) *MongoReports {
	return &MongoReports{col: db.Collection(reportsCollection)}
}

// EnsureIndexes configures indexes for the reports collection.
// Called on startup from main after Mongo has connected.
func (s *MongoReports) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "org_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_org_created"),
		},
		{
			Keys:    bson.D{{Key: "author_id", Value: 1}},
			Options: options.Index().SetName("idx_author").SetSparse(true),
		},
	}
	_, err := s.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (s *MongoReports) Insert(ctx context.Context, r models.Report) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.col.InsertOne(ctx, r)
	return err
}

// List returns an organization's reports newest first.
func (s *MongoReports) List(ctx context.Context, orgID string, offset, limit int) ([]models.Report, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := s.col.Find(ctx, bson.M{"org_id": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	reports := make([]models.Report, 0, limit)
	if err := cur.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *MongoReports) Get(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoReports) update(ctx context.Context, id string, update bson.M) (*models.Report, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var r models.Report
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoReports) UpdateStatus(ctx context.Context, id string, status models.ReportStatus) (*models.Report, error) {
	return s.update(ctx, id, bson.M{"$set": bson.M{"status": status}})
}

func (s *MongoReports) AppendNote(ctx context.Context, id string, note models.Note) (*models.Report, error) {
	return s.update(ctx, id, bson.M{"$push": bson.M{"notes": note}})
}

func (s *MongoReports) Vote(ctx context.Context, id string) (*models.Report, error) {
	return s.update(ctx, id, bson.M{"$inc": bson.M{"votes": 1}})
}
