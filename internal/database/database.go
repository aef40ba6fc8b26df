package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const defaultMongoDB = "civicpulse"

// Client and DB hold the report store connection.
var (
	Client *mongo.Client
	DB     *mongo.Database
)

func Connect(mongoURI string, logger *zap.Logger) error {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetAppName("civicpulse-backend").
		SetMaxPoolSize(50).
		// Atlas clusters can be slow to select a server on cold start.
		SetServerSelectionTimeout(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("ping mongo: %w", err)
	}

	Client = client
	DB = client.Database(DatabaseName(mongoURI))
	logger.Info("connected to MongoDB", zap.String("database", DB.Name()))
	return nil
}

// DatabaseName returns the path segment of a Mongo URI, or the default
// when the URI names no database.
func DatabaseName(mongoURI string) string {
	_, rest, found := strings.Cut(mongoURI, "://")
	if !found {
		rest = mongoURI
	}
	_, path, found := strings.Cut(rest, "/")
	if !found {
		return defaultMongoDB
	}
	name, _, _ := strings.Cut(path, "?")
	if name == "" {
		return defaultMongoDB
	}
	return name
}

func Disconnect() error {
	if Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := Client.Disconnect(ctx)
	Client, DB = nil, nil
	return err
}
