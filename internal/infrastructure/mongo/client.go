// Package mongo implements the user and OTP stores on MongoDB collections.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-otp-auth/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Connect dials cfg.URI and pings the primary before returning.
func Connect(ctx context.Context, cfg config.Mongo) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique email index on the OTP collection. User
// email is deliberately left without a unique index.
func EnsureIndexes(ctx context.Context, otps *mongo.Collection) error {
	name, err := otps.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldEmail, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create otp email index: %w", err)
	}
	slog.Info("ensured index", "collection", otps.Name(), "index", name)
	return nil
}
