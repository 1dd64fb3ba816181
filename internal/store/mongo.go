// Package store implements the document store collaborators on MongoDB:
// campaigns, recipients, the append-only delivery log, per-user daily quota
// counters, and SMTP settings.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

var (
	// ErrNotFound is returned when a point lookup matches no document.
	ErrNotFound = errors.New("document not found")
	// ErrFailedToConnect is returned when the initial connection cannot be established.
	ErrFailedToConnect = errors.New("failed to connect to mongodb")
)

// Config holds MongoDB connection settings.
type Config struct {
	URL            string        `env:"MONGODB_URL,required"`
	Database       string        `env:"MONGODB_DATABASE" envDefault:"quillsend"`
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
}

// Connect establishes a verified client connection and returns the
// application database handle.
func Connect(ctx context.Context, cfg Config) (*mongo.Database, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToConnect, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %w", ErrFailedToConnect, err)
	}

	return client.Database(cfg.Database), nil
}

// Healthcheck returns a probe suitable for a health endpoint.
func Healthcheck(db *mongo.Database) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.Client().Ping(ctx, readpref.Primary())
	}
}
