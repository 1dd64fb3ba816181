package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/quillsend/quillsend-backend/internal/model"
)

// SMTPStore persists one SMTP settings document per user, keyed by user id.
type SMTPStore struct {
	col *mongo.Collection
}

func NewSMTPStore(db *mongo.Database) *SMTPStore {
	return &SMTPStore{col: db.Collection("smtp_settings")}
}

// Save upserts the user's settings. The password field must already be
// encrypted by the caller.
func (s *SMTPStore) Save(ctx context.Context, settings *model.SMTPSettings) error {
	_, err := s.col.ReplaceOne(ctx,
		bson.M{"_id": settings.UserID},
		settings,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save smtp settings: %w", err)
	}
	return nil
}

func (s *SMTPStore) Get(ctx context.Context, userID string) (*model.SMTPSettings, error) {
	var settings model.SMTPSettings
	err := s.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&settings)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: smtp settings for user %s", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("failed to fetch smtp settings: %w", err)
	}
	return &settings, nil
}
