package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/quillsend/quillsend-backend/internal/model"
)

// RecipientStore persists per-user recipient lists.
type RecipientStore struct {
	col *mongo.Collection
}

func NewRecipientStore(db *mongo.Database) *RecipientStore {
	return &RecipientStore{col: db.Collection("recipients")}
}

func (s *RecipientStore) Create(ctx context.Context, r *model.Recipient) error {
	if _, err := s.col.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}

// CreateMany bulk-inserts recipients from a list import.
func (s *RecipientStore) CreateMany(ctx context.Context, recipients []model.Recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	docs := make([]any, len(recipients))
	for i := range recipients {
		docs[i] = recipients[i]
	}
	if _, err := s.col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to bulk insert recipients: %w", err)
	}
	return nil
}

func (s *RecipientStore) ListByUser(ctx context.Context, userID string) ([]model.Recipient, error) {
	cursor, err := s.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	var recipients []model.Recipient
	if err := cursor.All(ctx, &recipients); err != nil {
		return nil, fmt.Errorf("failed to decode recipients: %w", err)
	}
	return recipients, nil
}

// Delete removes one recipient, scoped to its owner.
func (s *RecipientStore) Delete(ctx context.Context, userID, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete recipient %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: recipient %s", ErrNotFound, id)
	}
	return nil
}
