package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/quillsend/quillsend-backend/internal/model"
)

// DeliveryLogStore is the append-only per-attempt outcome record. Entries
// are never updated; the only delete path is bulk removal when the owning
// campaign is deleted.
type DeliveryLogStore struct {
	col *mongo.Collection
}

func NewDeliveryLogStore(db *mongo.Database) *DeliveryLogStore {
	return &DeliveryLogStore{col: db.Collection("delivery_logs")}
}

func (s *DeliveryLogStore) Append(ctx context.Context, e model.DeliveryLogEntry) error {
	if _, err := s.col.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to append delivery log entry: %w", err)
	}
	return nil
}

// ListByCampaign returns the most recent entries for a campaign, capped for
// the details endpoint.
func (s *DeliveryLogStore) ListByCampaign(ctx context.Context, campaignID string, limit int64) ([]model.DeliveryLogEntry, error) {
	cursor, err := s.col.Find(ctx,
		bson.M{"campaign_id": campaignID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery log: %w", err)
	}
	var entries []model.DeliveryLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode delivery log: %w", err)
	}
	return entries, nil
}

// HasDelivered reports whether a recipient already has a sent entry for the
// campaign. Used as the idempotency check when a dispatch resumes.
func (s *DeliveryLogStore) HasDelivered(ctx context.Context, campaignID, recipientID string) (bool, error) {
	count, err := s.col.CountDocuments(ctx, bson.M{
		"campaign_id":  campaignID,
		"recipient_id": recipientID,
		"outcome":      model.OutcomeSent,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check delivery log: %w", err)
	}
	return count > 0, nil
}

// DeleteByCampaign removes all entries for a deleted campaign.
func (s *DeliveryLogStore) DeleteByCampaign(ctx context.Context, campaignID string) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{"campaign_id": campaignID}); err != nil {
		return fmt.Errorf("failed to delete delivery log for campaign %s: %w", campaignID, err)
	}
	return nil
}
