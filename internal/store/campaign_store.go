package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/quillsend/quillsend-backend/internal/model"
)

// CampaignStore persists campaign aggregates.
type CampaignStore struct {
	col *mongo.Collection
}

func NewCampaignStore(db *mongo.Database) *CampaignStore {
	return &CampaignStore{col: db.Collection("campaigns")}
}

func (s *CampaignStore) Create(ctx context.Context, c *model.Campaign) error {
	if _, err := s.col.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (s *CampaignStore) Get(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: campaign %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch campaign %s: %w", id, err)
	}
	return &c, nil
}

func (s *CampaignStore) ListByUser(ctx context.Context, userID string) ([]model.Campaign, error) {
	cursor, err := s.col.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	var campaigns []model.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, fmt.Errorf("failed to decode campaigns: %w", err)
	}
	return campaigns, nil
}

func (s *CampaignStore) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete campaign %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: campaign %s", ErrNotFound, id)
	}
	return nil
}

// SetStatus records a status transition with an optional human-readable reason.
func (s *CampaignStore) SetStatus(ctx context.Context, id string, status model.CampaignStatus, reason string) error {
	update := bson.M{"status": status, "status_reason": reason}
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update}); err != nil {
		return fmt.Errorf("failed to update campaign %s status: %w", id, err)
	}
	return nil
}

// MarkStarted flips a campaign into running with a fresh stats block and
// checkpoint. Refuses campaigns that are already running so double triggers
// cannot start two loops over the same list.
func (s *CampaignStore) MarkStarted(ctx context.Context, id string, total int, at time.Time) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": model.StatusRunning}},
		bson.M{"$set": bson.M{
			"status":        model.StatusRunning,
			"status_reason": "",
			"stats":         model.CampaignStats{Total: total, Pending: total},
			"progress":      model.Progress{},
			"started_at":    at,
		}})
	if err != nil {
		return fmt.Errorf("failed to mark campaign %s started: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("campaign %s is already running", id)
	}
	return nil
}

// UpdateProgress flushes the denormalized stats and the dispatch checkpoint.
func (s *CampaignStore) UpdateProgress(ctx context.Context, id string, stats model.CampaignStats, progress model.Progress) error {
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"stats":    stats,
		"progress": progress,
	}}); err != nil {
		return fmt.Errorf("failed to update campaign %s progress: %w", id, err)
	}
	return nil
}

// MarkCompleted records the terminal state once every recipient was attempted.
func (s *CampaignStore) MarkCompleted(ctx context.Context, id string, stats model.CampaignStats, at time.Time) error {
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":        model.StatusCompleted,
		"status_reason": "",
		"stats":         stats,
		"completed_at":  at,
	}}); err != nil {
		return fmt.Errorf("failed to mark campaign %s completed: %w", id, err)
	}
	return nil
}

// FindDueScheduled returns scheduled campaigns whose schedule time has elapsed.
func (s *CampaignStore) FindDueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	cursor, err := s.col.Find(ctx, bson.M{
		"status":        model.StatusScheduled,
		"schedule_time": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find due campaigns: %w", err)
	}
	var campaigns []model.Campaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, fmt.Errorf("failed to decode due campaigns: %w", err)
	}
	return campaigns, nil
}
