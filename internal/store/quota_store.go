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

// QuotaStore maintains the per-(user, UTC date) send counter. The counter
// is the single shared mutable resource between concurrently dispatching
// campaigns of one user, so all mutations are conditional atomic updates;
// two campaigns can never jointly push it past the daily quota.
type QuotaStore struct {
	col *mongo.Collection
}

func NewQuotaStore(db *mongo.Database) *QuotaStore {
	return &QuotaStore{col: db.Collection("daily_quota")}
}

// Used returns the current count for a user and day, zero when no sends
// happened yet.
func (s *QuotaStore) Used(ctx context.Context, userID, day string) (int, error) {
	var q model.DailyQuota
	err := s.col.FindOne(ctx, bson.M{"_id": model.QuotaKey(userID, day)}).Decode(&q)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read quota counter: %w", err)
	}
	return q.Count, nil
}

// Reserve atomically claims one send against the daily limit. Returns false
// without an error when the quota is exhausted.
//
// The counter document is created first and incremented with a guarded
// update in a second step: an upsert on the guarded filter would insert a
// duplicate day document once the limit is reached.
func (s *QuotaStore) Reserve(ctx context.Context, userID, day string, limit int) (bool, error) {
	key := model.QuotaKey(userID, day)

	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$setOnInsert": bson.M{"user_id": userID, "date": day, "count": 0}},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to ensure quota counter: %w", err)
	}

	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": key, "count": bson.M{"$lt": limit}},
		bson.M{"$inc": bson.M{"count": 1}})
	if err != nil {
		return false, fmt.Errorf("failed to reserve quota: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// Release returns one previously reserved send, used when the reserved
// attempt fails at the transport. Failed sends do not consume quota.
func (s *QuotaStore) Release(ctx context.Context, userID, day string) error {
	_, err := s.col.UpdateOne(ctx,
		bson.M{"_id": model.QuotaKey(userID, day), "count": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"count": -1}})
	if err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}
