package mirror

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	NotificationsCollection = "billing_notifications"
	OrphansCollection       = "billing_orphans"
)

// MongoLog stores the notification log and orphans in MongoDB.
type MongoLog struct {
	notifications *mongo.Collection
	orphans       *mongo.Collection
}

// NewMongoLog creates a log on db.
func NewMongoLog(db *mongo.Database) *MongoLog {
	return &MongoLog{
		notifications: db.Collection(NotificationsCollection),
		orphans:       db.Collection(OrphansCollection),
	}
}

// EnsureIndexes creates the indexes used for offline reconciliation.
func (l *MongoLog) EnsureIndexes(ctx context.Context) error {
	_, err := l.notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "customer_id", Value: 1}}},
		{Keys: bson.D{{Key: "received_at", Value: -1}}},
	})
	if err != nil {
		return errors.Join(ErrLogFailed, err)
	}
	return nil
}

// Begin claims e.ID with a single conditional upsert. The filter matches
// only failed or abandoned entries; for any other existing entry the upsert
// collides on _id and the claim is refused.
func (l *MongoLog) Begin(ctx context.Context, e Entry) (bool, error) {
	_, err := l.notifications.UpdateOne(ctx, claimFilter(e), claimUpdate(e), options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Join(ErrLogFailed, err)
	}
	return true, nil
}

func claimFilter(e Entry) bson.M {
	return bson.M{
		"_id": e.ID,
		"$or": bson.A{
			bson.M{"error": bson.M{"$gt": ""}},
			bson.M{
				"processed_at": bson.M{"$exists": false},
				"claimed_at":   bson.M{"$lt": e.ReceivedAt.Add(-ClaimTTL)},
			},
		},
	}
}

func claimUpdate(e Entry) bson.M {
	return bson.M{
		"$set": bson.M{
			"type":        e.Type,
			"customer_id": e.CustomerID,
			"received_at": e.ReceivedAt,
			"claimed_at":  e.ReceivedAt,
			"orphan":      false,
		},
		"$unset": bson.M{"error": "", "processed_at": ""},
	}
}

// MarkProcessed records a successful run and the user it was applied to.
func (l *MongoLog) MarkProcessed(ctx context.Context, id, userID string, orphan bool, at time.Time) error {
	_, err := l.notifications.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"user_id":      userID,
			"orphan":       orphan,
			"processed_at": at,
		},
		"$unset": bson.M{"error": ""},
	})
	if err != nil {
		return errors.Join(ErrLogFailed, err)
	}
	return nil
}

// MarkFailed records a failed run; the entry can be claimed again.
func (l *MongoLog) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	_, err := l.notifications.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"error":        reason,
			"processed_at": at,
		},
	})
	if err != nil {
		return errors.Join(ErrLogFailed, err)
	}
	return nil
}

// SaveOrphan stores or replaces an orphan by key.
func (l *MongoLog) SaveOrphan(ctx context.Context, o Orphan) error {
	_, err := l.orphans.ReplaceOne(ctx, bson.M{"_id": o.Key}, o, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrLogFailed, err)
	}
	return nil
}
