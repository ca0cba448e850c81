package quota

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/imgcompare/svc/plan"
)

// CollectionName is the MongoDB collection holding quota counters.
const CollectionName = "quota_counters"

// mongoAttempts bounds retries of the upsert when two first-of-day
// inserts for the same user collide.
const mongoAttempts = 3

// MongoStore keeps one counter document per user and consumes quota with a
// single conditional FindOneAndUpdate. The filter only matches when the
// stored day is stale or the count is below the limit, so the server
// serializes concurrent increments on the document.
type MongoStore struct {
	coll *mongo.Collection
	opts storeOptions
}

// NewMongoStore creates a store on db.quota_counters.
func NewMongoStore(db *mongo.Database, opts ...Option) *MongoStore {
	return &MongoStore{
		coll: db.Collection(CollectionName),
		opts: newOptions(opts),
	}
}

// CheckAndConsume consumes one unit of today's allowance with a single
// conditional FindOneAndUpdate, falling back to a read when the upsert
// collides with an existing counter.
func (s *MongoStore) CheckAndConsume(ctx context.Context, userID string, tier plan.Tier, limit int) (Usage, error) {
	if userID == "" {
		return Usage{}, ErrMissingUserID
	}
	now := s.opts.now().UTC()
	day := Day(now)
	if limit <= 0 {
		return Usage{Day: day, Plan: tier}, ErrLimitExceeded
	}

	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "day", Value: bson.D{{Key: "$ne", Value: day}}}},
			bson.D{{Key: "count", Value: bson.D{{Key: "$lt", Value: limit}}}},
		}},
	}
	// Aggregation pipeline update: count restarts at 1 on a new day.
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "count", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$day", day}}},
				bson.D{{Key: "$add", Value: bson.A{"$count", 1}}},
				1,
			}}}},
			{Key: "day", Value: day},
			{Key: "max", Value: limit},
			{Key: "plan", Value: string(tier)},
			{Key: "updated_at", Value: now},
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	for range mongoAttempts {
		var c Counter
		err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
		if err == nil {
			return usageOf(c, day), nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return Usage{}, errors.Join(ErrStoreUnavailable, err)
		}

		// The filter missed an existing document: either the limit is
		// reached or a concurrent first insert won the race.
		current, err := s.load(ctx, userID)
		if err != nil {
			return Usage{}, err
		}
		if used := current.UsedOn(day); used >= limit {
			return Usage{Day: day, Plan: tier, Used: used, Max: limit}, ErrLimitExceeded
		}
	}
	return Usage{}, errors.Join(ErrStoreUnavailable, errors.New("counter update kept conflicting"))
}

// Usage returns today's consumption for userID without writing.
func (s *MongoStore) Usage(ctx context.Context, userID string) (Usage, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	return usageOf(c, Day(s.opts.now())), nil
}

func (s *MongoStore) load(ctx context.Context, userID string) (Counter, error) {
	var c Counter
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Counter{UserID: userID}, nil
	}
	if err != nil {
		return Counter{}, errors.Join(ErrStoreUnavailable, err)
	}
	return c, nil
}
