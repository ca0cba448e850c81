package user

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the MongoDB collection holding user records.
const CollectionName = "users"

// MongoStore persists users in MongoDB.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore creates a store on db.users.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll: db.Collection(CollectionName),
		now:  time.Now,
	}
}

// EnsureIndexes creates the lookup index used by the mirror sync. The index
// is unique so two users can never share a ledger customer; it is sparse
// because users get a customer id only on first resolution.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, billingCustomerIndex())
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	return nil
}

func billingCustomerIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "billing_customer_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	}
}

// Get returns the user with id, or ErrNotFound.
func (s *MongoStore) Get(ctx context.Context, id string) (User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindByBillingCustomerID returns the user linked to a ledger customer, or ErrNotFound.
func (s *MongoStore) FindByBillingCustomerID(ctx context.Context, customerID string) (User, error) {
	if customerID == "" {
		return User{}, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"billing_customer_id": customerID})
}

// Ensure creates the user or refreshes its profile fields. The billing customer id and mirror are kept.
func (s *MongoStore) Ensure(ctx context.Context, in User) (User, error) {
	if in.ID == "" {
		return User{}, ErrMissingID
	}
	now := s.now().UTC()
	update := bson.M{
		"$set": bson.M{
			"email":      in.Email,
			"name":       in.Name,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var u User
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": in.ID}, update, opts).Decode(&u); err != nil {
		return User{}, errors.Join(ErrStoreFailed, err)
	}
	return u, nil
}

// SetBillingCustomerID links the user to a ledger customer.
func (s *MongoStore) SetBillingCustomerID(ctx context.Context, id, customerID string) error {
	return s.set(ctx, id, bson.M{"billing_customer_id": customerID})
}

// SetMirror replaces the user's subscription mirror.
func (s *MongoStore) SetMirror(ctx context.Context, id string, m Mirror) error {
	return s.set(ctx, id, bson.M{"billing_mirror": m})
}

func (s *MongoStore) set(ctx context.Context, id string, fields bson.M) error {
	fields["updated_at"] = s.now().UTC()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return errors.Join(ErrStoreFailed, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (User, error) {
	var u User
	err := s.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, errors.Join(ErrStoreFailed, err)
	}
	return u, nil
}
