package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/netsync/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultAccountsCollection is the collection holding account documents.
const DefaultAccountsCollection = "users"

// MongoAccountRepository handles persistence for accounts in MongoDB.
type MongoAccountRepository struct {
	coll *mongo.Collection
}

func NewMongoAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{coll: db.Collection(DefaultAccountsCollection)}
}

// EnsureIndexes creates the unique email index the Insert conflict detection
// depends on, plus the tenant lookup index.
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}},
			Options: options.Index().SetName("tenant_id"),
		},
	})
	return err
}

func (r *MongoAccountRepository) Insert(ctx context.Context, account types.Account) (InsertResult, error) {
	if _, err := r.coll.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Conflict, nil
		}
		return 0, err
	}
	return Inserted, nil
}

func (r *MongoAccountRepository) FindByEmail(ctx context.Context, email string) (types.Account, error) {
	var account types.Account
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	if account.Role, err = types.ParseRole(string(account.Role)); err != nil {
		return types.Account{}, fmt.Errorf("account %s: %w", account.ID, err)
	}
	return account, nil
}

func (r *MongoAccountRepository) MarkEmailVerified(ctx context.Context, email string, at time.Time) error {
	return r.updateOne(ctx, email, bson.M{
		"is_email_verified": true,
		"updated_at":        at,
	})
}

func (r *MongoAccountRepository) ReplaceOTP(ctx context.Context, email, otpHash string, expiresAt, at time.Time) error {
	return r.updateOne(ctx, email, bson.M{
		"email_otp_hash":       otpHash,
		"email_otp_expires_at": expiresAt,
		"updated_at":           at,
	})
}

func (r *MongoAccountRepository) updateOne(ctx context.Context, email string, set bson.M) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
