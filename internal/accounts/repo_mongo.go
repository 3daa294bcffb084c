package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hr-platform/internal/tenant"
	"hr-platform/pkg/logger"
	"hr-platform/pkg/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepo struct {
	client *mongo.Client
	orgs   *mongo.Collection
	users  *mongo.Collection
}

func NewMongoRepo(client *mongo.Client, db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		client: client,
		orgs:   db.Collection("organizations"),
		users:  db.Collection("users"),
	}
}

// EnsureIndexes creates the uniqueness constraints registration relies on.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	// Organization names compare case-insensitively.
	uniqueFolded := options.Index().SetUnique(true).
		SetCollation(&options.Collation{Locale: "en", Strength: 2})
	if _, err := r.orgs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: uniqueFolded},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
	}); err != nil {
		return fmt.Errorf("organizations indexes: %w", err)
	}
	if _, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: tenant.OrganizationField, Value: 1}}},
	}); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	return nil
}

func (r *MongoRepo) CreateOrganizationWithAdmin(ctx context.Context, org Organization, admin User) error {
	insert := func(ctx context.Context) error {
		if _, err := r.orgs.InsertOne(ctx, org); err != nil {
			return err
		}
		_, err := r.users.InsertOne(ctx, admin)
		return err
	}

	err := utils.WithMongoTx(ctx, r.client, insert)
	if errors.Is(err, utils.ErrTxnNotSupported) {
		// Standalone server: organization first, removed again if the admin
		// cannot be stored.
		err = r.createOrdered(ctx, org, admin)
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

func (r *MongoRepo) createOrdered(ctx context.Context, org Organization, admin User) error {
	if _, err := r.orgs.InsertOne(ctx, org); err != nil {
		return err
	}
	if _, err := r.users.InsertOne(ctx, admin); err != nil {
		if _, cerr := r.orgs.DeleteOne(ctx, bson.M{"_id": org.ID}); cerr != nil {
			logger.From(ctx).Error("compensating organization delete failed",
				"organization_id", org.ID, "err", cerr)
		}
		return err
	}
	return nil
}

func (r *MongoRepo) FindUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	if err := r.users.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *MongoRepo) GetUser(ctx context.Context, scope tenant.Scope, id string) (User, error) {
	var u User
	filter := bson.M(scope.Bind(tenant.Filter{"_id": id}))
	if err := r.users.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *MongoRepo) ListUsers(ctx context.Context, scope tenant.Scope, ids []string) ([]User, error) {
	filter := bson.M(scope.Bind(tenant.Filter{"_id": bson.M{"$in": ids}}))
	cur, err := r.users.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]User, 0, len(ids))
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepo) TouchLastLogin(ctx context.Context, scope tenant.Scope, at time.Time) error {
	filter := bson.M(scope.Bind(tenant.Filter{"_id": scope.UserID()}))
	res, err := r.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_login": at, "updated_at": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
