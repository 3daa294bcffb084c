package audit

import (
	"context"

	"hr-platform/internal/tenant"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "audit_logs"

// MongoRepo stores records in the audit_logs collection. It only ever inserts.
type MongoRepo struct {
	c *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{c: db.Collection(mongoCollection)}
}

// EnsureIndexes creates the organization, user and timestamp access paths.
func (r *MongoRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: tenant.OrganizationField, Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return err
}

func (r *MongoRepo) Append(ctx context.Context, rec Record) error {
	if rec.Meta == nil {
		rec.Meta = Meta{}
	}
	_, err := r.c.InsertOne(ctx, rec)
	return err
}

func (r *MongoRepo) List(ctx context.Context, scope tenant.Scope, q Query) ([]Record, int64, error) {
	filter := bson.M(scope.Bind(mongoFilter(q)))

	total, err := r.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.offset())).
		SetLimit(int64(q.Limit))
	cur, err := r.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := make([]Record, 0, q.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func mongoFilter(q Query) tenant.Filter {
	f := tenant.Filter{}
	if q.Action != "" {
		f["action"] = string(q.Action)
	}
	if q.UserID != "" {
		f["user_id"] = q.UserID
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		ts := bson.M{}
		if !q.From.IsZero() {
			ts["$gte"] = q.From
		}
		if !q.To.IsZero() {
			ts["$lte"] = q.To
		}
		f["timestamp"] = ts
	}
	return f
}
