// Package mongostore is the MongoDB Store backend.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"txagg/internal/log"
)

const (
	TransactionsCollection = "transactions"
	RulesCollection        = "category_rules"
	CategoriesCollection   = "categories"
)

// Collection is the subset of *mongo.Collection the store uses.
type Collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// CollectionProvider hands out collections by name.
type CollectionProvider interface {
	Collection(name string) Collection
}

// DatabaseProvider adapts a *mongo.Database to CollectionProvider.
type DatabaseProvider struct {
	db *mongo.Database
}

func NewDatabaseProvider(db *mongo.Database) *DatabaseProvider {
	return &DatabaseProvider{db: db}
}

func (p *DatabaseProvider) Collection(name string) Collection {
	return p.db.Collection(name)
}

// Connect establishes a connection to MongoDB and verifies it with a ping.
func Connect(ctx context.Context, uri string, logger *log.Logger) (*mongo.Client, error) {
	logger.DebugContext(ctx, "Connecting to MongoDB")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	logger.InfoContext(ctx, "Connected to MongoDB")
	return client, nil
}

// EnsureIndexes creates the indexes backing the store's queries.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		TransactionsCollection: {
			{Keys: bson.D{{Key: "transaction_date", Value: -1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "transaction_date", Value: -1}}},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "is_deleted", Value: 1}}},
			{Keys: bson.D{{Key: "source", Value: 1}}},
		},
		RulesCollection: {
			{Keys: bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: 1}}},
		},
		CategoriesCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
