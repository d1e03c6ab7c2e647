package history

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/thumbatlas/pkg/buildinfo"
)

// Defaults for the Mongo backend.
const (
	DefaultDatabase   = "thumbatlas"
	DefaultCollection = "runs"
)

// MongoStore keeps runs in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri, verifies the connection and ensures the
// started_at index exists.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName(buildinfo.UserAgent()))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "started_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

// Record upserts r, retrying transient network failures.
func (s *MongoStore) Record(ctx context.Context, r Run) error {
	opts := options.Replace().SetUpsert(true)
	return retry(ctx, retryDelay, transient, func() error {
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, opts)
		return err
	})
}

// List returns the newest runs.
func (s *MongoStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	var runs []Run
	err := retry(ctx, retryDelay, transient, func() error {
		cur, err := s.coll.Find(ctx, bson.D{}, opts)
		if err != nil {
			return err
		}
		runs = runs[:0]
		return cur.All(ctx, &runs)
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// transient reports whether a Mongo error is worth retrying.
func transient(err error) bool {
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}

var _ Store = (*MongoStore)(nil)
