package cache

import (
	"context"
	"errors"
	"time"

	"github.com/chrbailey/restaurant-scheduler-sub005/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoEntry struct {
	Key        string                  `bson:"key"`
	Reputation model.NetworkReputation `bson:"reputation"`
	ExpiresAt  time.Time               `bson:"expires_at"`
}

// MongoCache stores entries in a TTL-indexed collection. Mongo's expiry
// monitor only sweeps periodically, so Get still checks expires_at itself.
type MongoCache struct {
	coll *mongo.Collection
}

func NewMongoCache(client *mongo.Client, dbName string) *MongoCache {
	return &MongoCache{coll: client.Database(dbName).Collection("reputation_cache")}
}

func (c *MongoCache) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	return err
}

func (c *MongoCache) Get(ctx context.Context, key string) (*model.NetworkReputation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var e mongoEntry
	err := c.coll.FindOne(ctx, bson.M{"key": key}).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().After(e.ExpiresAt) {
		return nil, nil
	}
	return &e.Reputation, nil
}

func (c *MongoCache) Set(ctx context.Context, key string, rep model.NetworkReputation, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	e := mongoEntry{Key: key, Reputation: rep, ExpiresAt: time.Now().Add(ttl)}
	_, err := c.coll.ReplaceOne(ctx, bson.M{"key": key}, e, options.Replace().SetUpsert(true))
	return err
}

func (c *MongoCache) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.coll.DeleteOne(ctx, bson.M{"key": key})
	return err
}

func (c *MongoCache) Close() error {
	return nil
}
