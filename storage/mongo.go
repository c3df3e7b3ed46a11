package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "local_storage"

type kvDocument struct {
	ID        string    `bson:"_id"`
	Scope     string    `bson:"scope"`
	Key       string    `bson:"key"`
	Value     []byte    `bson:"value"`
	Size      int       `bson:"size"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoKV is the durable KV, one document per (scope, key).
type MongoKV struct {
	collection *mongo.Collection
	quota      int
}

// NewMongoKV wraps a collection. quota <= 0 disables the capacity limit.
func NewMongoKV(collection *mongo.Collection, quota int) *MongoKV {
	return &MongoKV{collection: collection, quota: quota}
}

// EnsureIndexes creates the scope index used by quota accounting.
func (m *MongoKV) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "scope", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create scope index: %w", err)
	}
	return nil
}

func documentID(scope, key string) string {
	return scope + "/" + key
}

func (m *MongoKV) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	var doc kvDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": documentID(scope, key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return doc.Value, true, nil
}

func (m *MongoKV) Set(ctx context.Context, scope, key string, value []byte) error {
	size := entrySize(key, value)
	if m.quota > 0 && !quotaExempt(key) {
		used, err := m.usedExcluding(ctx, scope, key)
		if err != nil {
			return err
		}
		if used+size > m.quota {
			return ErrQuotaExceeded
		}
	}

	doc := kvDocument{
		ID:        documentID(scope, key),
		Scope:     scope,
		Key:       key,
		Value:     value,
		Size:      size,
		UpdatedAt: time.Now(),
	}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (m *MongoKV) Delete(ctx context.Context, scope, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": documentID(scope, key)}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (m *MongoKV) usedExcluding(ctx context.Context, scope, key string) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "scope", Value: scope},
			{Key: "key", Value: bson.D{{Key: "$ne", Value: key}}},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$size"}}},
		}}},
	}
	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to compute storage usage: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode storage usage: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}
