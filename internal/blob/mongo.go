package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo stores each object as one document {_id: key, data: bytes}.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoObject struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func NewMongo(ctx context.Context, uri, dbName, collName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("NewMongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("NewMongo: ping: %w", err)
	}
	return &Mongo{client: client, collection: client.Database(dbName).Collection(collName)}, nil
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	var obj mongoObject
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&obj)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Mongo.Get: find object: %w", err)
	}
	return obj.Data, nil
}

func (m *Mongo) Put(ctx context.Context, key string, data []byte) error {
	obj := mongoObject{Key: key, Data: data, UpdatedAt: time.Now().UTC()}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, obj, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("Mongo.Put: replace object: %w", err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("Mongo.Delete: %w", err)
	}
	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
