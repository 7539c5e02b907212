package gradebook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var client *mongo.Client

func init() {
	opts := options.Client().
		ApplyURI("mongodb://localhost:27017").
		SetServerSelectionTimeout(2 * time.Second)
	ctx := context.Background()
	var err error
	client, err = mongo.Connect(opts)
	if err != nil {
		client = nil
		return
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		client = nil
	}
}

func TestNewMongoStorePanics(t *testing.T) {
	assert.Panics(t, func() { NewMongoStore(nil, "") })
}

func TestMongoStore(t *testing.T) {
	if client == nil {
		t.Skip("MongoDB is not available at localhost:27017")
	}
	ctx := context.Background()
	db := client.Database(fmt.Sprint("tdb", time.Now().UnixNano())) // random name
	t.Cleanup(func() {
		assert.NoError(t, db.Drop(context.Background()))
	})

	s := NewMongoStore(db, "")
	require.NoError(t, s.EnsureIndexes(ctx))

	var docs []any
	for _, r := range testRecords() {
		docs = append(docs, r)
	}
	_, err := db.Collection(DefaultCollectionName).InsertMany(ctx, docs)
	require.NoError(t, err)

	testStore(t, s)
}
