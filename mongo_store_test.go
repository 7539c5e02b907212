package linkauthn

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var client *mongo.Client

func init() {
	options := options.Client().
		ApplyURI("mongodb://localhost:27017").
		SetServerSelectionTimeout(2 * time.Second)
	ctx := context.Background()
	var err error
	client, err = mongo.Connect(options)
	if err != nil {
		client = nil
		return
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		client = nil
	}
}

// newTestMongoStore returns a MongoStore using a fresh database, skipping the
// test if MongoDB is not available.
func newTestMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	if client == nil {
		t.Skip("MongoDB is not available at localhost:27017")
	}

	cfg := MongoConfig{DBName: fmt.Sprint("tdb", time.Now().UnixNano())} // random name
	s := NewMongoStore(client, cfg)
	t.Cleanup(func() {
		// clear temp db
		if err := client.Database(cfg.DBName).Drop(context.Background()); err != nil {
			t.Errorf("Failed to clear temp db: %v", err)
		}
	})
	return s
}

func initCollection(ctx context.Context, c *mongo.Collection, t *testing.T, savedDocs ...any) {
	// Clear docs
	if _, err := c.DeleteMany(ctx, bson.M{}); err != nil {
		t.Errorf("Failed to clear docs: %v", err)
	}

	for _, doc := range savedDocs {
		if v := reflect.ValueOf(doc); doc == nil || v.Kind() == reflect.Ptr && v.IsNil() {
			continue
		}
		if _, err := c.InsertOne(ctx, doc); err != nil {
			t.Errorf("Failed to insert doc: %v", err)
		}
	}
}

func TestNewMongoStore(t *testing.T) {
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic for nil mongoClient")
			}
		}()
		NewMongoStore(nil, MongoConfig{})
	}()

	if client == nil {
		t.Skip("MongoDB is not available at localhost:27017")
	}
	s := NewMongoStore(client, MongoConfig{})
	defCfg := MongoConfig{DBName: DefaultDBName, UsersCollectionName: DefaultUsersCollectionName}
	if s.cfg != defCfg {
		t.Errorf("Expected %#v, got: %#v", defCfg, s.cfg)
	}
}

func TestMongoStore(t *testing.T) {
	ctx := context.Background()
	s := newTestMongoStore(t)

	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	var docs []any
	for _, a := range testAccounts() {
		docs = append(docs, a)
	}
	initCollection(ctx, s.cu, t, docs...)

	testSecretStore(t, s)

	// Consumed secrets are unset, not blanked
	n, err := s.cu.CountDocuments(ctx, bson.M{"secret": bson.M{"$exists": true}})
	if err != nil {
		t.Fatalf("Failed to count docs: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected no pending secrets, got: %d", n)
	}
}

func TestMongoStoreConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	s := newTestMongoStore(t)

	secret := "s1"
	issuedAt := testEpoch.UnixMilli()
	initCollection(ctx, s.cu, t, &UserAccount{UID: 102, Email: "student@connect.hku.hk", Secret: &secret, SecretIssuedAt: &issuedAt})

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Consume(ctx, 102, secret)
			if err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected: %v, got: %v", ErrNotFound, err)
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("Expected exactly 1 successful consume, got: %d", succeeded)
	}
}
