package linkauthn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	// DefaultDBName is the default for MongoConfig.DBName.
	DefaultDBName = "Gradebook"

	// DefaultUsersCollectionName is the default for MongoConfig.UsersCollectionName.
	DefaultUsersCollectionName = "users"
)

// MongoConfig holds MongoStore configuration.
// A zero value is a valid configuration, see constants for default values.
type MongoConfig struct {
	// DBName is the name of the database holding the user accounts.
	DBName string `yaml:"db_name"`

	// UsersCollectionName is the name of the database collection of user accounts.
	UsersCollectionName string `yaml:"users_collection"`
}

// MongoStore is a SecretStore backed by the user accounts collection.
// It's safe to use it concurrently from multiple goroutines.
type MongoStore struct {
	// mongoClient used for database operations.
	mongoClient *mongo.Client

	// cu is the users collection.
	cu *mongo.Collection

	// cfg to use
	cfg MongoConfig
}

// NewMongoStore creates a new MongoStore.
// This function panics if mongoClient is nil.
func NewMongoStore(mongoClient *mongo.Client, cfg MongoConfig) *MongoStore {
	if mongoClient == nil {
		panic("mongoClient must be provided")
	}

	if cfg.DBName == "" {
		cfg.DBName = DefaultDBName
	}
	if cfg.UsersCollectionName == "" {
		cfg.UsersCollectionName = DefaultUsersCollectionName
	}

	return &MongoStore{
		mongoClient: mongoClient,
		cu:          mongoClient.Database(cfg.DBName).Collection(cfg.UsersCollectionName),
		cfg:         cfg,
	}
}

// EnsureIndexes creates the indexes lookups rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.cu.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "secret", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Ping checks connectivity of the underlying client.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.mongoClient.Ping(ctx, nil)
}

// IssueSecret implements SecretStore.
// The secret is set in a single document update.
func (s *MongoStore) IssueSecret(ctx context.Context, email, secret string, issuedAt time.Time) (*UserAccount, error) {
	update := bson.M{"$set": bson.M{
		"secret":    secret,
		"timestamp": issuedAt.UnixMilli(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var account *UserAccount
	err := s.cu.FindOneAndUpdate(ctx, bson.M{"email": email}, update, opts).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to issue secret: %w", err)
	}
	return account, nil
}

// FindBySecret implements SecretStore.
func (s *MongoStore) FindBySecret(ctx context.Context, secret string) (*UserAccount, error) {
	if secret == "" {
		return nil, ErrNotFound
	}

	var account *UserAccount
	if err := s.cu.FindOne(ctx, bson.M{"secret": secret}).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find secret: %w", err)
	}
	return account, nil
}

// Consume implements SecretStore.
// The filter includes the secret, so only one of concurrent callers matches.
func (s *MongoStore) Consume(ctx context.Context, uid int64, secret string) error {
	if secret == "" {
		return ErrNotFound
	}

	filter := bson.M{"uid": uid, "secret": secret}
	update := bson.M{"$unset": bson.M{"secret": "", "timestamp": ""}}
	res, err := s.cu.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to consume secret: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
