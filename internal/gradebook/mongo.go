package gradebook

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultCollectionName is the default name of the course records collection.
const DefaultCollectionName = "courseinfo"

// MongoStore is a Store backed by a MongoDB collection.
type MongoStore struct {
	c *mongo.Collection
}

// NewMongoStore creates a MongoStore using the given collection of db.
// If collection is empty, DefaultCollectionName is used.
func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if db == nil {
		panic("db must be provided")
	}
	if collection == "" {
		collection = DefaultCollectionName
	}
	return &MongoStore{c: db.Collection(collection)}
}

// EnsureIndexes creates the index serving student lookups.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "uid", Value: 1}, {Key: "course", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create courseinfo index: %w", err)
	}
	return nil
}

// Courses implements Store.
func (s *MongoStore) Courses(ctx context.Context, uid int64) ([]string, error) {
	res := s.c.Distinct(ctx, "course", bson.M{"uid": uid})
	var courses []string
	if err := res.Decode(&courses); err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	if courses == nil {
		courses = []string{}
	}
	sort.Strings(courses)
	return courses, nil
}

// Records implements Store.
func (s *MongoStore) Records(ctx context.Context, uid int64, course string) ([]CourseRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"uid": uid, "course": course}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query course records: %w", err)
	}
	var records []CourseRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to read course records: %w", err)
	}
	return records, nil
}
