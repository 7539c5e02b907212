package linkauthn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKeyPrefix is the default key prefix of RedisSessionStore.
const DefaultRedisKeyPrefix = "session:"

// RedisSessionStore is a SessionStore backed by Redis.
// It's safe to use it concurrently from multiple goroutines.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a new RedisSessionStore.
// If prefix is empty, DefaultRedisKeyPrefix is used.
// This function panics if client is nil.
func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	if client == nil {
		panic("client must be provided")
	}
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (s *RedisSessionStore) key(id string) string {
	return s.prefix + id
}

// Save implements SessionStore. The key expires after ttl.
func (s *RedisSessionStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session ID must be provided")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Load implements SessionStore.
func (s *RedisSessionStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoSession
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Corrupt data can't be used, drop it
		s.client.Del(ctx, s.key(id))
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Delete implements SessionStore.
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
