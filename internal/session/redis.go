package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// RedisStore keeps records in Redis. Expiry uses key TTLs, refreshed on read.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, contextID string) (*Record, error) {
	key := s.key(contextID)
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get", err)
	}

	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", contextID, err)
	}

	// Refresh TTL on read
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	return &rec, nil
}

// Create implements Store.
func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", rec.ContextID, err)
	}
	ok, err := s.client.SetNX(ctx, s.key(rec.ContextID), val, s.ttl).Result()
	if err != nil {
		return storeErr("create", err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", rec.ContextID, err)
	}
	return storeErr("put", s.client.Set(ctx, s.key(rec.ContextID), val, s.ttl).Err())
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, contextID string) error {
	return storeErr("delete", s.client.Del(ctx, s.key(contextID)).Err())
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(contextID string) string {
	return sessionKeyPrefix + contextID
}
