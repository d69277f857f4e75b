package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const snapshotKey = "rates:latest"

// ErrSnapshotMissing - no snapshot is currently stored
var ErrSnapshotMissing = errors.New("rates: no snapshot stored")

// SnapshotStore keeps the most recent ExchangeRates for readers that do not need a fresh fetch
type SnapshotStore interface {
	Get(ctx context.Context) (*ExchangeRates, error)
	Set(ctx context.Context, rates ExchangeRates, ttl time.Duration) error
}

// RedisStore shares the snapshot between instances
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore returns a SnapshotStore backed by redis
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

// Get the stored snapshot
func (s *RedisStore) Get(ctx context.Context) (*ExchangeRates, error) {
	raw, err := s.redis.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotMissing
		}
		return nil, fmt.Errorf("failed to read rate snapshot: %w", err)
	}

	var result ExchangeRates
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode rate snapshot: %w", err)
	}

	return &result, nil
}

// Set the snapshot, expiring it after ttl
func (s *RedisStore) Set(ctx context.Context, rates ExchangeRates, ttl time.Duration) error {
	raw, err := json.Marshal(rates)
	if err != nil {
		return fmt.Errorf("failed to encode rate snapshot: %w", err)
	}

	if err := s.redis.Set(ctx, snapshotKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store rate snapshot: %w", err)
	}

	return nil
}

// MemoryStore keeps the snapshot in process
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore returns a SnapshotStore backed by an in process cache
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New(cache.NoExpiration, time.Minute)}
}

// Get the stored snapshot
func (s *MemoryStore) Get(ctx context.Context) (*ExchangeRates, error) {
	v, found := s.cache.Get(snapshotKey)
	if !found {
		return nil, ErrSnapshotMissing
	}

	result := v.(ExchangeRates)
	return &result, nil
}

// Set the snapshot, expiring it after ttl
func (s *MemoryStore) Set(ctx context.Context, rates ExchangeRates, ttl time.Duration) error {
	s.cache.Set(snapshotKey, rates, ttl)
	return nil
}
