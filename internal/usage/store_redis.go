package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the last good snapshot in Redis so a restarted process
// has something better than zeros to serve while EmailOctopus is down.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a RedisStore under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{redis: client, key: prefix + ":usage:snapshot"}
}

// Save overwrites the stored snapshot. It carries no expiry: an old
// snapshot still beats a zeroed one.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or ok=false when none exists.
func (s *RedisStore) Load(ctx context.Context) (Snapshot, bool, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to parse stored snapshot: %w", err)
	}
	return snap, true, nil
}
