// Package persistence implements the result store on Redis.
package persistence

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const (
	batchKeyPrefix   = "triage:results:"
	lastRunKeyPrefix = "triage:last_run:"
)

// DefaultResultTTL bounds how long classified batches stay retrievable.
const DefaultResultTTL = 24 * time.Hour

// RedisResultStore implements out.ResultStorePort on Redis. Batches are
// stored as JSON blobs keyed per user.
type RedisResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ out.ResultStorePort = (*RedisResultStore)(nil)

// NewRedisResultStore creates a store. ttl <= 0 falls back to
// DefaultResultTTL.
func NewRedisResultStore(client *redis.Client, ttl time.Duration) *RedisResultStore {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &RedisResultStore{client: client, ttl: ttl}
}

// SaveBatch persists the classified batch for userKey.
func (s *RedisResultStore) SaveBatch(ctx context.Context, userKey string, result *domain.BatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, batchKeyPrefix+userKey, data, s.ttl).Err()
}

// LoadBatch returns the stored batch for userKey, ok=false when absent.
func (s *RedisResultStore) LoadBatch(ctx context.Context, userKey string) (*domain.BatchResult, bool, error) {
	data, err := s.client.Get(ctx, batchKeyPrefix+userKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result domain.BatchResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

// SaveLastRun records when the last pipeline run finished for userKey.
func (s *RedisResultStore) SaveLastRun(ctx context.Context, userKey string, at time.Time) error {
	return s.client.Set(ctx, lastRunKeyPrefix+userKey, at.UTC().Format(time.RFC3339), s.ttl).Err()
}

// LoadLastRun returns the last run timestamp, ok=false when absent.
func (s *RedisResultStore) LoadLastRun(ctx context.Context, userKey string) (time.Time, bool, error) {
	data, err := s.client.Get(ctx, lastRunKeyPrefix+userKey).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	at, err := time.Parse(time.RFC3339, data)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}
