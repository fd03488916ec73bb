package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const runMarkerKeyPrefix = "tether:run:"

type redisRunMarker struct {
	client *redis.Client
}

// NewRedisRunMarker returns a RunMarker backed by redis, for setups where
// several client processes share one optimistic-run view.
func NewRedisRunMarker(redisURL string) (RunMarker, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisRunMarker{client: client}, nil
}

func (m *redisRunMarker) MarkActive(ctx context.Context, threadID string, ttl time.Duration) error {
	if ttl <= 0 {
		return m.Clear(ctx, threadID)
	}
	return m.client.Set(ctx, runMarkerKeyPrefix+threadID, "1", ttl).Err()
}

func (m *redisRunMarker) IsActive(ctx context.Context, threadID string) (bool, error) {
	n, err := m.client.Exists(ctx, runMarkerKeyPrefix+threadID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *redisRunMarker) Clear(ctx context.Context, threadID string) error {
	return m.client.Del(ctx, runMarkerKeyPrefix+threadID).Err()
}
