package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cursorKeyPrefix = "tether:cursor:"

// setIfGreater writes the new sequence only when it does not regress the
// stored one, atomically on the server side.
var setIfGreater = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current and tonumber(current) > tonumber(ARGV[1]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

type redisCursorStore struct {
	client *redis.Client
}

// NewRedisCursorStore connects to redis and verifies the target is
// reachable before returning the store.
func NewRedisCursorStore(redisURL string) (CursorStore, error) {
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
	return &redisCursorStore{client: client}, nil
}

func (s *redisCursorStore) Get(ctx context.Context, threadID string) (int64, error) {
	seq, err := s.client.Get(ctx, cursorKeyPrefix+threadID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *redisCursorStore) Set(ctx context.Context, threadID string, seq int64) error {
	if seq < 0 {
		return ErrCursorRegression
	}
	ok, err := setIfGreater.Run(ctx, s.client, []string{cursorKeyPrefix + threadID}, seq).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrCursorRegression
	}
	return nil
}

func (s *redisCursorStore) Clear(ctx context.Context, threadID string) error {
	return s.client.Del(ctx, cursorKeyPrefix+threadID).Err()
}

func (s *redisCursorStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
