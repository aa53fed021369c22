package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of redis.Cmdable the store needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps the same JSON document under a single key.
type RedisStore struct {
	Client RedisClient
	Key    string
}

func NewRedisStore(client RedisClient, key string) *RedisStore {
	if key == "" {
		key = "ratewatch:snapshot"
	}
	return &RedisStore{Client: client, Key: key}
}

func (r *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	b, err := r.Client.Get(ctx, r.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, &LoadError{Where: "redis:" + r.Key, Err: err}
	}
	s, err := Decode(b)
	if err != nil {
		return nil, &LoadError{Where: "redis:" + r.Key, Err: err}
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s Snapshot) error {
	b, err := Encode(s)
	if err != nil {
		return &PersistError{Where: "redis:" + r.Key, Err: err}
	}
	if err := r.Client.Set(ctx, r.Key, b, 0).Err(); err != nil {
		return &PersistError{Where: "redis:" + r.Key, Err: err}
	}
	return nil
}
