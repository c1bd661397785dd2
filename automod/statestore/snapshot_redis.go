package statestore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

var redisSnapshotKey = "ahgroupbot/state"

// RedisBackend keeps the snapshot under a single redis key. SET replaces the
// value atomically, so it satisfies the same all-or-nothing contract as the
// file backend. Useful for deployments without persistent disk.
type RedisBackend struct {
	Client *redis.Client
	Key    string
}

func NewRedisBackend(redisURL string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisBackend{Client: rdb, Key: redisSnapshotKey}, nil
}

func (b *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	raw, err := b.Client.Get(ctx, b.Key).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return raw, nil
}

func (b *RedisBackend) Store(ctx context.Context, doc []byte) error {
	return b.Client.Set(ctx, b.Key, doc, 0).Err()
}
