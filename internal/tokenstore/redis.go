package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const DefaultRedisKey = "stravadash||refresh-token"

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	redisClient *redis.Client
	key         string
}

func NewRedisStore(redisClient *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		redisClient: redisClient,
		key:         key,
	}
}

func (rs *RedisStore) Load(ctx context.Context) (string, error) {
	cmd := rs.redisClient.Get(ctx, rs.key)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("redis get refresh token: %w", err)
	}
	if cmd.Val() == "" {
		return "", ErrNoToken
	}
	return cmd.Val(), nil
}

func (rs *RedisStore) Save(ctx context.Context, refreshToken string) error {
	if err := rs.redisClient.Set(ctx, rs.key, refreshToken, 0).Err(); err != nil {
		return fmt.Errorf("redis set refresh token: %w", err)
	}
	return nil
}
