package tokenstore

import (
	"net"

	"github.com/go-redis/redis/v8"

	"github.com/2beens/stravadash/internal/config"
)

// Open picks the refresh token store from cfg: the token file when a path is
// set, redis otherwise when a redis host is set. Both unset gives a nil store
// and the configured refresh token is used as is. The returned func releases
// the store.
func Open(cfg *config.Config, redisPassword string) (Store, func() error) {
	if cfg.TokenFilePath != "" {
		return NewFileStore(cfg.TokenFilePath), func() error { return nil }
	}
	if cfg.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: redisPassword,
			DB:       0, // use default DB
		})
		return NewRedisStore(rdb, DefaultRedisKey), rdb.Close
	}
	return nil, func() error { return nil }
}
