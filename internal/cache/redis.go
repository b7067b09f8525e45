package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultRedisPrefix = "bsky-video-dl:"

type Redis struct {
	client *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

// NewRedis connects to Redis at addr, failing if it doesn't answer a ping.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log := zap.S().Named("cache")
	log.Infow("connected to redis", "addr", addr)
	return &Redis{client: client, prefix: DefaultRedisPrefix, log: log}, nil
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		c.log.Debugw("cache miss", "key", key)
		return "", false
	}
	if err != nil {
		c.log.Warnw("cache get failed", "key", key, "error", err)
		return "", false
	}
	c.log.Debugw("cache hit", "key", key)
	return val, true
}

func (c *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		c.log.Warnw("cache set failed", "key", key, "error", err)
		return err
	}
	c.log.Debugw("cache set", "key", key, "ttl", ttl)
	return nil
}
