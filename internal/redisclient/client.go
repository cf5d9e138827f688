package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// Ping checks redis connectivity

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// IncrWindow bumps the counter for a fixed rate-limit window and returns the
// count plus the window's remaining lifetime. The expiry is set only when
// the key is created, so every caller in the window shares one deadline.
func (c *Client) IncrWindow(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error) {
	pipe := c.redisdb.TxPipeline()

	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	pttl := pipe.PTTL(ctx, key)

	_, err = pipe.Exec(ctx)

	if err != nil {
		return 0, 0, err
	}

	return incr.Val(), pttl.Val(), nil
}
