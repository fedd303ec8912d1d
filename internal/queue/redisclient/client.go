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

// Ping checks redis connectivity for the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// GetString fetches a cached value; ok is false on miss.
func (c *Client) GetString(ctx context.Context, key string) (string, bool, error) {
	val, err := c.redisdb.Get(ctx, key).Result()

	if err == redis.Nil {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return val, true, nil
}

// SetString stores a value with a TTL.
func (c *Client) SetString(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.redisdb.Set(ctx, key, val, ttl).Err()
}

// Raw exposes the underlying client.
func (c *Client) Raw() *redis.Client {
	return c.redisdb
}
