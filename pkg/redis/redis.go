package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrConnect marks failures to reach Redis while constructing the client.
var ErrConnect = errors.New("redis: connection failed")

// Config holds the configuration for the Redis client. An empty Host disables Redis.
type Config struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	PoolSize      int    `yaml:"pool_size"`
	JournalMaxLen int64  `yaml:"journal_max_len"`
}

func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// Client is a wrapper around the go-redis client.
type Client struct {
	*redis.Client
}

// NewClient creates a Redis client and pings it once, failing fast when unreachable.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	addr := cfg.Addr()

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
	}

	return &Client{rdb}, nil
}

// Close closes the Redis client connection.
func (c *Client) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
