package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/upb/minichat-gateway/config"
	"go.uber.org/zap"
)

// Client wraps the shared go-redis connection pool
type Client struct {
	*goredis.Client
	logger *zap.Logger
}

// New opens a pool from cfg and pings it once
func New(cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("redis connection established", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))

	return &Client{Client: client, logger: logger}, nil
}

// Wrap adopts an existing go-redis client (miniredis in tests)
func Wrap(client *goredis.Client, logger *zap.Logger) *Client {
	return &Client{Client: client, logger: logger}
}

// HealthCheck pings the server
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the pool
func (c *Client) Close() error {
	c.logger.Info("closing redis connection")
	return c.Client.Close()
}

func options(cfg config.RedisConfig) (*goredis.Options, error) {
	if cfg.URL != "" {
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		return opts, nil
	}

	return &goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}, nil
}
