// Package redis provides Redis connection management for the shared
// rate-limit counter store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scribeflow/gatekeeper/internal/config"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// Connection manages the Redis client lifecycle. A single address yields a
// standalone client, multiple addresses a cluster client.
type Connection struct {
	config *config.RedisConfig
	client redis.UniversalClient
	logger logger.Logger
}

// NewConnection establishes the Redis connection and verifies it with a ping.
func NewConnection(ctx context.Context, cfg *config.RedisConfig, log logger.Logger) (*Connection, error) {
	if cfg == nil || len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("redis addresses not configured")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        cfg.Addresses,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info(ctx, "redis connection established",
		logger.Any("addresses", cfg.Addresses),
		logger.Int("pool_size", poolSize),
	)

	return &Connection{
		config: cfg,
		client: client,
		logger: log.WithComponent("redis_connection"),
	}, nil
}

// Client returns the underlying client.
func (c *Connection) Client() redis.UniversalClient {
	return c.client
}

// Ping checks server connectivity.
func (c *Connection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// HealthCheck reports connectivity, round-trip latency, and pool statistics.
func (c *Connection) HealthCheck(ctx context.Context) (map[string]interface{}, error) {
	health := make(map[string]interface{})

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	health["connected"] = err == nil
	health["latency_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		health["error"] = err.Error()
		return health, err
	}

	stats := c.client.PoolStats()
	health["total_conns"] = stats.TotalConns
	health["idle_conns"] = stats.IdleConns
	health["pool_timeouts"] = stats.Timeouts

	return health, nil
}

// Close releases the connection pool.
func (c *Connection) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Error(context.Background(), "failed to close redis connection", err)
		return err
	}
	c.logger.Info(context.Background(), "redis connection closed")
	return nil
}
