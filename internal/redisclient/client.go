package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"pass-service/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/payment_seen.lua
var paymentSeenScript string

//go:embed scripts/unlock.lua
var unlockScript string

type Client struct {
	rdb          *redis.Client
	seenScript   *redis.Script
	unlockScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		seenScript:   redis.NewScript(paymentSeenScript),
		unlockScript: redis.NewScript(unlockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MarkPaymentSeen atomically records a payment identifier sighting.
// Returns true when this is the first sighting within the TTL window.
func (c *Client) MarkPaymentSeen(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("payment:seen:%s", paymentID)

	result, err := c.seenScript.Run(ctx, c.rdb, []string{key}, "1", int(ttl.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("payment seen script failed: %w", err)
	}

	first, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return first == 1, nil
}

// AcquireSweepLock takes the advisory lock that keeps concurrent sweeps from
// scanning the same backlog. Losing the lock is harmless; the conditional
// claim is what guarantees single processing. Returns the ownership token to
// pass back on release.
func (c *Client) AcquireSweepLock(ctx context.Context, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	acquired, err := c.rdb.SetNX(ctx, "lock:sweep", token, ttl).Result()
	if err != nil || !acquired {
		return "", acquired, err
	}
	return token, true, nil
}

// ReleaseSweepLock releases the sweep advisory lock, but only when the token
// still owns it: an instance that outlived the TTL must not delete a lock
// another instance holds.
func (c *Client) ReleaseSweepLock(ctx context.Context, token string) error {
	return c.unlockScript.Run(ctx, c.rdb, []string{"lock:sweep"}, token).Err()
}

// CachePassConfig stores a configuration in the read cache with TTL
func (c *Client) CachePassConfig(ctx context.Context, cfg *models.PassConfig, ttl time.Duration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("config:%s", cfg.ID), data, ttl).Err()
}

// GetCachedPassConfig retrieves a cached configuration.
// Returns nil, nil on a cache miss.
func (c *Client) GetCachedPassConfig(ctx context.Context, id string) (*models.PassConfig, error) {
	data, err := c.rdb.Get(ctx, fmt.Sprintf("config:%s", id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg models.PassConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
