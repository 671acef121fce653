package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const stockKeyPrefix = "stock:"

// Client caches product stock quantities in Redis. The cache is a read
// accelerator for validation snapshots only: it is refreshed from the
// database after commits and reversals, never written to directly by the
// coordinators.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID string) string {
	return stockKeyPrefix + productID
}

// SetQuantities writes the given quantities in one pipeline.
func (c *Client) SetQuantities(ctx context.Context, quantities map[string]int) error {
	if len(quantities) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for productID, qty := range quantities {
		pipe.Set(ctx, stockKey(productID), qty, 0)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// GetQuantities retrieves cached quantities for the given products in one
// pipeline. Products missing from the cache are absent from the result.
func (c *Client) GetQuantities(ctx context.Context, productIDs []string) (map[string]int, error) {
	if len(productIDs) == 0 {
		return map[string]int{}, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make(map[string]*redis.StringCmd, len(productIDs))
	for _, id := range productIDs {
		cmds[id] = pipe.Get(ctx, stockKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	out := make(map[string]int, len(productIDs))
	for id, cmd := range cmds {
		val, err := cmd.Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		qty, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("bad cached quantity for product %s: %w", id, err)
		}
		out[id] = qty
	}

	return out, nil
}

// DeleteQuantities evicts cached quantities for the given products.
func (c *Client) DeleteQuantities(ctx context.Context, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = stockKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}
