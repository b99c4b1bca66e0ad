package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed scripts/apply_sale.lua
var applySaleScript string

const availabilityTTL = time.Hour

type Client struct {
	rdb        *redis.Client
	saleScript *redis.Script
}

// NewClient creates a new Redis client with the cache scripts loaded
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

	return newClient(rdb), nil
}

// NewFromRedis wraps an existing redis client. Used by tests with redismock.
func NewFromRedis(rdb *redis.Client) *Client {
	return newClient(rdb)
}

func newClient(rdb *redis.Client) *Client {
	return &Client{
		rdb:        rdb,
		saleScript: redis.NewScript(applySaleScript),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func availabilityKey(eventID int64) string {
	return fmt.Sprintf("availability:%d", eventID)
}

// GetAvailability reads cached availability for an event. The third return
// value reports whether the cache held an entry; on a miss the caller falls
// back to the database.
func (c *Client) GetAvailability(ctx context.Context, eventID int64) (available, capacity int, ok bool, err error) {
	result, err := c.rdb.HGetAll(ctx, availabilityKey(eventID)).Result()
	if err != nil {
		return 0, 0, false, err
	}
	if len(result) == 0 {
		return 0, 0, false, nil
	}

	available, err = strconv.Atoi(result["available"])
	if err != nil {
		return 0, 0, false, fmt.Errorf("corrupt availability cache for event %d: %w", eventID, err)
	}
	capacity, err = strconv.Atoi(result["capacity"])
	if err != nil {
		return 0, 0, false, fmt.Errorf("corrupt availability cache for event %d: %w", eventID, err)
	}
	return available, capacity, true, nil
}

// SetAvailability writes the availability entry for an event.
func (c *Client) SetAvailability(ctx context.Context, eventID int64, available, capacity int) error {
	key := availabilityKey(eventID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "available", available, "capacity", capacity)
	pipe.Expire(ctx, key, availabilityTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// ApplySale atomically mirrors a committed sale onto the cache. If the
// cached count cannot cover the quantity the entry is deleted and the next
// read repopulates it from the database.
func (c *Client) ApplySale(ctx context.Context, eventID int64, quantity int) error {
	_, err := c.saleScript.Run(ctx, c.rdb, []string{availabilityKey(eventID)}, quantity).Result()
	if err != nil {
		return fmt.Errorf("apply sale script failed: %w", err)
	}
	return nil
}

// InvalidateAvailability drops the cached entry for an event.
func (c *Client) InvalidateAvailability(ctx context.Context, eventID int64) error {
	return c.rdb.Del(ctx, availabilityKey(eventID)).Err()
}

// AcquireLock acquires a short-lived lock keyed by a transaction
// identifier. It only serializes provider status re-queries on the return
// path; outcome correctness never depends on it.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
