package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyatt/creatorscout/internal/config"
)

const (
	cancelKeyPrefix = "creatorscout:job:cancelled:"

	// A raised flag outlives any reasonable job; a lowered flag is only
	// cached briefly so a cancel issued on another instance is seen at
	// the next checkpoint.
	cancelledTTL    = time.Hour
	notCancelledTTL = 5 * time.Second
)

// ProgressCache mirrors the durable cancellation flag in redis so the
// per-checkpoint cancellation poll does not hit the database on every
// query, batch, and scoring window. All methods are safe on a nil
// receiver; a nil cache means redis is disabled and callers fall back
// to the database.
type ProgressCache struct {
	rdb *redis.Client
}

// NewProgressCache connects to redis per config. Returns (nil, nil) when
// redis is disabled.
// Parameters:
//   - cfg: redis configuration.
// Returns:
//   - *ProgressCache: cache handle, or nil when disabled.
//   - error: non-nil if the initial ping fails.
func NewProgressCache(cfg *config.RedisConfig) (*ProgressCache, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &ProgressCache{rdb: rdb}, nil
}

// SetCancelled records the flag state for a job. Best effort; the
// database row stays authoritative.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job ID.
//   - cancelled: flag state to record.
// Returns:
//   - error: non-nil if the write fails.
func (c *ProgressCache) SetCancelled(ctx context.Context, jobID string, cancelled bool) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	val := "0"
	ttl := notCancelledTTL
	if cancelled {
		val = "1"
		ttl = cancelledTTL
	}
	return c.rdb.Set(ctx, cancelKeyPrefix+jobID, val, ttl).Err()
}

// GetCancelled reads the cached flag state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job ID.
// Returns:
//   - bool: cached flag state; meaningful only when found.
//   - bool: true if the cache held an answer, false on miss or redis error.
func (c *ProgressCache) GetCancelled(ctx context.Context, jobID string) (bool, bool) {
	if c == nil || c.rdb == nil {
		return false, false
	}
	val, err := c.rdb.Get(ctx, cancelKeyPrefix+jobID).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// Close releases the redis connection.
func (c *ProgressCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
