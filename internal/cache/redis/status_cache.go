package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// StatusCache implements domain.StatusCache. The running engine writes its
// status under status:{symbol}; the supervisor process reads it to answer
// status and performance commands.
type StatusCache struct {
	c   *Client
	rdb *redis.Client
	ttl time.Duration
}

// NewStatusCache creates a StatusCache. Entries expire after ttl so a dead
// engine does not keep reporting itself as running.
func NewStatusCache(c *Client, ttl time.Duration) *StatusCache {
	return &StatusCache{c: c, rdb: c.Underlying(), ttl: ttl}
}

// SetStatus stores status as JSON.
func (sc *StatusCache) SetStatus(ctx context.Context, status domain.EngineStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("redis: set status: marshal: %w", err)
	}
	if err := sc.rdb.Set(ctx, sc.c.Key("status", status.Symbol), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set status %s: %w", status.Symbol, err)
	}
	return nil
}

// GetStatus returns domain.ErrNotFound when no live status exists.
func (sc *StatusCache) GetStatus(ctx context.Context, symbol string) (domain.EngineStatus, error) {
	data, err := sc.rdb.Get(ctx, sc.c.Key("status", symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.EngineStatus{}, domain.ErrNotFound
		}
		return domain.EngineStatus{}, fmt.Errorf("redis: get status %s: %w", symbol, err)
	}
	var st domain.EngineStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return domain.EngineStatus{}, fmt.Errorf("redis: get status %s: unmarshal: %w", symbol, err)
	}
	return st, nil
}

// Compile-time interface check.
var _ domain.StatusCache = (*StatusCache)(nil)
