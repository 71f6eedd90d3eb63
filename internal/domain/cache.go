package domain

import (
	"context"
	"time"
)

// OrderbookCache stores the latest snapshot per venue and symbol.
type OrderbookCache interface {
	SetSnapshot(ctx context.Context, snap OrderBookSnapshot) error
	GetSnapshot(ctx context.Context, venue, symbol string) (OrderBookSnapshot, error)
}

// StatusCache holds the engine's last published status.
type StatusCache interface {
	SetStatus(ctx context.Context, status EngineStatus) error
	GetStatus(ctx context.Context, symbol string) (EngineStatus, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held distributed lock.
type Lock interface {
	// Refresh extends the TTL. It returns ErrLockHeld if the lock was lost.
	Refresh(ctx context.Context, ttl time.Duration) error
	Release()
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channels and streams.
const (
	ChannelTrade  = "ch:trade"
	ChannelStatus = "ch:status"
	ChannelAlert  = "ch:alert"
	StreamTrades  = "stream:trades"
)
