package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// bookTTL expires snapshots from a venue that stopped being polled.
const bookTTL = time.Minute

// OrderbookCache implements domain.OrderbookCache using Redis sorted sets and
// hashes. The engine writes every snapshot it scans so dashboards and the
// control API can show both books without calling the venues.
//
// Key schema ({v} = venue, {s} = symbol):
//
// All keys sit under the client's prefix.
//
//	book:{v}:{s}:bids      - sorted set of bid prices (score = price)
//	book:{v}:{s}:asks      - sorted set of ask prices (score = price)
//	book:{v}:{s}:bid:size  - hash mapping price -> size for bids
//	book:{v}:{s}:ask:size  - hash mapping price -> size for asks
//	book:{v}:{s}:meta      - hash with "ts" field (snapshot timestamp)
type OrderbookCache struct {
	c   *Client
	rdb *redis.Client
}

// NewOrderbookCache creates an OrderbookCache backed by the given Client.
func NewOrderbookCache(c *Client) *OrderbookCache {
	return &OrderbookCache{c: c, rdb: c.Underlying()}
}


// SetSnapshot atomically replaces the cached book for the snapshot's venue
// and symbol.
func (oc *OrderbookCache) SetSnapshot(ctx context.Context, snap domain.OrderBookSnapshot) error {
	p := oc.c.Key("book", snap.Venue, snap.Symbol)
	bidsKey, asksKey := p+":bids", p+":asks"
	bidSizeKey, askSizeKey := p+":bid:size", p+":ask:size"
	metaKey := p + ":meta"

	pipe := oc.rdb.TxPipeline()
	pipe.Del(ctx, bidsKey, asksKey, bidSizeKey, askSizeKey, metaKey)

	for _, lvl := range snap.Bids {
		ps := lvl.Price.String()
		pipe.ZAdd(ctx, bidsKey, redis.Z{Score: lvl.Price.InexactFloat64(), Member: ps})
		pipe.HSet(ctx, bidSizeKey, ps, lvl.Size.String())
	}
	for _, lvl := range snap.Asks {
		ps := lvl.Price.String()
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: lvl.Price.InexactFloat64(), Member: ps})
		pipe.HSet(ctx, askSizeKey, ps, lvl.Size.String())
	}
	pipe.HSet(ctx, metaKey, "ts", strconv.FormatInt(snap.Timestamp.UnixNano(), 10))

	for _, k := range []string{bidsKey, asksKey, bidSizeKey, askSizeKey, metaKey} {
		pipe.Expire(ctx, k, bookTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set orderbook snapshot %s: %w", p, err)
	}
	return nil
}

// GetSnapshot reconstructs a snapshot. It returns domain.ErrNotFound if none
// is cached.
func (oc *OrderbookCache) GetSnapshot(ctx context.Context, venue, symbol string) (domain.OrderBookSnapshot, error) {
	p := oc.c.Key("book", venue, symbol)

	pipe := oc.rdb.Pipeline()
	bidsCmd := pipe.ZRevRange(ctx, p+":bids", 0, -1)
	asksCmd := pipe.ZRange(ctx, p+":asks", 0, -1)
	bidSizeCmd := pipe.HGetAll(ctx, p+":bid:size")
	askSizeCmd := pipe.HGetAll(ctx, p+":ask:size")
	metaCmd := pipe.HGetAll(ctx, p+":meta")

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get orderbook snapshot %s: %w", p, err)
	}

	meta, _ := metaCmd.Result()
	if len(meta) == 0 {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}

	snap := domain.OrderBookSnapshot{Venue: venue, Symbol: symbol}
	if ts, err := strconv.ParseInt(meta["ts"], 10, 64); err == nil {
		snap.Timestamp = time.Unix(0, ts).UTC()
	}

	bids, _ := bidsCmd.Result()
	bidSizes, _ := bidSizeCmd.Result()
	snap.Bids = levels(bids, bidSizes)

	asks, _ := asksCmd.Result()
	askSizes, _ := askSizeCmd.Result()
	snap.Asks = levels(asks, askSizes)

	return snap, nil
}

func levels(prices []string, sizes map[string]string) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(prices))
	for _, ps := range prices {
		price, err := decimal.NewFromString(ps)
		if err != nil {
			continue
		}
		size, _ := decimal.NewFromString(sizes[ps])
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out
}

// Compile-time interface check.
var _ domain.OrderbookCache = (*OrderbookCache)(nil)
