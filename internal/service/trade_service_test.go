package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

type fakeStore struct {
	inserted []domain.TradeResult
	err      error
}

func (f *fakeStore) Insert(_ context.Context, r domain.TradeResult) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, r)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (domain.TradeResult, error) {
	for _, r := range f.inserted {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.TradeResult{}, domain.ErrNotFound
}

func (f *fakeStore) ListRecent(context.Context, domain.ListOpts) ([]domain.TradeResult, error) {
	return f.inserted, nil
}

func (f *fakeStore) ListBefore(context.Context, time.Time) ([]domain.TradeResult, error) {
	return nil, nil
}

func (f *fakeStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeStore) SumProfit(context.Context, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type fakeBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, ch string, p []byte) error {
	b.published[ch] = append(b.published[ch], p)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *fakeBus) StreamAppend(_ context.Context, s string, p []byte) error {
	b.streamed[s] = append(b.streamed[s], p)
	return nil
}

func (b *fakeBus) StreamRead(_ context.Context, stream, lastID string, _ int) ([]domain.StreamMessage, error) {
	if lastID != "0" {
		return nil, nil
	}
	var out []domain.StreamMessage
	for i, p := range b.streamed[stream] {
		out = append(out, domain.StreamMessage{ID: fmt.Sprintf("%d-0", i+1), Payload: p})
	}
	return out, nil
}

type fakeAudit struct{ events []string }

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func partial() domain.TradeResult {
	return domain.TradeResult{
		ID:            "t-1",
		Direction:     domain.DirectionLong,
		Size:          decimal.RequireFromString("0.001"),
		LegMakerOrder: &domain.OrderHandle{ID: "m-1"},
		Error:         "taker leg: timeout",
	}
}

func TestTradeService_RecordFansOut(t *testing.T) {
	store, bus, audit := &fakeStore{}, newFakeBus(), &fakeAudit{}
	svc := NewTradeService(store, bus, audit, discard())

	require.NoError(t, svc.Record(context.Background(), partial()))

	assert.Len(t, store.inserted, 1)
	require.Len(t, bus.published[domain.ChannelTrade], 1)
	assert.Len(t, bus.streamed[domain.StreamTrades], 1)
	assert.Equal(t, []string{"trade.partial"}, audit.events)

	var evt map[string]any
	require.NoError(t, json.Unmarshal(bus.published[domain.ChannelTrade][0], &evt))
	assert.Equal(t, "trade_partial", evt["event"])
	assert.Equal(t, "maker", evt["dangling_leg"])
}

func TestTradeService_SuccessIsNotAudited(t *testing.T) {
	audit := &fakeAudit{}
	svc := NewTradeService(&fakeStore{}, nil, audit, discard())

	require.NoError(t, svc.Record(context.Background(), domain.TradeResult{ID: "t-2", Success: true,
		LegMakerOrder: &domain.OrderHandle{}, LegTakerOrder: &domain.OrderHandle{}}))
	assert.Empty(t, audit.events)
}

func TestTradeService_StoreFailureIsReturned(t *testing.T) {
	bus := newFakeBus()
	svc := NewTradeService(&fakeStore{err: errors.New("db down")}, bus, nil, discard())

	err := svc.Record(context.Background(), partial())
	require.Error(t, err)
	assert.Len(t, bus.published[domain.ChannelTrade], 1)
}

func TestTradeService_WithoutStore(t *testing.T) {
	svc := NewTradeService(nil, nil, nil, discard())
	require.NoError(t, svc.Record(context.Background(), partial()))

	_, err := svc.Recent(context.Background(), domain.ListOpts{})
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestTradeService_GetWrapsNotFound(t *testing.T) {
	svc := NewTradeService(&fakeStore{}, nil, nil, discard())
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTradeService_HistoryFromStreamWithoutStore(t *testing.T) {
	bus := newFakeBus()
	svc := NewTradeService(nil, bus, nil, discard())
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	for i, profit := range []string{"0.5", "0.25", "1"} {
		require.NoError(t, svc.Record(ctx, domain.TradeResult{
			ID:            fmt.Sprintf("t-%d", i),
			Success:       i != 1,
			Profit:        decimal.RequireFromString(profit),
			LegMakerOrder: &domain.OrderHandle{},
			LegTakerOrder: &domain.OrderHandle{},
			ExecutedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	bus.streamed[domain.StreamTrades] = append(bus.streamed[domain.StreamTrades], []byte("not json"))

	recent, err := svc.Recent(ctx, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "t-2", recent[0].ID)
	assert.Equal(t, "t-1", recent[1].ID)

	got, err := svc.Get(ctx, "t-0")
	require.NoError(t, err)
	assert.True(t, got.Profit.Equal(decimal.RequireFromString("0.5")))

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	profit, err := svc.ProfitSince(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "1", profit.String())
}
