package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	err     error
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	b, _ := io.ReadAll(data)
	w.objects[path] = b
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

type memTrades struct {
	rows    []domain.TradeResult
	deleted int
}

func (s *memTrades) ListBefore(_ context.Context, before time.Time) ([]domain.TradeResult, error) {
	var out []domain.TradeResult
	for _, r := range s.rows {
		if r.ExecutedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memTrades) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var keep []domain.TradeResult
	for _, r := range s.rows {
		if !r.ExecutedAt.Before(before) {
			keep = append(keep, r)
		}
	}
	n := len(s.rows) - len(keep)
	s.rows = keep
	s.deleted += n
	return int64(n), nil
}

type memAudit struct{ events []string }

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func newArchiver(w *memWriter, s *memTrades, a *memAudit) *Archiver {
	return NewArchiver(w, s, a, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func trade(id string, at time.Time) domain.TradeResult {
	return domain.TradeResult{
		ID: id, Symbol: "BTC/USDT", Direction: domain.DirectionLong,
		Spread: decimal.RequireFromString("0.15"), Size: decimal.RequireFromString("0.001"),
		Success: true, ExecutedAt: at,
	}
}

func TestArchiver_UploadsThenDeletes(t *testing.T) {
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &memTrades{rows: []domain.TradeResult{
		trade("a", cutoff.Add(-48*time.Hour)),
		trade("b", cutoff.Add(-time.Hour)),
		trade("c", cutoff.Add(time.Hour)),
	}}
	w := &memWriter{objects: map[string][]byte{}}
	audit := &memAudit{}

	n, err := newArchiver(w, store, audit).ArchiveTrades(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	obj, ok := w.objects["archive/trades/2026-03-01T0000.jsonl"]
	require.True(t, ok)
	lines := 0
	sc := bufio.NewScanner(bytes.NewReader(obj))
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)

	assert.Len(t, store.rows, 1)
	assert.Equal(t, []string{"archive.trades"}, audit.events)
}

func TestArchiver_NothingToArchive(t *testing.T) {
	w := &memWriter{objects: map[string][]byte{}}
	n, err := newArchiver(w, &memTrades{}, &memAudit{}).ArchiveTrades(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.objects)
}

func TestArchiver_UploadFailureKeepsRows(t *testing.T) {
	cutoff := time.Now()
	store := &memTrades{rows: []domain.TradeResult{trade("a", cutoff.Add(-time.Hour))}}
	w := &memWriter{err: errors.New("bucket gone")}

	_, err := newArchiver(w, store, &memAudit{}).ArchiveTrades(context.Background(), cutoff)
	require.Error(t, err)
	assert.Len(t, store.rows, 1)
	assert.Zero(t, store.deleted)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "http://r2.example", normaliseEndpoint("http://r2.example", true))
}
