package postgres

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/arb?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "arb"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
	assert.Equal(t, "postgres://u:p@localhost:6543/arb?sslmode=require",
		DSN(ClientConfig{User: "u", Password: "p", Database: "arb", Port: 6543, SSLMode: "require"}))
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_more.sql": {Data: []byte("SELECT 2")},
		"migrations/001_init.sql": {Data: []byte("SELECT 1")},
		"migrations/README.md":    {Data: []byte("notes")},
	}

	got, err := pendingMigrations(fsys, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_more.sql"}, got)

	got, err = pendingMigrations(fsys, map[string]bool{"001_init.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_more.sql"}, got)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	got, err := pendingMigrations(migrationsFS, nil)
	require.NoError(t, err)
	assert.Contains(t, got, "001_init.sql")
}

func TestListQuery(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	q, args := listQuery("SELECT * FROM t", "ts", domain.ListOpts{Since: &since, Limit: 10, Offset: 20})
	assert.Equal(t, "SELECT * FROM t WHERE ts >= $1 ORDER BY ts DESC LIMIT $2 OFFSET $3", q)
	assert.Equal(t, []any{since, 10, 20}, args)

	q, args = listQuery("SELECT * FROM t WHERE symbol = $1", "ts", domain.ListOpts{Until: &since}, "BTC/USDT")
	assert.Equal(t, "SELECT * FROM t WHERE symbol = $1 AND ts <= $2 ORDER BY ts DESC", q)
	assert.Len(t, args, 2)
}

func TestOrderJSONColumn(t *testing.T) {
	raw, err := marshalOrder(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	o, err := unmarshalOrder([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, o)

	in := &domain.OrderHandle{ID: "m-1", Side: domain.OrderSideBuy, Price: decimal.RequireFromString("100.5")}
	raw, err = marshalOrder(in)
	require.NoError(t, err)
	out, err := unmarshalOrder(raw)
	require.NoError(t, err)
	assert.Equal(t, "m-1", out.ID)
	assert.True(t, out.Price.Equal(in.Price))
}
