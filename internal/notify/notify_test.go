package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordingSender) Name() string { return "rec" }

func (s *recordingSender) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifier_FiltersEvents(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{EventError}, discard())

	require.NoError(t, n.Notify(context.Background(), EventTrade, "trade", ""))
	require.NoError(t, n.Notify(context.Background(), EventError, "boom", ""))
	require.NoError(t, n.NotifyAll(context.Background(), "all", ""))

	assert.Equal(t, []string{"boom", "all"}, rec.got())
}

func TestNotifier_OneSenderFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{err: errors.New("down")}
	good := &recordingSender{}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rec: down")
	assert.Equal(t, []string{"t"}, good.got())
}

func TestSink_IsFireAndForget(t *testing.T) {
	rec := &recordingSender{err: errors.New("down")}
	s := NewSink(NewNotifier([]Sender{rec}, nil, discard()), discard())

	ctx, cancel := context.WithCancel(context.Background())
	s.NotifyError(ctx, "venue unreachable")
	cancel()
	s.Wait()

	assert.Equal(t, []string{"Engine error"}, rec.got())
}

func TestSink_PartialTitleNamesDanglingLeg(t *testing.T) {
	rec := &recordingSender{}
	s := NewSink(NewNotifier([]Sender{rec}, nil, discard()), discard())

	s.NotifyTradeComplete(context.Background(), domain.TradeResult{
		LegTakerOrder: &domain.OrderHandle{ID: "t-1"},
	}, nil)
	s.Wait()

	assert.Equal(t, []string{"Partial execution: taker leg unhedged"}, rec.got())
}

func TestFormatBalances_Sorted(t *testing.T) {
	out := FormatBalances(map[string]domain.Balances{
		"taker": {"USDC": decimal.NewFromInt(5)},
		"maker": {"USDC": decimal.NewFromInt(10), "BTC": decimal.RequireFromString("0.5")},
	})
	assert.Equal(t, "maker: BTC=0.5 USDC=10\ntaker: USDC=5", out)
}

func TestParseCommand(t *testing.T) {
	cmd, ok := ParseCommand("/Status@spread_bot extra")
	assert.True(t, ok)
	assert.Equal(t, "status", cmd)

	_, ok = ParseCommand("status")
	assert.False(t, ok)
	_, ok = ParseCommand("/")
	assert.False(t, ok)
}

type echoCommander struct{ calls atomic.Int32 }

func (c *echoCommander) Execute(_ context.Context, cmd string) (string, error) {
	c.calls.Add(1)
	return "ok " + cmd, nil
}

func TestCommandListener_AnswersOnlyConfiguredChat(t *testing.T) {
	var (
		polls   atomic.Int32
		replies = make(chan map[string]string, 4)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"ok":true,"result":[
					{"update_id":10,"message":{"text":"/status","chat":{"id":999}}},
					{"update_id":11,"message":{"text":"/status","chat":{"id":42}}}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			replies <- body
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	bot := NewTelegramSender("tok", "42")
	bot.baseURL = srv.URL
	cmd := &echoCommander{}
	l := NewCommandListener(bot, cmd, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case body := <-replies:
		assert.Equal(t, "42", body["chat_id"])
		assert.Equal(t, "ok status", body["text"])
	case <-time.After(2 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), cmd.calls.Load())
}
