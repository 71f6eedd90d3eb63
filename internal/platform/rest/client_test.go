package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
	"github.com/alanyoungcy/spreadarb/internal/domain"
)

type countingLimiter struct {
	keys []string
	err  error
}

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (l *countingLimiter) Wait(_ context.Context, key string, _ int, _ time.Duration) error {
	l.keys = append(l.keys, key)
	return l.err
}

func testAuth() *crypto.HMACAuth {
	return &crypto.HMACAuth{
		Key:     "k",
		Secret:  "s",
		Headers: crypto.HeaderNames{APIKey: "X-Key", Timestamp: "X-Ts", Signature: "X-Sig"},
	}
}

func TestClient_DoSignsPathQueryAndBody(t *testing.T) {
	auth := testAuth()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"size":"1"}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "k", r.Header.Get("X-Key"))
		assert.True(t, auth.Verify(r.Method, r.URL.RequestURI(), string(body), r.Header.Get("X-Ts"), r.Header.Get("X-Sig")))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	lim := &countingLimiter{}
	c := New(Options{Venue: "paradex", BaseURL: srv.URL + "/", Auth: auth, Limiter: lim, RateLimit: 5})

	out, err := c.Do(context.Background(), http.MethodPost, "/orders", url.Values{"market": {"BTC"}}, map[string]string{"size": "1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Equal(t, []string{"venue:paradex"}, lim.keys)
}

func TestClient_DoMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadRequest, domain.ErrInvalidOrder},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			_, err := New(Options{Venue: "lighter", BaseURL: srv.URL}).Do(context.Background(), http.MethodGet, "/x", nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestClient_DoServerErrorKeepsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := New(Options{Venue: "lighter", BaseURL: srv.URL}).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.EqualError(t, err, "HTTP 502: upstream down")
}

func TestClient_DoLimiterErrorStopsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	lim := &countingLimiter{err: errors.New("redis down")}
	_, err := New(Options{Venue: "lighter", BaseURL: srv.URL, Limiter: lim, RateLimit: 1}).Do(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.ErrorContains(t, err, "rate limiter")
	assert.False(t, called)
}
