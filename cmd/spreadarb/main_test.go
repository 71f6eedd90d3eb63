package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/crypto"
)

func TestCallControl_SendsBearerAndPrintsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/engine/stop", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, callControl(context.Background(), &out, srv.URL+"/api/engine/stop", http.MethodPost, "k"))
	assert.Contains(t, out.String(), `"ok": true`)
}

func TestCallControl_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"already running"}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := callControl(context.Background(), &out, srv.URL, http.MethodPost, "")
	assert.ErrorContains(t, err, "409")
	assert.Contains(t, out.String(), "already running")
}

func TestEncryptSecretCmd_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.json")

	cmd := encryptSecretCmd()
	cmd.SetIn(strings.NewReader("venue-secret\n"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--out", path, "--password", "pw"})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := crypto.DecryptSecret(data, "pw")
	require.NoError(t, err)
	assert.Equal(t, "venue-secret", got)
}

func TestCtlCmd_UnknownCommand(t *testing.T) {
	cmd := ctlCmd()
	cmd.SetArgs([]string{"explode", "--addr", "http://127.0.0.1:1", "--api-key", "x"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.ErrorContains(t, cmd.Execute(), "unknown command")
}
