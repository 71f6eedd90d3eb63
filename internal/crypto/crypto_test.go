package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptSecret(t *testing.T) {
	blob, err := EncryptSecret("venue-secret", "hunter2")
	require.NoError(t, err)

	got, err := DecryptSecret(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "venue-secret", got)

	_, err = DecryptSecret(blob, "wrong")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestLoadSecret_Precedence(t *testing.T) {
	blob, err := EncryptSecret("from-file", "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "secret.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadSecret(SecretSource{Raw: "raw", EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "raw", got)

	got, err = LoadSecret(SecretSource{EncryptedPath: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, err = LoadSecret(SecretSource{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHMACAuth_SignAt(t *testing.T) {
	h := &HMACAuth{
		Key:     "key",
		Secret:  "secret",
		Headers: HeaderNames{APIKey: "X-API-KEY", Timestamp: "X-TS", Signature: "X-SIG"},
	}

	headers := h.SignAt("POST", "/v1/orders", `{"a":1}`, 1700000000)
	assert.Equal(t, "key", headers["X-API-KEY"])
	assert.Equal(t, "1700000000", headers["X-TS"])
	assert.True(t, h.Verify("POST", "/v1/orders", `{"a":1}`, "1700000000", headers["X-SIG"]))
	assert.False(t, h.Verify("POST", "/v1/orders", `{"a":2}`, "1700000000", headers["X-SIG"]))

	// Same input, same signature.
	assert.Equal(t, headers, h.SignAt("POST", "/v1/orders", `{"a":1}`, 1700000000))
	assert.Equal(t, "HMACAuth{key=****, secret=secr****}", h.String())
}
