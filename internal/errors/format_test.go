package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI_BasicError(t *testing.T) {
	// Given: an AssetError
	err := NotFound("root '/data/photos' not found", nil)

	// When: formatting for the terminal
	result := FormatForCLI(err)

	// Then: message and code are present
	assert.Contains(t, result, "Error: root '/data/photos' not found")
	assert.Contains(t, result, "Code: ERR_201_NOT_FOUND")
	assert.NotContains(t, result, "Hint:")
}

func TestFormatForCLI_DetailsAndSuggestion(t *testing.T) {
	// Given: an error with details and a suggestion
	err := New(ErrCodeUnsupportedHashAlgo, "unknown hash algorithm: SHA-3", nil).
		WithDetail("source", "config.yaml").
		WithDetail("key", "index.hash_algorithm").
		WithSuggestion("use one of BLAKE3, MD5, SHA-1, SHA-256, SHA-512")

	// When: formatting for the terminal
	result := FormatForCLI(err)

	// Then: details are sorted by key and precede the hint
	assert.Contains(t, result, "  Hint: use one of BLAKE3")
	keyAt := bytes.Index([]byte(result), []byte("key: index.hash_algorithm"))
	srcAt := bytes.Index([]byte(result), []byte("source: config.yaml"))
	hintAt := bytes.Index([]byte(result), []byte("Hint:"))
	require.True(t, keyAt >= 0 && srcAt >= 0)
	assert.Less(t, keyAt, srcAt)
	assert.Less(t, srcAt, hintAt)
}

func TestFormatForCLI_WrapsStandardErrors(t *testing.T) {
	result := FormatForCLI(errors.New("boom"))

	assert.Contains(t, result, "Error: boom")
	assert.Contains(t, result, ErrCodeInternal)
}

func TestFormatForCLI_FindsWrappedAssetError(t *testing.T) {
	// Given: an AssetError wrapped by fmt.Errorf
	err := fmt.Errorf("scan failed: %w", IllegalState("no root owns /tmp/x", nil))

	// Then: the structured error is reported, not the wrapper
	assert.Contains(t, FormatForCLI(err), ErrCodeIllegalState)
}

func TestFormatJSON_Fields(t *testing.T) {
	// Given: an error with a cause and details
	err := IllegalArgument("/../etc/passwd", errors.New("escapes root")).
		WithDetail("root", "/data/root")

	// When: formatting as JSON
	data, fmtErr := FormatJSON(err)
	require.NoError(t, fmtErr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Then: machine-readable fields are present
	assert.Equal(t, ErrCodeIllegalArgument, decoded["code"])
	assert.Equal(t, "VALIDATION", decoded["category"])
	assert.Equal(t, "escapes root", decoded["cause"])
	assert.Equal(t, map[string]any{"root": "/data/root"}, decoded["details"])
}

func TestLogAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Run("structured", func(t *testing.T) {
		buf.Reset()
		err := IOError("hash failed", errors.New("EIO")).WithDetail("path", "/x/y.bin")

		logger.Warn("stage failed", LogAttr(err))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		group, ok := entry["error"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, ErrCodeTransientIO, group["code"])
		assert.Equal(t, "EIO", group["cause"])
		assert.Equal(t, "/x/y.bin", group["path"])
	})

	t.Run("plain", func(t *testing.T) {
		buf.Reset()

		logger.Warn("stage failed", LogAttr(errors.New("permission denied")))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "permission denied", entry["error"])
	})
}
