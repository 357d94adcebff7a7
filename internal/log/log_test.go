package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"debug":   slog.LevelDebug,
		"trace":   LevelTrace,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	t.Cleanup(func() { _ = SetLogLevel(original) })

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, "debug", GetLogLevel())
	assert.Error(t, SetLogLevel("nope"))
	assert.Equal(t, "debug", GetLogLevel())
}

func TestRedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, slog.LevelInfo, "json"))

	logger.Info("auth", "hash", "deadbeef", "initData", "id=1&hash=x", "user_id", 777)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, redacted, entry["hash"])
	assert.Equal(t, redacted, entry["initData"])
	assert.Equal(t, float64(777), entry["user_id"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, buf.String(), "deadbeef")
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, LevelTrace, "text"))

	logger.Log(t.Context(), LevelTrace, "deep")
	assert.Contains(t, buf.String(), "level=TRACE")
}
