package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reliefboard/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("[task][create][ok]", zap.String("id", "42"))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "[task][create][ok]", entry["msg"])
	assert.Equal(t, "42", entry["id"])
	assert.Equal(t, "reliefboard", entry["service"])
	assert.Contains(t, entry, "ts")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Level: "debug", Format: "console"}, &buf)
	require.NoError(t, err)
	logger.Debug("[query][invalidate]")
	assert.Contains(t, buf.String(), "[query][invalidate]")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
