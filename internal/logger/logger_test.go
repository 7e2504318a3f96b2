package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/story-weaver/internal/config"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestNewWritesTaggedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(&config.Config{LogLevel: "DEBUG", LogEncoding: "json", LogOutput: path, StoreDriver: config.DriverSQLite})
	require.NoError(t, err)

	log.Debug("story created")
	log.Info("chapter added")
	require.NoError(t, log.Sync())

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "story created", entry["msg"])
	assert.Equal(t, "story-weaver", entry["service"])
	assert.Equal(t, "sqlite", entry["store_driver"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "caller")
}

func TestNewHonoursLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := New(&config.Config{LogLevel: "warn", LogEncoding: "console", LogOutput: path})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("visible")
	require.NoError(t, log.Sync())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "WARN")
	assert.Contains(t, lines[0], "visible")
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(&config.Config{LogLevel: "chatty"})
	assert.ErrorContains(t, err, "LOG_LEVEL")

	_, err = New(&config.Config{LogLevel: "info", LogEncoding: "xml"})
	assert.ErrorContains(t, err, "LOG_ENCODING")

	_, err = New(&config.Config{LogLevel: "info", LogOutput: filepath.Join(t.TempDir(), "missing", "app.log")})
	assert.ErrorContains(t, err, "log output")
}
