package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_WritesDailyFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2024, 3, 7, 9, 30, 0, 0, time.UTC)

	log, cleanup, err := NewLogger(LogOptions{Level: "info", Format: "json", Dir: dir}, func() time.Time { return now })
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("server started")
	log.Error("upload failed")
	cleanup()

	server, err := os.ReadFile(filepath.Join(dir, "2024-03-07-server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(server), "server started")
	assert.Contains(t, string(server), "upload failed")
	assert.NotContains(t, string(server), "hidden")

	errs, err := os.ReadFile(filepath.Join(dir, "2024-03-07-error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errs), "upload failed")
	assert.NotContains(t, string(errs), "server started")
}

func TestNewLogger_RotatesAtMidnight(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2024, 3, 7, 23, 59, 59, 0, time.UTC)
	clock := func() time.Time { return now }

	log, cleanup, err := NewLogger(LogOptions{Level: "info", Format: "json", Dir: dir}, clock)
	require.NoError(t, err)

	log.Info("before midnight")
	log.Error("late failure")
	now = now.Add(2 * time.Second)
	log.Info("after midnight")
	log.Error("early failure")
	cleanup()

	first, err := os.ReadFile(filepath.Join(dir, "2024-03-07-server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "before midnight")
	assert.NotContains(t, string(first), "after midnight")

	second, err := os.ReadFile(filepath.Join(dir, "2024-03-08-server.log"))
	require.NoError(t, err)
	assert.Contains(t, string(second), "after midnight")
	assert.NotContains(t, string(second), "before midnight")

	errs, err := os.ReadFile(filepath.Join(dir, "2024-03-08-error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errs), "early failure")
	assert.NotContains(t, string(errs), "late failure")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	log, cleanup, err := NewLogger(LogOptions{Level: "warn", Format: "text"}, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, _, err := NewLogger(LogOptions{Level: "loud"}, nil)
	assert.Error(t, err)
}
