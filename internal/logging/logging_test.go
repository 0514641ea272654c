package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skuld.log")
	logger, err := New("info", path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("store opened", zap.String("path", "/tmp/skuld.db"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "store opened")
	assert.Contains(t, out, "/tmp/skuld.db")
	assert.NotContains(t, out, "hidden")
}

func TestNewDebugLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skuld.log")
	logger, err := New("debug", path)
	require.NoError(t, err)
	logger.Debug("expanded")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "expanded")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("chatty", "")
	assert.Error(t, err)
}
