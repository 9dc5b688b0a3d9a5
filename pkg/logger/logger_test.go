package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewWithOptions_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "tourscan.log")

	log := NewWithOptions(Options{Level: "warn", Path: path, Console: &console})
	log.Info("hidden")
	log.Warn("probe failed", zap.String("provider", "yandex"))
	require.NoError(t, log.Sync())

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), `"provider":"yandex"`)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "probe failed")
}

func TestGetLogPath(t *testing.T) {
	t.Setenv("LOG_PATH", "/var/log/tourscan.log")
	assert.Equal(t, "/var/log/tourscan.log", getLogPath())

	dir := t.TempDir()
	t.Setenv("LOG_PATH", "")
	t.Setenv("APP_DATA_DIR", dir)
	assert.Equal(t, filepath.Join(dir, "tourscan.log"), getLogPath())
}
