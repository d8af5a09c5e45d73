package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andesco/edgegate/pkg/config"
)

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud", Format: "json"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(config.LogConfig{Level: "info", Format: "xml"})
	assert.ErrorContains(t, err, "unknown log format")

	_, err = New(config.LogConfig{Level: "info", Format: "json", Output: "file"})
	assert.ErrorContains(t, err, "no filename")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgegate.log")
	l, err := New(config.LogConfig{Level: "info", Format: "json", Output: "file", Filename: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.WithComponent("dispatcher").WithRequestID("req-1").Infow("Request handled", "status", 200)
	l.Debugw("dropped below level")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"Request handled"`)
	assert.Contains(t, string(raw), `"component":"dispatcher"`)
	assert.Contains(t, string(raw), `"request_id":"req-1"`)
	assert.NotContains(t, string(raw), "dropped below level")
}

func TestAutoFormat(t *testing.T) {
	l, err := New(config.LogConfig{Level: "debug", Format: "auto"})
	require.NoError(t, err)
	assert.NotNil(t, l.SugaredLogger)
}
