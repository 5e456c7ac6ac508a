package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &Config{Level: "info"})
	l.Component("session").Info("created", "session_id", "s1")
	l.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "session", rec["component"])
	assert.Equal(t, "s1", rec["session_id"])
	assert.Equal(t, "created", rec["msg"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &Config{Format: "text"})
	l.Debug("a")
	assert.Empty(t, buf.String())
	l.SetLevel("debug")
	l.Debug("b")
	assert.Contains(t, buf.String(), "msg=b")
	assert.Same(t, &buf, l.Writer())
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converser.log")
	l, err := NewLogger(&Config{File: path, Format: "text"})
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "msg=hello"))
}

func TestNewLogger_BadFile(t *testing.T) {
	_, err := NewLogger(&Config{File: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
