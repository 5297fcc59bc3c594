package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"trace", LogLevelTrace},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warning", LogLevelWarn},
		{"Warn", LogLevelWarn},
		{"error", LogLevelError},
		{"bogus", LogLevelInfo},
		{"", LogLevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), "ParseLogLevel(%q)", tt.in)
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "TRACE", LogLevelTrace.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(zapcore.AddSync(&buf), LogLevelInfo)

	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)
	l.Warn("careful %s", "now")

	out := buf.String()
	assert.NotContains(t, out, "hidden", "debug filtered at info level")
	assert.Contains(t, out, "[INFO]", "info level tag")
	assert.Contains(t, out, "shown 2", "formatted message")
	assert.Contains(t, out, "[WARN]", "warn level tag")

	l.SetLevel(LogLevelDebug)
	l.Debug("visible now")
	assert.Contains(t, buf.String(), "visible now", "debug enabled after SetLevel")
}

func TestTraceUsesGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(zapcore.AddSync(&buf), LogLevelTrace)
	SetGlobal(l)
	defer SetGlobal(nil)

	Trace("sync buffer")()

	assert.Contains(t, buf.String(), "[TRACE]", "trace tag")
	assert.Contains(t, buf.String(), "sync buffer", "trace name")

	buf.Reset()
	l.SetLevel(LogLevelInfo)
	Trace("skipped")()
	assert.Empty(t, buf.String(), "trace disabled above trace level")
}

func TestLimitedWriterRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	require.NoError(t, err)

	w := NewLimitedWriter(f, 3)
	for _, line := range []string{"one\n", "two\n", "three\n", "four\n", "five\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "four", "five"}, strings.Fields(string(data)), "oldest lines dropped")
}

func TestLimitedWriterCountsExistingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	require.NoError(t, err)
	w := NewLimitedWriter(f, 2)
	_, err = w.Write([]byte("c\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b\nc\n", string(data), "existing lines count toward the limit")
}
