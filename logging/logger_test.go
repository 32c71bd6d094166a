package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level LogLevel) (*ScribeLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = &buf
	cfg.AddSource = false
	return NewLogger(cfg), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestScribeLogger_KeyValueArgs(t *testing.T) {
	l, buf := newTestLogger(LogLevelInfo)

	l.Info("workflow.stage.start", "stage", "intake", "session_id", "s-1")

	entry := decodeLine(t, buf)
	assert.Equal(t, "workflow.stage.start", entry["msg"])
	assert.Equal(t, "intake", entry["stage"])
	assert.Equal(t, "s-1", entry["session_id"])
}

func TestScribeLogger_DanglingValue(t *testing.T) {
	l, buf := newTestLogger(LogLevelInfo)

	l.Info("odd args", "key", "value", "dangling")

	entry := decodeLine(t, buf)
	assert.Equal(t, "odd args", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "dangling", entry["!BADKEY"])
}

func TestScribeLogger_LevelGate(t *testing.T) {
	l, buf := newTestLogger(LogLevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("visible", "k", "v")
	entry := decodeLine(t, buf)
	assert.Equal(t, "visible", entry["msg"])
}

func TestScribeLogger_ContextAttrs(t *testing.T) {
	l, buf := newTestLogger(LogLevelInfo)

	l.WithComponent("router").WithSession("s-1", "inv-1").Info("routing", "agent", "plume")

	entry := decodeLine(t, buf)
	assert.Equal(t, "router", entry["component"])
	assert.Equal(t, "s-1", entry["session_id"])
	assert.Equal(t, "inv-1", entry["invocation_id"])
	assert.Equal(t, "plume", entry["agent"])
}

func TestScribeLogger_ErrorWithStack(t *testing.T) {
	l, buf := newTestLogger(LogLevelInfo)

	l.ErrorWithStack(errors.New("boom"), "stage failed", "stage", "execute")

	entry := decodeLine(t, buf)
	assert.Equal(t, "stage failed", entry["msg"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "execute", entry["stage"])
	assert.Contains(t, entry["stack_trace"], "goroutine")
}
