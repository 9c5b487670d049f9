package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFleetLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("visible warning")
	logger.Error("visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden debug")
	assert.NotContains(t, out, "hidden info")
	assert.Contains(t, out, "visible warning")
	assert.Contains(t, out, "visible error")
}

func TestFleetLoggerAttachesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf, Component: "dispatch"})

	logger.WithWorker("w1").WithTask("t-9").Info("task transition from=%s to=%s", "assigned", "in_progress")

	out := buf.String()
	assert.Contains(t, out, `"component":"dispatch"`)
	assert.Contains(t, out, `"worker_id":"w1"`)
	assert.Contains(t, out, `"task_id":"t-9"`)
	assert.Contains(t, out, "task transition from=assigned to=in_progress")
}

func TestWithHelpersDoNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	_ = logger.WithWorker("w1")
	logger.Info("no worker attached")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.NotContains(t, lines[len(lines)-1], "worker_id")
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.String())
	assert.Equal(t, "ERROR", LogLevelError.String())
}

func TestNoOpLoggerIsSilent(t *testing.T) {
	// Must not panic regardless of arguments.
	NoOpLogger{}.Debug("x %s", "y")
	NoOpLogger{}.Error("x")
}
