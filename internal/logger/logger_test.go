package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func resetAfter(t *testing.T) {
	t.Cleanup(func() {
		InitWithWriter(bytes.NewBuffer(nil), "INFO", "text")
	})
}

func TestLevelFiltering(t *testing.T) {
	resetAfter(t)

	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestJSONFormat(t *testing.T) {
	resetAfter(t)

	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")

	Info("structured", "key", "value")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"key":"value"`)
}

func TestInvalidLevelIgnored(t *testing.T) {
	resetAfter(t)

	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	SetLevel("VERBOSE")
	Info("still info")
	assert.Contains(t, buf.String(), "still info")
}

func TestWith(t *testing.T) {
	resetAfter(t)

	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	With("component", "test").Info("hello")
	assert.Contains(t, buf.String(), "component=test")
}
