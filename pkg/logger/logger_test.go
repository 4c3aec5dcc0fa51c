package logger

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(f func()) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	outputChan := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outputChan <- buf.String()
	}()

	f()

	_ = w.Close()
	os.Stdout = oldStdout

	return <-outputChan
}

func TestNewLogger(t *testing.T) {
	l := NewLogger("info")
	assert.NotNil(t, l)
	assert.IsType(t, &zerologLogger{}, l)
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug passes through", "debug"},
		{"unknown falls back to info", "unknown"},
		{"empty falls back to info", ""},
		{"mixed case", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLogger(tt.level)
			assert.NotNil(t, l)
		})
	}
}

func TestDebugRespectsLevel(t *testing.T) {
	output := captureOutput(func() {
		l := NewLogger("info")
		l.Debug("debug message")
	})
	assert.NotContains(t, output, "debug message")

	output = captureOutput(func() {
		l := NewLogger("debug")
		l.Debug("debug message")
	})
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, `"level":"debug"`)
}

func TestInfo(t *testing.T) {
	output := captureOutput(func() {
		l := NewLogger("info")
		l.Info("info message")
	})
	assert.Contains(t, output, "info message")
	assert.Contains(t, output, `"level":"info"`)
}

func TestWarn(t *testing.T) {
	output := captureOutput(func() {
		l := NewLogger("warn")
		l.Warn("warn message")
	})
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, `"level":"warn"`)
}

func TestError(t *testing.T) {
	output := captureOutput(func() {
		l := NewLogger("error")
		l.Error("error message")
	})
	assert.Contains(t, output, "error message")
	assert.Contains(t, output, `"level":"error"`)
}

func TestWithField(t *testing.T) {
	output := captureOutput(func() {
		l := NewLogger("info").WithField("subscription_id", "sub_1")
		l.Info("message with field")
	})
	assert.Contains(t, output, "message with field")
	assert.Contains(t, output, `"subscription_id":"sub_1"`)
}

func TestWithFieldRedactsSecret(t *testing.T) {
	output := captureOutput(func() {
		l := NewLogger("info").WithField("secret", "super-secret-value")
		l.Info("creating subscription")
	})
	assert.Contains(t, output, `"secret":"[redacted]"`)
	assert.NotContains(t, output, "super-secret-value")
}

func TestWithFields(t *testing.T) {
	output := captureOutput(func() {
		fields := map[string]interface{}{
			"subscription_id": "sub_1",
			"attempts":        3,
		}
		l := NewLogger("info").WithFields(fields)
		l.Info("message with fields")
	})
	assert.Contains(t, output, `"subscription_id":"sub_1"`)
	assert.Contains(t, output, `"attempts":3`)
}

func TestWithFieldsRedactsSecret(t *testing.T) {
	output := captureOutput(func() {
		fields := map[string]interface{}{
			"webhook_secret": "super-secret-value",
			"url":            "https://example.com",
		}
		l := NewLogger("info").WithFields(fields)
		l.Info("message")
	})
	assert.Contains(t, output, `"webhook_secret":"[redacted]"`)
	assert.NotContains(t, output, "super-secret-value")
}

func TestWithFieldChaining(t *testing.T) {
	output := captureOutput(func() {
		l := NewLogger("info").
			WithField("field1", "value1").
			WithField("field2", "value2")
		l.Info("chained fields")
	})

	assert.Contains(t, output, `"field1":"value1"`)
	assert.Contains(t, output, `"field2":"value2"`)
}

func TestWithFieldReturnsNewInstance(t *testing.T) {
	original := NewLogger("info")
	next := original.WithField("test_field", "test_value")
	assert.NotSame(t, original, next)
}
