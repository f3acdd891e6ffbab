package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json", Output: io.Discard}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
		{name: "nil output", config: &Config{Level: "warn", Format: "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Infof("captured %d tables", 3)

	entry := decodeEntry(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "captured 3 tables", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	child := log.With().
		Str("database", "shop").
		Int("tables", 12).
		Logger()
	child.Infof("snapshot %s", "saved")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "shop", entry["database"])
	assert.Equal(t, float64(12), entry["tables"])
	assert.Equal(t, "snapshot saved", entry["message"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "error", Format: "json", Output: buf})

	log.ErrorWith("failed to connect", errors.New("access denied"), map[string]any{
		"host": "localhost",
		"port": 3306,
	})

	entry := decodeEntry(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "access denied", entry["error"])
	assert.Equal(t, "localhost", entry["host"])
	assert.Equal(t, float64(3306), entry["port"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := log.WithContext(context.Background())
	FromContext(ctx).Infof("from %s", "context")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "from context", entry["message"])
}

func TestLogger_FromEmptyContextIsSilent(t *testing.T) {
	assert.NotPanics(t, func() {
		FromContext(context.Background()).Infof("dropped")
	})
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("d") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug("d") }, false},
		{"warn level logs warn", "warn", func(l *Logger) { l.Warnf("w") }, true},
		{"error level skips info", "error", func(l *Logger) { l.Infof("i") }, false},
		{"disabled skips error", "off", func(l *Logger) { l.ErrorWith("e", nil, nil) }, false},
		{"unknown level defaults to info", "loud", func(l *Logger) { l.Infof("i") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(New(&Config{Level: tt.level, Format: "json", Output: buf}))

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	New(&Config{Level: "info", Format: "console", Output: buf}).Warnf("output %s ignored", "report.csv")

	assert.Contains(t, buf.String(), "output report.csv ignored")
	assert.Contains(t, buf.String(), "WRN")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().ErrorWith("nothing", errors.New("x"), nil) })
}
