package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuffered(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg.writer = &buf
	l, err := New(cfg)
	require.NoError(t, err)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestNew_JSONLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantCount int
	}{
		{"debug logs everything", "debug", 4},
		{"info drops debug", "info", 3},
		{"warn keeps warn and error", "warn", 2},
		{"error keeps error only", "ERROR", 1},
		{"unknown falls back to info", "verbose", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBuffered(t, &Config{Level: tt.level, Format: "json"})

			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")

			assert.Len(t, decodeLines(t, buf), tt.wantCount)
		})
	}
}

func TestNew_ServiceAttribute(t *testing.T) {
	l, buf := newBuffered(t, &Config{Format: "json", Service: "job-enricher-api"})

	l.Info("Job posting created", slog.String("posting_id", "p-1"))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "job-enricher-api", entries[0]["service"])
	assert.Equal(t, "p-1", entries[0]["posting_id"])
	assert.Equal(t, "Job posting created", entries[0]["msg"])
}

func TestNew_RedactsSecrets(t *testing.T) {
	for _, format := range []string{"json", "text", "console"} {
		t.Run(format, func(t *testing.T) {
			l, buf := newBuffered(t, &Config{Format: format})

			l.Info("config loaded",
				slog.String("llm_api_key", "sk-live-123"),
				slog.String("extension_secret", "hunter2"),
				slog.String("database_password", "pw"),
				slog.String("model", "gpt-4o-mini"),
			)

			out := buf.String()
			assert.NotContains(t, out, "sk-live-123")
			assert.NotContains(t, out, "hunter2")
			assert.Contains(t, out, Redacted)
			assert.Contains(t, out, "gpt-4o-mini")
		})
	}
}

func TestNew_TextAndConsoleFormats(t *testing.T) {
	l, buf := newBuffered(t, &Config{Format: "text"})
	l.Info("batch finished", slog.Int("total_success", 3))
	assert.Contains(t, buf.String(), "msg=\"batch finished\"")
	assert.Contains(t, buf.String(), "total_success=3")

	l, buf = newBuffered(t, &Config{Format: "console"})
	l.Info("batch finished", slog.Int("total_success", 3))
	assert.Contains(t, buf.String(), "batch finished")
	assert.NotContains(t, buf.String(), "\x1b[", "no colors when not writing to a terminal")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := New(&Config{Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("written to file")

	_, err = New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "app.log")})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}
