package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerWithWriter(&buf, slog.LevelInfo, "json")

	logger.Debug("hidden")
	logger.Info("Job submitted", "job_id", "42")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "Job submitted", entry["msg"])
	require.Equal(t, "42", entry["job_id"])
	require.True(t, strings.HasSuffix(entry["time"].(string), "Z"))
}

func TestSlogLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerWithWriter(&buf, slog.LevelDebug, "text")

	logger.Debug("Polling", "attempt", 3)

	require.Contains(t, buf.String(), "msg=Polling")
	require.Contains(t, buf.String(), "attempt=3")
}
