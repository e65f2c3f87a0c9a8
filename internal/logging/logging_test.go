package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_StdoutOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, SentryConfig{})

	logger.Debug("hidden")
	logger.Info("login completed", slog.String("provider", "google"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "login completed", rec["msg"])
	require.Equal(t, "google", rec["provider"])
}

func TestMultiHandler(t *testing.T) {
	var info, warn bytes.Buffer
	h := newMultiHandler(
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	require.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, h.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(h).With("component", "test").WithGroup("req")
	logger.Info("one", "id", 1)
	logger.Warn("two", "id", 2)

	require.Equal(t, 2, strings.Count(info.String(), "\n"))
	require.Equal(t, 1, strings.Count(warn.String(), "\n"))
	require.Contains(t, warn.String(), `"component":"test"`)
	require.Contains(t, warn.String(), `"req":{"id":2}`)
}
