package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	} {
		require.Equal(t, want, parseLogLevel(in), "level %q", in)
	}
}

func TestNewLogHandler_JSONRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newLogHandler(&buf, "warn", "json"))

	require.False(t, log.Enabled(context.Background(), slog.LevelInfo))
	log.Info("account.login.rejected")
	require.Zero(t, buf.Len())

	log.Warn("notify.smtp.send.fail", "kind", "verification")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "notify.smtp.send.fail", rec["msg"])
	require.Equal(t, "WARN", rec["level"])
	require.Equal(t, "verification", rec["kind"])
	require.Contains(t, rec, "source")
}

func TestNewLogHandler_PrettyFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newLogHandler(&buf, "debug", " Pretty ")
	_, isJSON := h.(*slog.JSONHandler)
	require.False(t, isJSON)

	slog.New(h).Debug("account.register.ok", "user_id", "01J")
	require.Contains(t, buf.String(), "account.register.ok")
	require.Contains(t, buf.String(), "01J")
}
