package app

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

	log.Info("http.request",
		"method", "post",
		"path", "/auth/login",
		"status", 401,
		"status_class", "4xx",
		"duration_ms", int64(12),
		"user_agent", "curl 8.0",
	)

	got := buf.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=http.request",
		"method=POST",
		"path=/auth/login",
		"status=401",
		"class=4xx",
		"duration=12ms",
		`user_agent="curl 8.0"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "\x1b[") {
		t.Fatalf("unexpected ANSI codes in %q", got)
	}
}

func TestPrettyHandler_LevelAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))

	log.Info("dropped")
	log.WithGroup("db").With("schema", "warden").Error("db.migrate.fail", "err", errors.New("boom"))

	got := buf.String()
	if strings.Contains(got, "dropped") {
		t.Fatalf("info record should be filtered: %q", got)
	}
	for _, want := range []string{"lvl=[ERROR]", "db.schema=warden", "db.err=boom"} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
}

func TestPrettyHandler_Colors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))
	log.Error("server.fail", "status", 503)

	got := buf.String()
	if !strings.Contains(got, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("level not colored: %q", got)
	}
	if !strings.Contains(got, ansiRed+"503"+ansiReset) {
		t.Fatalf("status not colored: %q", got)
	}
}

func TestNewLogHandler_Format(t *testing.T) {
	t.Parallel()

	if _, ok := newLogHandler(&bytes.Buffer{}, "info", "pretty").(*prettyHandler); !ok {
		t.Fatalf("pretty format should select prettyHandler")
	}
	if _, ok := newLogHandler(&bytes.Buffer{}, "info", "json").(*slog.JSONHandler); !ok {
		t.Fatalf("json format should select JSONHandler")
	}
	if _, ok := newLogHandler(&bytes.Buffer{}, "info", "").(*slog.JSONHandler); !ok {
		t.Fatalf("empty format should default to JSONHandler")
	}
}

func TestPrettyHandler_GroupsScopeLaterAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false))
	log.With("driver", "smtp").WithGroup("notify").Info("sent",
		"kind", "verification",
		slog.Group("rcpt", "domain", "x.io"),
		"route", "POST /auth/register",
	)

	got := buf.String()
	for _, want := range []string{
		" driver=smtp",
		"notify.kind=verification",
		"notify.rcpt.domain=x.io",
		`notify.route="POST /auth/register"`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "notify.driver") {
		t.Fatalf("attrs added before the group must stay unqualified: %q", got)
	}
}
