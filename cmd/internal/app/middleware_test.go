package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestLogMeta(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status     int
		wantLevel  slog.Level
		wantResult string
		wantClass  string
	}{
		{status: 200, wantLevel: slog.LevelInfo, wantResult: "success", wantClass: "2xx"},
		{status: 302, wantLevel: slog.LevelInfo, wantResult: "redirect", wantClass: "3xx"},
		{status: 404, wantLevel: slog.LevelWarn, wantResult: "client_error", wantClass: "4xx"},
		{status: 503, wantLevel: slog.LevelError, wantResult: "server_error", wantClass: "5xx"},
		{status: 700, wantLevel: slog.LevelError, wantResult: "server_error", wantClass: "unknown"},
	}

	for _, tc := range cases {
		level, result := requestLogMeta(tc.status)
		if level != tc.wantLevel || result != tc.wantResult {
			t.Fatalf("status=%d level=%v result=%q; want level=%v result=%q", tc.status, level, result, tc.wantLevel, tc.wantResult)
		}
		if got := statusClass(tc.status); got != tc.wantClass {
			t.Fatalf("statusClass(%d)=%q want=%q", tc.status, got, tc.wantClass)
		}
	}
}

func TestWithSecurityHeaders(t *testing.T) {
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing nosniff: %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("missing frame options: %q", got)
	}
	if got := rr.Header().Get("Referrer-Policy"); got != "no-referrer" {
		t.Fatalf("missing referrer policy: %q", got)
	}
}

func TestWithRequestLogging_LevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("taken"))
		w.WriteHeader(http.StatusOK) // ignored: header already written
	}), log)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/register", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	if line["msg"] != "http.request" {
		t.Fatalf("msg=%v", line["msg"])
	}
	if line["level"] != "WARN" {
		t.Fatalf("level=%v want WARN", line["level"])
	}
	if line["status"] != float64(http.StatusConflict) || line["status_class"] != "4xx" || line["result"] != "client_error" {
		t.Fatalf("unexpected request meta: %v", line)
	}
	if line["bytes"] != float64(len("taken")) {
		t.Fatalf("bytes=%v", line["bytes"])
	}
}

func TestRedactPath(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"/auth/verify/eyJhbGciOi.x.y":       "/auth/verify/{token}",
		"/auth/password/reset/eyJhbGciOi.z": "/auth/password/reset/{token}",
		"/auth/password/reset":              "/auth/password/reset",
		"/auth/verify/":                     "/auth/verify/",
		"/auth/verify/a/b":                  "/auth/verify/{token}/b",
		"/auth/register":                    "/auth/register",
		"":                                  "",
	} {
		require.Equal(t, want, redactPath(in), "path %q", in)
	}
}

func TestWithRequestLogging_OmitsTokens(t *testing.T) {
	const secret = "eyJhbGciOiJIUzI1NiJ9.payload.signature"

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/password/reset/{token}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := WithRequestLogging(mux, log)

	for _, path := range []string{"/auth/password/reset/" + secret, "/auth/verify/" + secret} {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
		require.NotContains(t, buf.String(), secret)
		require.NotContains(t, buf.String(), "payload")
	}

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/password/reset/"+secret, nil))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "POST /auth/password/reset/{token}", line["route"])
	require.Equal(t, "/auth/password/reset/{token}", line["path"])
}
