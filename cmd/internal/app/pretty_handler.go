package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

// prettyHandler writes one logfmt-style line per record for local development.
// Attributes added through WithAttrs are rendered once and reused.
type prettyHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	source bool
	color  bool

	prefix string // open groups, dot-joined with a trailing dot
	pre    string // rendered WithAttrs attributes
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, color bool) slog.Handler {
	h := &prettyHandler{w: w, mu: &sync.Mutex{}, level: slog.LevelInfo, color: color}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.source = opts.AddSource
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	for _, a := range attrs {
		h.writeAttr(&b, h.prefix, a)
	}
	cp := *h
	cp.pre += b.String()
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	name = strings.TrimSpace(name)
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix += name + "."
	return &cp
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ts=%s lvl=%s msg=%s",
		h.paint(ts.Format("15:04:05.000"), ansiDim),
		h.paint(levelTag(r.Level)),
		h.paint(r.Message, ansiBright),
	)
	if h.source && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if f.File != "" {
			b.WriteString(" src=")
			b.WriteString(h.paint(filepath.Base(f.File)+":"+strconv.Itoa(f.Line), ansiDim))
		}
	}
	b.WriteString(h.pre)
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := strings.TrimSpace(a.Key)
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		if key != "" {
			prefix += key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, prefix, ga)
		}
		return
	}
	if key == "" {
		return
	}

	text, code := styleValue(key, a.Value)
	if alias, ok := keyAliases[key]; ok {
		key = alias
	}
	b.WriteByte(' ')
	b.WriteString(prefix + key)
	b.WriteByte('=')
	b.WriteString(h.paint(text, code))
}

func (h *prettyHandler) paint(s, code string) string {
	if !h.color || code == "" || s == "" {
		return s
	}
	return code + s + ansiReset
}

var keyAliases = map[string]string{
	"status_class": "class",
	"duration_ms":  "duration",
}

// styleValue renders v for key and picks its color, "" meaning none.
func styleValue(key string, v slog.Value) (string, string) {
	switch key {
	case "method":
		m := strings.ToUpper(strings.TrimSpace(v.String()))
		return m, methodColor(m)
	case "path", "route":
		return quoteIfNeeded(strings.TrimSpace(v.String())), ansiCyan
	case "status":
		if n, ok := intValue(v); ok {
			return strconv.FormatInt(n, 10), classColor(statusClass(int(n)))
		}
	case "status_class":
		class := strings.TrimSpace(v.String())
		return class, classColor(class)
	case "duration_ms":
		if n, ok := intValue(v); ok {
			return strconv.FormatInt(n, 10) + "ms", durationColor(n)
		}
	case "err":
		return quoteIfNeeded(plainValue(v)), ansiRed
	}
	return quoteIfNeeded(plainValue(v)), ""
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func intValue(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true // #nosec G115 -- status codes and durations.
	}
	return 0, false
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelTag(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "[ERROR]", ansiRed
	case level >= slog.LevelWarn:
		return "[WARN]", ansiYellow
	case level < slog.LevelInfo:
		return "[DEBUG]", ansiMagenta
	}
	return "[INFO]", ansiBlue
}

func methodColor(m string) string {
	switch m {
	case http.MethodGet:
		return ansiGreen
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return ansiYellow
	case http.MethodDelete:
		return ansiRed
	}
	return ansiMagenta
}

func classColor(class string) string {
	switch class {
	case "5xx", "unknown":
		return ansiRed
	case "4xx":
		return ansiYellow
	case "3xx":
		return ansiCyan
	}
	return ansiGreen
}

func durationColor(ms int64) string {
	switch {
	case ms >= 1000:
		return ansiRed
	case ms >= 250:
		return ansiYellow
	}
	return ""
}
