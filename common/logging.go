package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
)

const redacted = "[REDACTED]"

var redactor struct {
	mu     sync.RWMutex
	values []string
	r      *strings.Replacer
}

// InitLogging sets up the slog-based logging system.
// jsonMode=true uses JSONHandler (for serve mode), false uses TextHandler (for CLI).
func InitLogging(jsonMode bool) {
	slog.SetDefault(NewLogger(os.Stderr, jsonMode, ResolveLogLevel(Env("LOG_LEVEL", "info"))))
}

// NewLogger builds a redacting logger writing to w.
func NewLogger(w io.Writer, jsonMode bool, level slog.Level) *slog.Logger {
	var handler slog.Handler
	if jsonMode {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(&redactingHandler{inner: handler})
}

// ResolveLogLevel maps a verbosity name to a slog level. Unknown names are INFO.
func ResolveLogLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InstanceLogger scopes a logger to one SAP instance.
func InstanceLogger(base *slog.Logger, sid, instance string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("sid", sid, "instance", instance)
}

// RegisterSecret adds a value to be redacted from all log output.
func RegisterSecret(value string) {
	if value == "" {
		return
	}
	redactor.mu.Lock()
	defer redactor.mu.Unlock()
	if slices.Contains(redactor.values, value) {
		return
	}
	redactor.values = append(redactor.values, value)
	// Longer secrets first so one that contains another is masked whole.
	slices.SortFunc(redactor.values, func(a, b string) int { return len(b) - len(a) })
	pairs := make([]string, 0, 2*len(redactor.values))
	for _, v := range redactor.values {
		pairs = append(pairs, v, redacted)
	}
	redactor.r = strings.NewReplacer(pairs...)
}

// Redact masks every registered secret in s.
func Redact(s string) string {
	redactor.mu.RLock()
	r := redactor.r
	redactor.mu.RUnlock()
	if r == nil {
		return s
	}
	return r.Replace(s)
}

// redactingHandler masks secrets in the message, string attributes and
// error attributes before the record reaches the inner handler.
type redactingHandler struct {
	inner slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &redactingHandler{inner: h.inner.WithAttrs(clean)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(Redact(a.Value.String()))
	case slog.KindAny:
		// Facade errors carry the failed command line.
		if err, ok := a.Value.Any().(error); ok {
			a.Value = slog.StringValue(Redact(err.Error()))
		}
	case slog.KindGroup:
		group := a.Value.Group()
		clean := make([]slog.Attr, len(group))
		for i, ga := range group {
			clean[i] = redactAttr(ga)
		}
		a.Value = slog.GroupValue(clean...)
	}
	return a
}

// Printf-style helpers for CLI-level messages.

func DebugLog(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...))
}

func InfoLog(format string, args ...any) {
	slog.Info(fmt.Sprintf(format, args...))
}

func WarnLog(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...))
}
