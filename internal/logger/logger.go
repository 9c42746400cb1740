// Package logger configures the process-wide slog logger. Records carry
// the owning node's ring identity (see ForNode) and, when tracing is
// active, the span of the lookup chain they belong to, so one distributed
// lookup can be followed across the peers it touched.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	Level  string `env:"LOG_LEVEL" env-default:"INFO"`
	Format string `env:"LOG_FORMAT" env-default:"JSON"` // JSON or TEXT
}

// New builds the root logger and installs it as slog's default.
func New(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level(cfg.Level),
		ReplaceAttr: rfc3339Time,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "TEXT") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(&spanHandler{next: handler})
	slog.SetDefault(logger)
	return logger
}

// ForNode stamps every record of a node's logger with its ring identity.
// chord.New shapes each node's logger here, which is what makes interleaved
// output of several local peers readable. The transport server and client
// log through the logger they are given and are not stamped.
func ForNode(lg *slog.Logger, id uint64, addr string) *slog.Logger {
	return lg.With(slog.Uint64("node", id), slog.String("addr", addr))
}

func level(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func rfc3339Time(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
	}
	return a
}

// spanHandler threads trace_id and span_id into records. A lookup that
// fans out over the ring produces log lines on every hop; the trace id is
// the only key that groups them back together.
type spanHandler struct {
	next slog.Handler
}

func (h *spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *spanHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanHandler{next: h.next.WithAttrs(attrs)}
}

func (h *spanHandler) WithGroup(name string) slog.Handler {
	return &spanHandler{next: h.next.WithGroup(name)}
}
