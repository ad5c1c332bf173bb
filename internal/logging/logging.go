package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	MessageIDKey contextKey = "message_id"
	UserIDKey    contextKey = "user_id"
	QueueKey     contextKey = "queue"
)

// MultiHandler sends log records to multiple handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: newHandlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: newHandlers}
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Init installs the default logger: text on stdout, plus JSON lines in
// logFile when one is given.
func Init(level, logFile string) {
	// yyyy:mm:dd:HH:MM:SS
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(a.Key, t.Format("2006:01:02:15:04:05"))
				}
			}
			return a
		},
	}

	stdoutHandler := slog.NewTextHandler(os.Stdout, opts)
	if logFile == "" {
		slog.SetDefault(slog.New(stdoutHandler))
		return
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		slog.SetDefault(slog.New(stdoutHandler))
		slog.Error("failed to open log file", slog.String("path", logFile), slog.Any("error", err))
		return
	}

	slog.SetDefault(slog.New(NewMultiHandler(stdoutHandler, slog.NewJSONHandler(f, opts))))
}

func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if val, ok := ctx.Value(RequestIDKey).(string); ok {
		l = l.With("request_id", val)
	}
	if val, ok := ctx.Value(MessageIDKey).(string); ok {
		l = l.With("message_id", val)
	}
	if val, ok := ctx.Value(UserIDKey).(string); ok {
		l = l.With("user_id", val)
	}
	if val, ok := ctx.Value(QueueKey).(string); ok {
		l = l.With("queue", val)
	}
	return l
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func WithMessage(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, MessageIDKey, id)
}

func WithUser(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

func WithQueue(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, QueueKey, name)
}
