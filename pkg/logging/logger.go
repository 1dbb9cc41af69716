// Package logging wraps log/slog with the fixed set of structured fields
// the rule engine attributes its log lines to (workflow_id, task_id,
// function, error) plus a generic escape hatch for ad-hoc fields. Unlike a
// generic string-level shim, an unrecognized Config.Level is a
// construction-time error, not a silent fallback to info.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type loggerContextKey struct{}

// Format selects the slog.Handler a Logger renders records through.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// Logger wraps slog.Logger, layering on the ForWorkflow/ForTask/WithError
// chaining the executor uses to attribute every line it emits.
type Logger struct {
	base *slog.Logger
}

// Config configures New.
type Config struct {
	// Level is one of "debug", "info", "warn"/"warning", "error"; empty
	// means "info". Any other value fails Validate.
	Level string
	// Output is where rendered records are written; nil fails Validate.
	Output io.Writer
	// Format selects JSON (default) or human-readable text records.
	Format Format
	// IncludeCaller adds the call site to every record.
	IncludeCaller bool
}

// DefaultConfig returns a JSON-to-stdout configuration at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Output: os.Stdout, Format: FormatJSON}
}

// Validate reports whether cfg can be built into a Logger, following the
// same fail-fast Validate() convention as pkg/config.Config.
func (c Config) Validate() error {
	if c.Output == nil {
		return ErrInvalidOutput
	}
	if _, err := slogLevel(c.Level); err != nil {
		return err
	}
	if c.Format != FormatJSON && c.Format != FormatText {
		return ErrInvalidLogFormat
	}
	return nil
}

func slogLevel(level string) (slog.Level, error) {
	switch level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, ErrInvalidLogLevel
	}
}

// New builds a Logger from cfg, failing if cfg.Validate() does.
func New(cfg Config) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := slogLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.IncludeCaller}

	var handler slog.Handler
	if cfg.Format == FormatText {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &Logger{base: slog.New(handler)}, nil
}

// MustNew is New, panicking if cfg fails Validate. Used for the engine's
// built-in default logger, whose configuration is always valid.
func MustNew(cfg Config) *Logger {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// WithContext attaches l to ctx for later retrieval via FromContext.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// FromContext returns the Logger attached to ctx, or a default logger if
// none was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return l
	}
	return MustNew(DefaultConfig())
}

// ForWorkflow scopes subsequent lines to one workflow.
func (l *Logger) ForWorkflow(workflowID string) *Logger {
	return l.with(slog.String("workflow_id", workflowID))
}

// ForTask scopes subsequent lines to one task, bundling the workflow_id/
// task_id/function triple the executor attributes every task-level line
// to into a single call instead of three chained ones.
func (l *Logger) ForTask(workflowID, taskID, function string) *Logger {
	return l.with(
		slog.String("workflow_id", workflowID),
		slog.String("task_id", taskID),
		slog.String("function", function),
	)
}

// WithTaskID scopes subsequent lines to one task, for call sites that
// already hold the workflow scope and have no function to attach.
func (l *Logger) WithTaskID(taskID string) *Logger {
	return l.with(slog.String("task_id", taskID))
}

// WithError attaches err's message. A nil err is a no-op, returning l
// unchanged.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.with(slog.String("error", err.Error()))
}

// WithField attaches one ad-hoc key/value pair.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(slog.Any(key, value))
}

func (l *Logger) with(attrs ...slog.Attr) *Logger {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return &Logger{base: l.base.With(args...)}
}

// Debug, Info, Warn, and Error emit a record at the given level.
// Structured fields are appended directly as slog-style key/value pairs
// rather than through a parallel set of Printf-style *f methods.
func (l *Logger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.base.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.base.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.base.Error(msg, args...) }

// Unwrap returns the underlying slog.Logger, for callers that need direct
// access to it.
func (l *Logger) Unwrap() *slog.Logger { return l.base }
