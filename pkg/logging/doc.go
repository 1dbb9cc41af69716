// Package logging provides structured logging for the rule engine, built on
// Go's log/slog.
//
// # Basic usage
//
//	logger, err := logging.New(logging.DefaultConfig())
//	logger.ForTask(wf.ID, task.ID, task.Function.Name).Info("task executed")
//
// # Chaining
//
// Logger is immutable; each helper returns a new Logger with the field(s)
// attached, so callers can build up context incrementally without
// affecting a shared base logger. ForTask bundles the workflow_id/task_id/
// function triple the executor attaches to every task-level line into one
// call instead of three:
//
//	base := logging.MustNew(cfg)
//	taskLogger := base.ForTask(wf.ID, task.ID, task.Function.Name)
//	taskLogger.WithError(err).Error("task execution failed")
//
// # Validation
//
// Config.Validate (and therefore New) fails fast on an unrecognized
// Level or a nil Output, rather than silently coercing to a default.
// MustNew panics on an invalid Config; it exists for the engine's
// always-valid built-in default.
//
// # Output
//
// Config.Format selects FormatJSON (the default, suited to log
// aggregation) or FormatText (for local development). Config.Level accepts
// "debug", "info", "warn"/"warning", or "error"; empty means "info".
package logging
