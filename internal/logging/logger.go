// Package logging provides the agent's structured logging, following the
// slog-wrapper idiom: a thin struct around *slog.Logger with domain-named
// helper methods, one JSON handler, no third-party logging library.
package logging

import (
	"log/slog"
	"os"

	"github.com/kernox/agent/internal/config"
)

// Logger wraps slog with Kernox-specific default fields and helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger builds the agent's logger. Output is always stderr: the process
// supervisor (an external collaborator per SPEC_FULL.md §1) owns log capture.
func NewLogger(cfg *config.Config) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})

	base := slog.New(handler).With(
		"endpoint_id", cfg.EndpointID,
		"service", "kernox-agent",
	)

	return &Logger{Logger: base}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger tagged with a component field, used by
// each probe adapter / detector / the orchestrator to namespace log lines.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// LogProbeEvent logs probe-adapter lifecycle and ingestion events.
func (l *Logger) LogProbeEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "probe_started":
		l.Info("probe started", args...)
	case "probe_stopped":
		l.Info("probe stopped", args...)
	case "probe_read_error":
		l.Warn("probe read error", args...)
	default:
		l.Info("probe event", args...)
	}
}

// LogLineageEvent logs process lineage graph mutations.
func (l *Logger) LogLineageEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	l.Debug("lineage event", args...)
}

// LogDetectorEvent logs temporal detector firings and cooldown transitions.
func (l *Logger) LogDetectorEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	l.Info("detector event", args...)
}

// LogRuleEvent logs rule-load and rule-match events.
func (l *Logger) LogRuleEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "rule_parse_error":
		l.Warn("rule parse error", args...)
	case "rule_match":
		l.Info("rule matched", args...)
	default:
		l.Info("rule event", args...)
	}
}

// LogTransportEvent logs transport flush, retry, and spool events.
func (l *Logger) LogTransportEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "flush_failed":
		l.Warn("transport flush failed", args...)
	case "spooled":
		l.Warn("events spooled to fallback", args...)
	default:
		l.Info("transport event", args...)
	}
}

// LogSystemEvent logs orchestrator lifecycle events.
func (l *Logger) LogSystemEvent(event string, additional ...any) {
	args := append([]any{"event", event}, additional...)
	switch event {
	case "agent_started":
		l.Info("agent started", args...)
	case "agent_stopped":
		l.Info("agent stopped", args...)
	case "shutdown_signal":
		l.Info("shutdown signal received", args...)
	default:
		l.Info("system event", args...)
	}
}

// SetLogLevel records a runtime log-level change request. A new handler
// would need to be installed to take effect; the teacher's own logger
// carries the same limitation and only logs the request.
func (l *Logger) SetLogLevel(level string) {
	l.Info("log level change requested", "new_level", level)
}
