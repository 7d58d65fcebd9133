package logging

import (
	"log/slog"
)

// LoggerHook creates action-specific loggers by wrapping a base logger.
type LoggerHook interface {
	// LoggerForAction wraps base for logging one kind of user action.
	LoggerForAction(base *slog.Logger, action string) *slog.Logger
}

// CapturingLoggerHook creates loggers whose records are also kept in a
// LogCollector.
type CapturingLoggerHook struct {
	collector *LogCollector
}

// NewCapturingLoggerHook creates a hook that captures into collector.
func NewCapturingLoggerHook(collector *LogCollector) *CapturingLoggerHook {
	return &CapturingLoggerHook{
		collector: collector,
	}
}

// LoggerForAction tags base with the action and captures its records.
func (p *CapturingLoggerHook) LoggerForAction(base *slog.Logger, action string) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), p.collector, action)).With("action", action)
}

// PassthroughLoggerHook only tags loggers with the action name.
type PassthroughLoggerHook struct{}

// LoggerForAction tags base with the action.
func (PassthroughLoggerHook) LoggerForAction(base *slog.Logger, action string) *slog.Logger {
	return base.With("action", action)
}
