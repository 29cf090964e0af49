// Package logging wraps charmbracelet/log behind the narrow Debug/Info/Warn/
// Error shape every component package expects, so the daemon gets
// structured, leveled stderr logs without each package importing a
// concrete logging library.
package logging

import (
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Logger adapts *charmlog.Logger's (interface{}, ...interface{}) methods to
// the (string, ...interface{}) shape used throughout the daemon's
// component interfaces.
type Logger struct {
	l *charmlog.Logger
}

// New builds a root logger writing structured lines to stderr at the given
// level ("debug", "info", "warn", "error"; defaults to info).
func New(level string) *Logger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
	l.SetLevel(parseLevel(level))
	return &Logger{l: l}
}

func parseLevel(level string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// With returns a child logger tagging every line with the given component
// name, matching the daemon's one-logger-per-component wiring.
func (l *Logger) With(component string) *Logger {
	return &Logger{l: l.l.With("component", component)}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.l.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.l.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.l.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.l.Error(msg, args...) }
