package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"market-viewer/src/models"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger zerolog.Logger
	config *models.MConfig
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing to stderr.
// A nil config logs at info level.
func NewLogger(config *models.MConfig, name string) *Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return newLogger(config, name, out)
}

// -----------------------------------------------------------------------------

// NewLoggerWithWriter is NewLogger with a custom sink (used by tests).
func NewLoggerWithWriter(config *models.MConfig, name string, w io.Writer) *Logger {
	return newLogger(config, name, w)
}

// -----------------------------------------------------------------------------

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return &Logger{name: "nop", logger: zerolog.Nop()}
}

// -----------------------------------------------------------------------------

func newLogger(config *models.MConfig, name string, w io.Writer) *Logger {
	level := zerolog.InfoLevel
	if config != nil {
		level = ParseLevel(config.LogLevel)
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Str("component", name).Logger()
	return &Logger{name: name, logger: zl, config: config}
}

// -----------------------------------------------------------------------------

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// With returns a child logger sharing the sink, tagged with another component name.
func (l *Logger) With(name string) *Logger {
	return &Logger{
		name:   name,
		logger: l.logger.With().Str("component", name).Logger(),
		config: l.config,
	}
}

// -----------------------------------------------------------------------------

// Zerolog exposes the underlying logger for callers wanting typed fields.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.logger
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, args...))
	os.Exit(1)
}
