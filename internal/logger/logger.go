// Package logger is the process-wide structured logger. It keeps a small
// package-level API (Info, Warn, Debug, ...) on top of zerolog so that the
// library packages never need to carry a logger handle around.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OutputFormat selects how log lines are rendered.
type OutputFormat string

const (
	// FormatText renders human-readable console lines.
	FormatText OutputFormat = "text"
	// FormatJSON renders one JSON object per line.
	FormatJSON OutputFormat = "json"
)

// Fields is a type alias for log fields to make the API cleaner
type Fields map[string]interface{}

var (
	// testOutput is used to capture log output during tests
	testOutput io.Writer

	mu            sync.Mutex
	logger        *zerolog.Logger
	currentLevel  = zerolog.InfoLevel
	currentFormat = FormatText
	noColor       bool
)

// SetTestOutput sets the output writer for testing purposes
func SetTestOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	testOutput = w
	logger = nil
}

// UnsetTestOutput resets the test output to nil
func UnsetTestOutput() {
	mu.Lock()
	defer mu.Unlock()
	testOutput = nil
	logger = nil
}

// SetNoColor disables ANSI colors in text output.
func SetNoColor(v bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = v
	logger = nil
}

func getOutput() io.Writer {
	if testOutput != nil {
		return testOutput
	}
	return os.Stderr
}

// ParseLevel maps a configured level name to a zerolog level; unknown names fall back to info.
func ParseLevel(logLevel string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// InitLogger initializes the global logger.
func InitLogger(logLevel string, format OutputFormat) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = ParseLevel(logLevel)
	currentFormat = format
	logger = build()
}

// SetOutputFormat switches the output format, keeping the current level.
func SetOutputFormat(format OutputFormat) {
	mu.Lock()
	defer mu.Unlock()
	currentFormat = format
	logger = build()
}

// build must be called with mu held.
func build() *zerolog.Logger {
	var w io.Writer = getOutput()
	if currentFormat != FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    noColor || testOutput != nil,
			TimeFormat: time.TimeOnly,
		}
	}
	l := zerolog.New(w).Level(currentLevel).With().Timestamp().Logger()
	return &l
}

// GetLogger returns the configured logger instance.
func GetLogger() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = build()
	}
	return logger
}

func emit(ev *zerolog.Event, msg string, fields ...Fields) {
	if merged := mergeFields(fields...); len(merged) > 0 {
		ev = ev.Fields(map[string]interface{}(merged))
	}
	ev.Msg(msg)
}

// Info logs an info message.
func Info(msg string, fields ...Fields) {
	emit(GetLogger().Info(), msg, fields...)
}

// Infof logs a formatted info message.
func Infof(format string, args ...interface{}) {
	GetLogger().Info().Msg(fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only shown when debug level is enabled).
func Debug(msg string, fields ...Fields) {
	emit(GetLogger().Debug(), msg, fields...)
}

// Debugf logs a formatted debug message.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debug().Msg(fmt.Sprintf(format, args...))
}

// Warn logs a warning message.
func Warn(msg string, fields ...Fields) {
	emit(GetLogger().Warn(), msg, fields...)
}

// Warnf logs a formatted warning message.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warn().Msg(fmt.Sprintf(format, args...))
}

// Error logs an error message.
func Error(msg string, fields ...Fields) {
	emit(GetLogger().Error(), msg, fields...)
}

// Errorf logs a formatted error message.
func Errorf(format string, args ...interface{}) {
	GetLogger().Error().Msg(fmt.Sprintf(format, args...))
}

// Success logs a success message as info with success indicator.
func Success(msg string, fields ...Fields) {
	merged := mergeFields(fields...)
	merged["status"] = "success"
	emit(GetLogger().Info(), msg, merged)
}

// mergeFields merges multiple field maps into one; later maps win.
func mergeFields(fields ...Fields) Fields {
	result := Fields{}
	for _, field := range fields {
		for k, v := range field {
			result[k] = v
		}
	}
	return result
}
