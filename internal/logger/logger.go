// Package logger provides leveled logging for the dashboard. It wraps the
// standard log package with level filtering so noisy refresh-loop debug
// output can be silenced in normal operation.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level.
type Level int

const (
	// DebugLevel logs per-refresh details and is usually disabled.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs recoverable problems such as failed persistence writes.
	WarnLevel
	// ErrorLevel logs failures that degrade the dashboard, such as an
	// upstream fetch that exhausted its retries.
	ErrorLevel
)

func parseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func (l Level) tag() string {
	switch l {
	case DebugLevel:
		return "[DEBUG]"
	case WarnLevel:
		return "[WARN]"
	case ErrorLevel:
		return "[ERROR]"
	default:
		return "[INFO]"
	}
}

var (
	mu       sync.Mutex
	minLevel = InfoLevel
	out      = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

// Init configures the package-level logger. format "text" adds the caller's
// file and line to each entry.
func Init(level string, format string) {
	mu.Lock()
	defer mu.Unlock()

	minLevel = parseLevel(level)

	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	out = log.New(os.Stderr, "", flags)
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out.SetOutput(w)
}

func logf(level Level, format string, args ...interface{}) {
	mu.Lock()
	enabled := level >= minLevel
	l := out
	mu.Unlock()

	if !enabled {
		return
	}
	// Depth 3: logf, the exported wrapper, the caller.
	_ = l.Output(3, fmt.Sprintf(level.tag()+" "+format, args...))
}

// Debug logs a message at DebugLevel.
func Debug(format string, args ...interface{}) {
	logf(DebugLevel, format, args...)
}

// Info logs a message at InfoLevel.
func Info(format string, args ...interface{}) {
	logf(InfoLevel, format, args...)
}

// Warn logs a message at WarnLevel.
func Warn(format string, args ...interface{}) {
	logf(WarnLevel, format, args...)
}

// Error logs a message at ErrorLevel.
func Error(format string, args ...interface{}) {
	logf(ErrorLevel, format, args...)
}

// Fatal logs a message at ErrorLevel and exits.
func Fatal(format string, args ...interface{}) {
	logf(ErrorLevel, "FATAL: "+format, args...)
	os.Exit(1)
}
