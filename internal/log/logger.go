// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var currentLevel atomic.Uint32

// output is swapped atomically so tests can capture log lines.
var output atomic.Pointer[stdlog.Logger]

func init() {
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output to w. Lines carry date and time with
// microseconds.
func SetOutput(w io.Writer) {
	output.Store(stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds))
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

func emit(level LogLevel, prefix, msg string) {
	if level == LevelFatal {
		output.Load().Fatalf("[%s] %s%s", level, prefix, msg)
		return
	}
	output.Load().Printf("[%s] %s%s", level, prefix, msg)
}

// Logger is a named view over the global logger. The name is prepended to
// every message so subsystems can be told apart in a shared stream.
type Logger struct {
	prefix string
}

// Component returns a Logger whose messages are prefixed with "name: ".
func Component(name string) *Logger {
	if name == "" {
		return &Logger{}
	}
	return &Logger{prefix: name + ": "}
}

func (l *Logger) logf(level LogLevel, format string, v ...any) {
	if !shouldLog(level) {
		return
	}
	emit(level, l.prefix, fmt.Sprintf(format, v...))
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v...) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v...) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v...) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v...) }

// Fatalf always logs, regardless of level, and then exits.
func (l *Logger) Fatalf(format string, v ...any) {
	emit(LevelFatal, l.prefix, fmt.Sprintf(format, v...))
}

// --- Package-level helpers ---

var root = &Logger{}

func Debugf(format string, v ...any) { root.logf(LevelDebug, format, v...) }
func Infof(format string, v ...any)  { root.logf(LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { root.logf(LevelWarn, format, v...) }
func Errorf(format string, v ...any) { root.logf(LevelError, format, v...) }
func Fatalf(format string, v ...any) { root.Fatalf(format, v...) }

func Debug(v ...any) { root.logf(LevelDebug, "%s", fmt.Sprint(v...)) }
func Info(v ...any)  { root.logf(LevelInfo, "%s", fmt.Sprint(v...)) }
func Warn(v ...any)  { root.logf(LevelWarn, "%s", fmt.Sprint(v...)) }
func Error(v ...any) { root.logf(LevelError, "%s", fmt.Sprint(v...)) }
func Fatal(v ...any) { root.Fatalf("%s", fmt.Sprint(v...)) }
