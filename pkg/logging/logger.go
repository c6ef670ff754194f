// Package logging provides the leveled key-value logger used across
// sessionkit. Output goes to the console by default; NewWithRotation adds a
// size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents log severity.
type Level int

const (
	// LevelDebug is for verbose development output.
	LevelDebug Level = iota
	// LevelInfo is for normal operational messages.
	LevelInfo
	// LevelWarn is for recoverable problems.
	LevelWarn
	// LevelError is for failures.
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level. Unknown strings map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the logging interface taken by sessionkit components.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithModule(module string) Logger
}

// SimpleLogger is the default Logger implementation.
type SimpleLogger struct {
	module    string
	level     Level
	logger    *log.Logger
	useColors bool
}

// New creates a console logger writing to stdout. Colors are applied only
// when useColors is set and stdout is a terminal.
func New(module string, level Level, useColors bool) *SimpleLogger {
	return NewWithWriter(module, level, useColors && stdoutIsTTY(), os.Stdout)
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(module string, level Level, useColors bool, w io.Writer) *SimpleLogger {
	return &SimpleLogger{
		module:    module,
		level:     level,
		logger:    log.New(w, "", log.LstdFlags),
		useColors: useColors,
	}
}

func stdoutIsTTY() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func (l *SimpleLogger) format(level Level, msg string, args ...interface{}) string {
	message := msg
	if len(args) > 0 {
		var pairs []string
		for i := 0; i+1 < len(args); i += 2 {
			pairs = append(pairs, fmt.Sprintf("%v=%v", args[i], args[i+1]))
		}
		if len(pairs) > 0 {
			message = msg + " " + strings.Join(pairs, " ")
		}
	}

	modulePart := "[" + l.module + "]"
	levelPart := level.String()
	if l.useColors {
		modulePart = colorCyan + modulePart + colorReset
		levelPart = colorize(level, levelPart)
	}

	return fmt.Sprintf("%s %s: %s", modulePart, levelPart, message)
}

func colorize(level Level, text string) string {
	switch level {
	case LevelDebug:
		return colorGray + text + colorReset
	case LevelInfo:
		return colorGreen + text + colorReset
	case LevelWarn:
		return colorYellow + text + colorReset
	case LevelError:
		return colorRed + text + colorReset
	default:
		return text
	}
}

func (l *SimpleLogger) log(level Level, msg string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.logger.Println(l.format(level, msg, args...))
}

// Debug logs a debug message.
func (l *SimpleLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an informational message.
func (l *SimpleLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *SimpleLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *SimpleLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// WithModule returns a logger that tags messages with a different module name.
func (l *SimpleLogger) WithModule(module string) Logger {
	return &SimpleLogger{
		module:    module,
		level:     l.level,
		logger:    l.logger,
		useColors: l.useColors,
	}
}

// Nop returns a logger that discards everything. Useful as a default in
// library code when the caller does not supply a logger.
func Nop() Logger {
	return NewWithWriter("", LevelError+1, false, io.Discard)
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)
