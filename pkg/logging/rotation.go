package logging

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig contains file logging rotation settings.
type RotationConfig struct {
	Path       string // log file path (required)
	MaxSizeMB  int    // megabytes before rotation (default: 100)
	MaxBackups int    // old files to retain (default: 3)
	MaxAge     int    // days to retain old files (default: 28)
	Compress   bool   // compress rotated files (default: false)
}

// NewWithRotation creates a logger that writes to both stdout and a
// size-rotated file. Colors are disabled so the file stays free of ANSI
// escape codes. A nil config (or empty path) yields a console-only logger.
func NewWithRotation(module string, level Level, useColors bool, rotation *RotationConfig) (*SimpleLogger, error) {
	if rotation == nil || rotation.Path == "" {
		return New(module, level, useColors), nil
	}

	maxSizeMB := rotation.MaxSizeMB
	if maxSizeMB == 0 {
		maxSizeMB = 100
	}

	maxBackups := rotation.MaxBackups
	if maxBackups == 0 {
		maxBackups = 3
	}

	maxAge := rotation.MaxAge
	if maxAge == 0 {
		maxAge = 28
	}

	fileWriter := &lumberjack.Logger{
		Filename:   rotation.Path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   rotation.Compress,
	}

	return NewWithWriter(module, level, false, io.MultiWriter(os.Stdout, fileWriter)), nil
}
