// Package logging configures colored structured logging with tint.
//
// Usage:
//
//	logging.Setup(logging.Options{Level: "debug"})
//	logging.Setup(logging.Options{Level: "info", File: "/var/log/workaholic.log"})
//
// When File is set, output goes to a size-rotated file (lumberjack) without
// color codes; otherwise colored output goes to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much is logged.
type Options struct {
	// Level is one of debug, info, warn, error (default: info).
	Level string
	// File, if non-empty, enables rotated file output.
	File string
	// MaxSizeMB is the rotation threshold for File (default: 10).
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept (default: 3).
	MaxBackups int
}

// Setup installs a tint handler as the slog default and returns the logger.
// The returned closer flushes and closes the log file, if any.
func Setup(opts Options) (*slog.Logger, io.Closer) {
	var (
		w       io.Writer = os.Stderr
		closer  io.Closer = nopCloser{}
		noColor           = false
	)
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			Compress:   true,
		}
		w, closer, noColor = lj, lj, true
	}

	logger := New(w, ParseLevel(opts.Level), noColor)
	slog.SetDefault(logger)
	return logger, closer
}

// New builds a tint logger writing to w.
func New(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level == slog.LevelDebug,
		NoColor:    noColor,
	}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(tint.NewHandler(io.Discard, nil))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
