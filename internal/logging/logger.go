// Package logging builds the process slog.Logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Params struct {
	Level      string
	JSON       bool
	File       string
	ToStdout   bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a logger writing to stdout, to a rotating file, or both. The
// returned closer releases the log file and is never nil.
func New(p Params) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}

	if p.File != "" {
		if !strings.HasSuffix(p.File, ".log") {
			p.File += ".log"
		}
		lj := &lumberjack.Logger{
			Filename:   p.File,
			MaxSize:    p.MaxSizeMB, // megabytes
			MaxBackups: p.MaxBackups,
			MaxAge:     p.MaxAgeDays,
			Compress:   true,
		}
		closer = lj
		out = lj
		if p.ToStdout {
			out = io.MultiWriter(os.Stdout, lj)
		}
	}

	return slog.New(NewHandler(out, p.Level, p.JSON)), closer
}

// NewHandler creates a text or JSON handler at the named level.
func NewHandler(w io.Writer, level string, json bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: Level(level)}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Level maps a config level name to a slog level. Unknown names map to info.
func Level(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
