// Copyright (c) 2024 The spvnode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log adapts decred/slog, the leveled-logger interface used
// across the btcsuite/decred family, to a subsystem-tagged logger that
// writes to stderr and, once initialized, a rotated log file on disk.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Level orders the verbosity of a subsystem logger from most to least
// noisy.
type Level = slog.Level

const (
	LevelTrace    = slog.LevelTrace
	LevelDebug    = slog.LevelDebug
	LevelInfo     = slog.LevelInfo
	LevelWarn     = slog.LevelWarn
	LevelError    = slog.LevelError
	LevelCritical = slog.LevelCritical
	LevelOff      = slog.LevelOff
)

// LevelFromString parses the level names accepted by the --debuglevel
// flag, defaulting to LevelInfo on an unrecognized string.
func LevelFromString(s string) Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "critical":
		return LevelCritical
	case "off":
		return LevelOff
	default:
		return LevelInfo
	}
}

// Logger wraps a slog.Logger for one subsystem, adding a deep-dump
// helper for trace-level diagnostics.
type Logger struct {
	slog.Logger
}

// NewLogger returns a Logger for subsystem, writing through backend at
// level.
func NewLogger(subsystem string, level Level, backend io.Writer) *Logger {
	l := slog.NewBackend(backend).Logger(subsystem)
	l.SetLevel(level)
	return &Logger{Logger: l}
}

// TraceDump logs a deep dump of v under label, skipping the (often
// expensive) Sdump call entirely when trace logging isn't enabled.
func (l *Logger) TraceDump(label string, v interface{}) {
	if l.Level() > LevelTrace {
		return
	}
	l.Tracef("%s:\n%s", label, spew.Sdump(v))
}

// Backend fans log output out to stderr and a rotated on-disk file.
type Backend struct {
	rotator     *rotator.Rotator
	slogBackend *slog.Backend
}

// NewBackend opens logFile (creating its directory if needed) for
// rotated writing, keeping up to maxRolls old logs alongside it, and
// tees every write to stderr as well.
func NewBackend(logFile string, maxRolls int) (*Backend, error) {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	r, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w", err)
	}

	return &Backend{
		rotator:     r,
		slogBackend: slog.NewBackend(io.MultiWriter(os.Stderr, r)),
	}, nil
}

// Logger returns a Logger for subsystem bound to this backend.
func (b *Backend) Logger(subsystem string, level Level) *Logger {
	l := b.slogBackend.Logger(subsystem)
	l.SetLevel(level)
	return &Logger{Logger: l}
}

// Close flushes and closes the underlying rotator.
func (b *Backend) Close() {
	if b.rotator != nil {
		b.rotator.Close()
	}
}
