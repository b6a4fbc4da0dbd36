// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const envLogLevel = "POTTERM_LOG_LEVEL"

// setupLogging builds the process logger. Text commands log to stderr with
// a console writer; the TUI owns the screen, so it logs only to a file.
func setupLogging(level, path string, tui bool) (zerolog.Logger, error) {
	lvl := zerolog.WarnLevel
	if v, ok := parseLevel(os.Getenv(envLogLevel)); ok {
		lvl = v
	}
	if level != "" {
		v, ok := parseLevel(level)
		if !ok {
			return zerolog.Nop(), fmt.Errorf("unknown log level %q", level)
		}
		lvl = v
	}

	var out io.Writer
	switch {
	case path != "":
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
		}
		out = f
	case tui:
		return zerolog.Nop(), nil
	default:
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.WarnLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.WarnLevel, false
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
