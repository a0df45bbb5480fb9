// File: cmd/wsrelay/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// slog construction from the --log-format and --log-level flags.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// newLogger returns a slog.Logger writing text or JSON records at level.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
	return slog.New(handler), nil
}
