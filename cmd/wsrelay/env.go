// File: cmd/wsrelay/env.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WSRELAY_* environment defaults for the serve flags.

package main

import (
	"strconv"
	"strings"

	"github.com/momentics/hioload-relay/server"
)

const envPrefix = "WSRELAY_"

// serveOptions is the flag set of the serve command.
type serveOptions struct {
	host            string
	port            int
	adminAddr       string
	noReflect       bool
	maxMessageSize  int64
	maxPendingBytes int
	logFormat       string
	logLevel        string
}

// envDefaults starts from server.DefaultConfig and applies WSRELAY_*
// variables. Unparsable values keep the default.
func envDefaults(getenv func(string) string) serveOptions {
	cfg := server.DefaultConfig()
	return serveOptions{
		host:            envString(getenv, "HOST", cfg.Host),
		port:            envInt(getenv, "PORT", cfg.Port),
		adminAddr:       envString(getenv, "ADMIN_ADDR", "127.0.0.1:9090"),
		noReflect:       envBool(getenv, "NO_REFLECT", !cfg.ReflectToSender),
		maxMessageSize:  int64(envInt(getenv, "MAX_MESSAGE_SIZE", int(cfg.MaxMessageSize))),
		maxPendingBytes: envInt(getenv, "MAX_PENDING_BYTES", cfg.MaxPendingBytes),
		logFormat:       envString(getenv, "LOG_FORMAT", "text"),
		logLevel:        envString(getenv, "LOG_LEVEL", "info"),
	}
}

func (o serveOptions) config() *server.Config {
	cfg := server.DefaultConfig()
	cfg.Host = o.host
	cfg.Port = o.port
	cfg.ReflectToSender = !o.noReflect
	cfg.MaxMessageSize = o.maxMessageSize
	cfg.MaxPendingBytes = o.maxPendingBytes
	return cfg
}

func envString(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(envPrefix + key)); v != "" {
		return v
	}
	return def
}

func envInt(getenv func(string) string, key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(getenv(envPrefix + key))); err == nil {
		return v
	}
	return def
}

func envBool(getenv func(string) string, key string, def bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(getenv(envPrefix + key))); err == nil {
		return v
	}
	return def
}
