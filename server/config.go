// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Relay configuration and validation.

package server

import (
	"net"
	"strconv"

	"github.com/momentics/hioload-relay/api"
	"github.com/momentics/hioload-relay/protocol"
)

// Config holds all relay configuration parameters.
type Config struct {
	Host string // bind host, e.g. "127.0.0.1"
	Port int    // bind port; 0 picks an ephemeral port

	// ReflectToSender delivers each message back to its sender as well.
	ReflectToSender bool

	MaxMessageSize    int64 // largest accepted frame payload
	MaxHandshakeBytes int   // largest accepted upgrade request
	MaxPendingBytes   int   // per-connection outbound queue limit

	EventBatch       int // readiness events fetched per wait
	ReadBufferSize   int // bytes read from a socket per call
	MessagesPerEvent int // results drained from one connection per wakeup
}

// DefaultConfig returns the relay defaults: 127.0.0.1:9001,
// messages echoed back to their sender.
func DefaultConfig() *Config {
	return &Config{
		Host:              "127.0.0.1",
		Port:              9001,
		ReflectToSender:   true,
		MaxMessageSize:    protocol.DefaultMaxPayload,
		MaxHandshakeBytes: protocol.DefaultMaxHandshakeBytes,
		MaxPendingBytes:   4 << 20,
		EventBatch:        128,
		ReadBufferSize:    64 * 1024,
		MessagesPerEvent:  64,
	}
}

// Addr returns the host:port the listener binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return invalidField("port", c.Port)
	case c.MaxMessageSize <= 0:
		return invalidField("max_message_size", c.MaxMessageSize)
	case c.MaxHandshakeBytes <= 0:
		return invalidField("max_handshake_bytes", c.MaxHandshakeBytes)
	case c.MaxPendingBytes <= 0:
		return invalidField("max_pending_bytes", c.MaxPendingBytes)
	case c.EventBatch <= 0:
		return invalidField("event_batch", c.EventBatch)
	case c.ReadBufferSize <= 0:
		return invalidField("read_buffer_size", c.ReadBufferSize)
	case c.MessagesPerEvent <= 0:
		return invalidField("messages_per_event", c.MessagesPerEvent)
	}
	return nil
}

func invalidField(name string, value any) error {
	return api.NewError(api.ErrCodeInvalidArgument, "invalid relay config").
		WithContext("field", name).
		WithContext("value", value).
		Wrap(api.ErrInvalidArgument)
}
