//go:build !linux
// +build !linux

// File: internal/transport/transport_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub for platforms without the epoll-based stack.

package transport

import (
	"fmt"

	"github.com/momentics/hioload-relay/api"
)

// Listen is not supported on this platform.
func Listen(addr string) (api.Listener, error) {
	return nil, fmt.Errorf("listen %s: %w", addr, api.ErrNotSupported)
}
