// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking TCP primitives for the relay. Sockets are created with
// SOCK_NONBLOCK and driven entirely by readiness events; every call that
// cannot make progress returns api.ErrWouldBlock instead of parking the
// caller. Linux only; other platforms get a stub reporting ErrNotSupported.

package transport
