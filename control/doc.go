// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer of the relay.
//
// The dispatch loop is the single writer of connection state; everything in
// this package is read from other goroutines (metric scrapes, the admin HTTP
// server) and is therefore concurrency-safe:
//   - Prometheus collectors owned by a private registry
//   - named debug probes dumped as JSON
//   - the admin router serving both
package control
