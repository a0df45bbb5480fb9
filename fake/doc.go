// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the Poller, Listener and
// Socket contracts so the dispatch loop can be driven without the OS.
package fake
