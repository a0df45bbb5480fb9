// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for the readiness reactor used to multiplex
// the listener and every client socket on a single dispatch goroutine.

package api

import "time"

// Interest is the set of readiness conditions a descriptor is watched for.
type Interest uint8

const (
	InterestReadable Interest = 1 << iota
	InterestWritable
)

// InterestReadWrite watches both directions.
const InterestReadWrite = InterestReadable | InterestWritable

// Event encapsulates the result of an OS-level readiness notification.
type Event struct {
	Token    ConnectionID
	Readable bool
	Writable bool
	// Error is set on hang-up or socket error; the next read surfaces the cause.
	Error bool
}

// Poller registers descriptors under caller-chosen tokens and reports which
// of them became ready. Registration is edge-triggered: a ready condition is
// reported once and the owner must drain until ErrWouldBlock.
//
// Register, Modify, Deregister and Wait must be called from one goroutine.
// Wake is the only method that may be called concurrently.
type Poller interface {
	Register(fd int, token ConnectionID, interest Interest) error
	Modify(fd int, token ConnectionID, interest Interest) error
	Deregister(fd int) error

	// Wait blocks until at least one event is ready, the timeout elapses
	// or Wake is called. A negative timeout blocks indefinitely.
	Wait(events []Event, timeout time.Duration) (int, error)

	// Wake interrupts a blocked Wait.
	Wake() error

	// Registered reports the number of live registrations.
	Registered() int

	Close() error
}
