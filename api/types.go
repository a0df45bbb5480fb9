// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import "strconv"

// ConnectionID identifies one Poller registration and one connection table slot.
// IDs are allocated monotonically and never reused.
type ConnectionID uint64

// ListenerID is the token reserved for the listening socket.
const ListenerID ConnectionID = 0

// FirstConnectionID is the first token handed to an accepted connection.
const FirstConnectionID ConnectionID = 1

func (id ConnectionID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
