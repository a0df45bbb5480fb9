// File: server/table.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection table keyed by poller token.

package server

import (
	"slices"
	"sync/atomic"

	"github.com/momentics/hioload-relay/api"
)

// Table maps ConnectionIDs to live connections. Only the dispatch loop
// mutates it; Len and Established may be read from any goroutine.
type Table struct {
	conns       map[api.ConnectionID]*Connection
	size        atomic.Int64
	established atomic.Int64
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{conns: make(map[api.ConnectionID]*Connection)}
}

// Insert adds c. An ID can be inserted only once while live.
func (t *Table) Insert(c *Connection) error {
	if _, ok := t.conns[c.id]; ok {
		return api.ErrAlreadyExists
	}
	t.conns[c.id] = c
	t.size.Add(1)
	return nil
}

func (t *Table) Get(id api.ConnectionID) (*Connection, bool) {
	c, ok := t.conns[id]
	return c, ok
}

// MarkEstablished counts c as established once.
func (t *Table) MarkEstablished(c *Connection) {
	if c.established {
		return
	}
	if _, ok := t.conns[c.id]; !ok {
		return
	}
	c.established = true
	t.established.Add(1)
}

// Remove deletes id and returns the removed connection.
func (t *Table) Remove(id api.ConnectionID) (*Connection, bool) {
	c, ok := t.conns[id]
	if !ok {
		return nil, false
	}
	delete(t.conns, id)
	t.size.Add(-1)
	if c.established {
		c.established = false
		t.established.Add(-1)
	}
	return c, true
}

// Range calls fn for every connection until fn returns false. fn must not
// insert or remove entries.
func (t *Table) Range(fn func(*Connection) bool) {
	for _, c := range t.conns {
		if !fn(c) {
			return
		}
	}
}

// IDs returns the live IDs in ascending order.
func (t *Table) IDs() []api.ConnectionID {
	ids := make([]api.ConnectionID, 0, len(t.conns))
	for id := range t.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *Table) Len() int         { return int(t.size.Load()) }
func (t *Table) Established() int { return int(t.established.Load()) }
