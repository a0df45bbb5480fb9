// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Named state probes read by the admin surface. The relay registers probes
// over its atomic mirrors (table size, registrations, next ID), so a probe
// runs on an HTTP goroutine while the dispatch loop keeps going.

package control

import (
	"fmt"
	"sort"
	"sync"
)

// ProbeFunc reports one value. It must only read concurrency-safe state.
type ProbeFunc func() any

// DebugProbes is a registry of named probes.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]ProbeFunc
}

// NewDebugProbes creates an empty registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{probes: make(map[string]ProbeFunc)}
}

// RegisterProbe adds fn under name, replacing any previous probe.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	dp.probes[name] = fn
	dp.mu.Unlock()
}

// Names returns the registered probe names in sorted order.
func (dp *DebugProbes) Names() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	names := make([]string, 0, len(dp.probes))
	for k := range dp.probes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Probe evaluates a single probe. ok is false for an unknown name.
func (dp *DebugProbes) Probe(name string) (v any, ok bool) {
	dp.mu.RLock()
	fn, ok := dp.probes[name]
	dp.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return evaluate(fn), true
}

// DumpState evaluates every probe. Probes run outside the registry lock, so
// a probe may itself register or read probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	snapshot := make(map[string]ProbeFunc, len(dp.probes))
	for k, fn := range dp.probes {
		snapshot[k] = fn
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(snapshot))
	for k, fn := range snapshot {
		out[k] = evaluate(fn)
	}
	return out
}

// evaluate runs fn, turning a panic into an error string.
func evaluate(fn ProbeFunc) (v any) {
	defer func() {
		if r := recover(); r != nil {
			v = fmt.Sprintf("probe failed: %v", r)
		}
	}()
	return fn()
}
