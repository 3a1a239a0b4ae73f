/*
DESCRIPTION
  perf.go implements the optional per-iteration performance logging of
  spec §4.7: named phase markers recording timestamps into a ring that
  PerfRing.Recent reads back, supplemented from original_source's performance
  instrumentation per SPEC_FULL.md §4.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package loopengine

import (
	"sync"
	"time"
)

// Marker is one named phase boundary within an iteration.
type Marker struct {
	Name string
	At   time.Time
}

// Iteration is the set of phase markers recorded for one loop iteration.
type Iteration struct {
	Kind    string // "open" or "closed"
	Start   time.Time
	Markers []Marker
}

// PerfRing is a bounded ring of recent Iterations. End and Recent share one
// mutex, so a write waits only while a Recent call copies out entries. No
// session command or export reads the ring.
type PerfRing struct {
	mu    sync.Mutex
	slots []Iteration
	next  int
	count int
}

// NewPerfRing returns a PerfRing holding up to n iterations.
func NewPerfRing(n int) *PerfRing {
	if n <= 0 {
		n = 1
	}
	return &PerfRing{slots: make([]Iteration, n)}
}

// activeMark is the in-progress marker set for one iteration, returned by
// Begin and finalised by End.
type activeMark struct {
	ring *PerfRing
	it   Iteration
}

// Begin starts recording a new iteration of the given kind.
func (r *PerfRing) Begin(kind string) *activeMark {
	return &activeMark{ring: r, it: Iteration{Kind: kind, Start: time.Now()}}
}

// Phase records a named phase boundary at the current time.
func (m *activeMark) Phase(name string) {
	m.it.Markers = append(m.it.Markers, Marker{Name: name, At: time.Now()})
}

// End finalises the iteration into the ring.
func (m *activeMark) End() {
	m.ring.mu.Lock()
	defer m.ring.mu.Unlock()
	r := m.ring
	r.slots[r.next] = m.it
	r.next = (r.next + 1) % len(r.slots)
	if r.count < len(r.slots) {
		r.count++
	}
}

// Recent returns up to n of the most recently completed iterations, most
// recent last.
func (r *PerfRing) Recent(n int) []Iteration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.count {
		n = r.count
	}
	out := make([]Iteration, n)
	for i := 0; i < n; i++ {
		idx := (r.next - n + i + len(r.slots)) % len(r.slots)
		out[i] = r.slots[idx]
	}
	return out
}
