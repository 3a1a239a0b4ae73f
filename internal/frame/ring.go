/*
DESCRIPTION
  ring.go provides FrameRing, a bounded, lock-protected circular buffer of
  Frames. One producer (a camera's capture thread) queues frames; any
  number of readers ask for the latest frame, a specific id, or block for
  the next frame after one they've already seen.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package frame

import "sync"

// Default and bounds for ring size.
const (
	DefaultSize = 16
	MinSize     = 8
	MaxSize     = 32
)

// FrameRing is a bounded circular buffer of N slots. Slot i holds the
// frame whose id is congruent to i (mod N). At most one goroutine ever
// calls Queue; any number of goroutines may call the read methods
// concurrently.
type FrameRing struct {
	mu    sync.Mutex
	cond  *sync.Cond // broadcast by Queue, waited on by Next(blocking=true)
	slots []*Frame
	count uint64 // number of frames ever queued; next id to assign
}

// NewRing returns a FrameRing with n slots, clamped to [MinSize, MaxSize].
func NewRing(n int) *FrameRing {
	if n < MinSize {
		n = MinSize
	}
	if n > MaxSize {
		n = MaxSize
	}
	r := &FrameRing{slots: make([]*Frame, n)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Queue is the producer call. f.ID is overwritten with the next sequence
// id. The Frame previously held at that slot (or nil, if the ring has not
// wrapped yet) is returned so the camera can recycle its backing store.
func (r *FrameRing) Queue(f *Frame) (evicted *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.count
	f.ID = id
	slot := int(id) % len(r.slots)
	evicted = r.slots[slot]
	r.slots[slot] = f
	r.count++
	r.cond.Broadcast()
	return evicted
}

// Latest returns the most recently queued frame, or nil if the ring is
// empty.
func (r *FrameRing) Latest() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	return r.slots[int(r.count-1)%len(r.slots)]
}

// Next returns the first frame with id > seen. If blocking is true, it
// waits on the ring's condition until one becomes available; otherwise it
// returns nil immediately if none is yet queued. A reader that has fallen
// more than len(slots) frames behind never sees seen+1 directly here: the
// slot may already have been overwritten by a newer frame, in which case
// that newer frame (correctly, still > seen) is returned instead.
func (r *FrameRing) Next(seen uint64, blocking bool) *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count <= seen+1 {
		if !blocking {
			return nil
		}
		r.cond.Wait()
	}
	return r.slots[int(seen+1)%len(r.slots)]
}

// Get returns the slot holding id, or nil if that id is too old (evicted)
// or, when non-blocking, not yet queued. When blocking is true and id has
// not yet been queued, Get waits for it.
func (r *FrameRing) Get(id uint64, blocking bool) *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id >= r.count {
		if !blocking {
			return nil
		}
		r.cond.Wait()
	}
	if id < r.overflowFloor() {
		return nil // too old: evicted by wraparound
	}
	f := r.slots[int(id)%len(r.slots)]
	if f == nil || f.ID != id {
		return nil
	}
	return f
}

// overflowFloor returns the oldest id still guaranteed to be present.
// A consumer exactly len(slots) frames behind has, by definition, had its
// slot overwritten, so it is treated as too old rather than risking an
// off-by-one return of stale data.
func (r *FrameRing) overflowFloor() uint64 {
	n := uint64(len(r.slots))
	if r.count <= n {
		return 0
	}
	return r.count - n
}

// Count returns the number of frames ever queued.
func (r *FrameRing) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Len returns the number of slots in the ring.
func (r *FrameRing) Len() int { return len(r.slots) }
