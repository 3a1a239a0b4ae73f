package frame

import (
	"sync"
	"testing"
	"time"
)

func mustFrame(t *testing.T, id uint64) *Frame {
	t.Helper()
	f, err := New(id, []byte{1, 2, 3, 4}, Depth8, 2, 2, time.Now())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// TestRingOrdering checks invariant 1 from spec §8: for a producer sequence
// of K frames, every blocking Next(seen) call, up to the last queued id,
// returns ids strictly increasing with no duplicates. The too-old case is
// covered by TestRingTooOld.
func TestRingOrdering(t *testing.T) {
	const n = 8
	const k = 100
	r := NewRing(n)

	var wg sync.WaitGroup
	seen := make([]uint64, 0, k)
	var seenMu sync.Mutex
	wg.Add(1)
	go func() {
		defer wg.Done()
		var last uint64
		var gotFirst bool
		for last < k-1 {
			f := r.Next(last, true)
			if gotFirst && f.ID <= last {
				t.Errorf("ring: non-increasing id: got %d after %d", f.ID, last)
			}
			last = f.ID
			gotFirst = true
			seenMu.Lock()
			seen = append(seen, f.ID)
			seenMu.Unlock()
		}
	}()

	for i := uint64(0); i < k; i++ {
		r.Queue(mustFrame(t, i))
	}
	wg.Wait()

	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("ids not strictly increasing at %d: %v", i, seen)
		}
	}
}

func TestRingTooOld(t *testing.T) {
	const n = 8
	r := NewRing(n)
	for i := uint64(0); i < 20; i++ {
		r.Queue(mustFrame(t, i))
	}
	if f := r.Get(0, false); f != nil {
		t.Fatalf("Get(0) = %v, want nil (too old)", f)
	}
	if f := r.Get(19, false); f == nil || f.ID != 19 {
		t.Fatalf("Get(19) = %v, want id 19", f)
	}
}

func TestRingExactlyNBehindIsTooOld(t *testing.T) {
	const n = 8
	r := NewRing(n)
	for i := uint64(0); i < n+1; i++ {
		r.Queue(mustFrame(t, i))
	}
	// latest is id n (count = n+1); id 0 is exactly n frames behind.
	if f := r.Get(0, false); f != nil {
		t.Fatalf("Get(0) = %v, want nil (exactly N behind is too old)", f)
	}
}

func TestRingLatestEmpty(t *testing.T) {
	r := NewRing(8)
	if f := r.Latest(); f != nil {
		t.Fatalf("Latest() on empty ring = %v, want nil", f)
	}
}

func TestRingNextNonBlocking(t *testing.T) {
	r := NewRing(8)
	if f := r.Next(0, false); f != nil {
		t.Fatalf("Next(0, false) on empty ring = %v, want nil", f)
	}
	r.Queue(mustFrame(t, 0))
	if f := r.Next(0, false); f != nil {
		t.Fatalf("Next(0, false) after seeing id 0 = %v, want nil (nothing newer)", f)
	}
	r.Queue(mustFrame(t, 1))
	if f := r.Next(0, false); f == nil || f.ID != 1 {
		t.Fatalf("Next(0, false) = %v, want id 1", f)
	}
}
