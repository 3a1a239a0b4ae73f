package shiftengine

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/ausocean/aoctl/internal/frame"
)

func makeDeltaFrame(t *testing.T, w, h int, deltas map[Rect][2]int) *frame.Frame {
	t.Helper()
	pix := make([]byte, w*h)
	for rect, d := range deltas {
		cx, cy := rect.center()
		x := int(cx) + d[0]
		y := int(cy) + d[1]
		pix[y*w+x] = 255
	}
	f, err := frame.New(0, pix, frame.Depth8, w, h, time.Now())
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	return f
}

// TestCOGCorrectness checks spec §8 invariant 2: a single delta within a
// subimage is recovered exactly (to floating point roundoff) by COG.
func TestCOGCorrectness(t *testing.T) {
	rects := []Rect{{0, 0, 10, 10}, {10, 0, 20, 10}, {0, 10, 10, 20}, {10, 10, 20, 20}}
	deltas := map[Rect][2]int{
		rects[0]: {2, -1},
		rects[1]: {-3, 0},
		rects[2]: {0, 4},
		rects[3]: {1, 1},
	}
	f := makeDeltaFrame(t, 20, 20, deltas)

	e := New(4)
	out := e.Dispatch(f, rects, COG, 1, 100, 0)

	for i, r := range rects {
		want := deltas[r]
		dx, dy := out[2*i], out[2*i+1]
		if math.Abs(dx-float64(want[0])) > 1e-9 || math.Abs(dy-float64(want[1])) > 1e-9 {
			t.Errorf("rect %d: got (%v,%v), want (%v,%v)", i, dx, dy, want[0], want[1])
		}
	}
}

// TestCOGClamp checks shifts are clamped to [-maxShift, maxShift].
func TestCOGClamp(t *testing.T) {
	rects := []Rect{{0, 0, 10, 10}}
	f := makeDeltaFrame(t, 10, 10, map[Rect][2]int{rects[0]: {4, 0}})
	e := New(2)
	out := e.Dispatch(f, rects, COG, 1, 2, 0)
	if out[0] != 2 {
		t.Fatalf("dx = %v, want clamped to 2", out[0])
	}
}

// TestSafetyNoDoubleWrite runs a burst of random frames with W>=2 workers
// and checks every output element is written exactly once per call (spec
// §8 invariant 3), detected by requiring every subimage slot to hold
// exactly the shift of that subimage's own delta.
func TestSafetyNoDoubleWrite(t *testing.T) {
	const iterations = 2000
	const nsub = 16
	rects := make([]Rect, nsub)
	for i := range rects {
		x := (i % 4) * 10
		y := (i / 4) * 10
		rects[i] = Rect{x, y, x + 10, y + 10}
	}

	e := New(4)
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < iterations; iter++ {
		pix := make([]byte, 40*40)
		deltas := make(map[Rect][2]int, nsub)
		for _, r := range rects {
			cx, cy := r.center()
			dx := rng.Intn(5) - 2
			dy := rng.Intn(5) - 2
			x := int(cx) + dx
			y := int(cy) + dy
			pix[y*40+x] = 200
			deltas[r] = [2]int{dx, dy}
		}
		f, err := frame.New(uint64(iter), pix, frame.Depth8, 40, 40, time.Now())
		if err != nil {
			t.Fatalf("frame.New: %v", err)
		}
		out := e.Dispatch(f, rects, COG, 1, 100, 0)
		if len(out) != 2*nsub {
			t.Fatalf("iter %d: out len = %d, want %d", iter, len(out), 2*nsub)
		}
		for i, r := range rects {
			want := deltas[r]
			if math.Abs(out[2*i]-float64(want[0])) > 1e-9 || math.Abs(out[2*i+1]-float64(want[1])) > 1e-9 {
				t.Fatalf("iter %d rect %d: got (%v,%v), want %v (possible race/double-write)", iter, i, out[2*i], out[2*i+1], want)
			}
		}
	}
}
