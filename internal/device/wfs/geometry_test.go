package wfs

import (
	"testing"

	"github.com/ausocean/aoctl/internal/shiftengine"
)

func TestAddSubimageRejectsHeavyOverlap(t *testing.T) {
	w := New("wfs0", nil, nil)
	if err := w.AddSubimage(shiftengine.Rect{LX: 0, LY: 0, TX: 10, TY: 10}); err != nil {
		t.Fatalf("AddSubimage first: %v", err)
	}
	// Overlaps the first rectangle by 90% of its own area.
	if err := w.AddSubimage(shiftengine.Rect{LX: 1, LY: 0, TX: 11, TY: 10}); err == nil {
		t.Fatal("expected overlap rejection")
	}
	if got := len(w.Geometry()); got != 1 {
		t.Fatalf("got %d subimages after rejected add, want 1", got)
	}
}

func TestAddSubimageAcceptsDisjointRect(t *testing.T) {
	w := New("wfs0", nil, nil)
	if err := w.AddSubimage(shiftengine.Rect{LX: 0, LY: 0, TX: 10, TY: 10}); err != nil {
		t.Fatalf("AddSubimage first: %v", err)
	}
	if err := w.AddSubimage(shiftengine.Rect{LX: 20, LY: 20, TX: 30, TY: 30}); err != nil {
		t.Fatalf("AddSubimage disjoint: %v", err)
	}
	if got := len(w.Geometry()); got != 2 {
		t.Fatalf("got %d subimages, want 2", got)
	}
}

func TestAddSubimageRejectsInvalidRect(t *testing.T) {
	w := New("wfs0", nil, nil)
	if err := w.AddSubimage(shiftengine.Rect{LX: 10, LY: 0, TX: 5, TY: 10}); err == nil {
		t.Fatal("expected error for LX >= TX")
	}
}

func TestDelSubimageRemovesMatchingReferenceEntry(t *testing.T) {
	w := New("wfs0", nil, nil)
	if err := w.AddSubimage(shiftengine.Rect{LX: 0, LY: 0, TX: 10, TY: 10}); err != nil {
		t.Fatalf("AddSubimage: %v", err)
	}
	if err := w.AddSubimage(shiftengine.Rect{LX: 20, LY: 20, TX: 30, TY: 30}); err != nil {
		t.Fatalf("AddSubimage: %v", err)
	}
	if err := w.DelSubimage(0); err != nil {
		t.Fatalf("DelSubimage: %v", err)
	}
	rects := w.Geometry()
	if len(rects) != 1 || rects[0].LX != 20 {
		t.Fatalf("got %+v, want the second rectangle only", rects)
	}
	if got := len(w.Reference()); got != 2 {
		t.Fatalf("got reference vector of length %d, want 2", got)
	}
}

func TestDelSubimageOutOfRange(t *testing.T) {
	w := New("wfs0", nil, nil)
	if err := w.DelSubimage(0); err == nil {
		t.Fatal("expected out-of-range error on empty geometry")
	}
}

func TestContainedInRejectsOutOfBoundsRect(t *testing.T) {
	rects := []shiftengine.Rect{{LX: 0, LY: 0, TX: 10, TY: 10}, {LX: 5, LY: 5, TX: 40, TY: 15}}
	if err := ContainedIn(rects, 32, 32); err == nil {
		t.Fatal("expected bounds error")
	}
}

func TestContainedInAcceptsFittingRects(t *testing.T) {
	rects := []shiftengine.Rect{{LX: 0, LY: 0, TX: 10, TY: 10}, {LX: 10, LY: 10, TX: 20, TY: 20}}
	if err := ContainedIn(rects, 32, 32); err != nil {
		t.Fatalf("ContainedIn: %v", err)
	}
}

func TestGenerateGridProducesNonOverlappingLattice(t *testing.T) {
	rects := GenerateGrid(GridParams{
		FrameW: 64, FrameH: 64,
		SubW: 8, SubH: 8,
		PitchX: 8, PitchY: 8,
		Shape:   Circular,
		Overlap: 0.99,
	})
	if len(rects) == 0 {
		t.Fatal("expected at least one subimage from a full-frame circular grid")
	}
	for _, r := range rects {
		if r.LX < 0 || r.LY < 0 || r.TX > 64 || r.TY > 64 {
			t.Fatalf("rect %+v falls outside the frame", r)
		}
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if ov := rectOverlapArea(rects[i], rects[j]); ov != 0 {
				t.Fatalf("rects %+v and %+v overlap by %v", rects[i], rects[j], ov)
			}
		}
	}
}
