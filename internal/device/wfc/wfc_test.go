package wfc

import (
	"io"
	"math/rand"
	"testing"

	"github.com/ausocean/utils/logging"
)

type fakeDriver struct {
	lastCmd []float64
}

func (d *fakeDriver) Actuate(cmd []float64) error {
	d.lastCmd = append([]float64(nil), cmd...)
	return nil
}

func newTestWFC(nvirt, nreal int, m ActMap) (*WFC, *fakeDriver) {
	d := &fakeDriver{}
	w := New("wfc0", nvirt, nreal, m, d, logging.New(logging.Debug, io.Discard, false))
	return w, d
}

// TestClamping checks spec §8 invariant 4: after UpdateControl, every
// element of ctrl_vec+offset satisfies |t+o| <= maxact once actuated.
func TestClamping(t *testing.T) {
	w, d := newTestWFC(4, 4, nil)
	w.SetMaxAct(1.0)
	w.SetGain(Gain{P: 10})
	if err := w.SetOffset(0, []float64{0.5, -0.5, 0, 0}); err != nil {
		t.Fatalf("SetOffset: %v", err)
	}
	errv := []float64{1, -1, 2, -2}
	if err := w.UpdateControl(errv, 0); err != nil {
		t.Fatalf("UpdateControl: %v", err)
	}
	w.ApplyActMap()
	if err := w.Actuate(); err != nil {
		t.Fatalf("Actuate: %v", err)
	}
	for i, c := range d.lastCmd {
		if c > 1.0+1e-9 || c < -1.0-1e-9 {
			t.Fatalf("cmd[%d] = %v, exceeds maxact 1.0", i, c)
		}
	}
}

// TestActMapFanOut checks spec §8 invariant 5: mapping virtual mode 0 to
// {a,b,c} broadcasts target[0] to exactly those real actuators.
func TestActMapFanOut(t *testing.T) {
	m := ActMap{0: {0, 2, 4}}
	w, _ := newTestWFC(1, 5, m)
	w.SetMaxAct(100)
	w.SetGain(Gain{P: 1})
	if err := w.UpdateControl([]float64{0.7}, 0); err != nil {
		t.Fatalf("UpdateControl: %v", err)
	}
	w.ApplyActMap()
	ctrl := w.Ctrl()
	want := []float64{0.7, 0, 0.7, 0, 0.7}
	for i := range want {
		if ctrl[i] != want[i] {
			t.Fatalf("ctrl[%d] = %v, want %v (ctrl=%v)", i, ctrl[i], want[i], ctrl)
		}
	}
}

// TestWaffle checks spec §8 invariant 6: waffle yields +v on even set,
// -v on odd set, 0 elsewhere, regardless of the current actuation map.
func TestWaffle(t *testing.T) {
	m := ActMap{0: {0, 1, 2, 3, 4, 5}}
	w, _ := newTestWFC(1, 6, m)
	w.SetWaffleSets([]int{0, 2, 4}, []int{1, 3, 5})
	if err := w.SetWafflePattern(0.5); err != nil {
		t.Fatalf("SetWafflePattern: %v", err)
	}
	ctrl := w.Ctrl()
	want := []float64{0.5, -0.5, 0.5, -0.5, 0.5, -0.5}
	for i := range want {
		if ctrl[i] != want[i] {
			t.Fatalf("ctrl[%d] = %v, want %v", i, ctrl[i], want[i])
		}
	}
}

func TestRandomPatternBounded(t *testing.T) {
	w, _ := newTestWFC(8, 8, nil)
	rng := rand.New(rand.NewSource(7))
	w.SetRandomPattern(0.3, rng)
	for _, c := range w.Ctrl() {
		if c < -0.3 || c > 0.3 {
			t.Fatalf("random pattern value %v out of [-0.3,0.3]", c)
		}
	}
}

func TestResetZeroes(t *testing.T) {
	w, d := newTestWFC(4, 4, nil)
	w.SetGain(Gain{P: 1})
	w.SetMaxAct(10)
	if err := w.UpdateControl([]float64{1, 2, 3, 4}, 0); err != nil {
		t.Fatalf("UpdateControl: %v", err)
	}
	w.ApplyActMap()
	if err := w.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for _, c := range d.lastCmd {
		if c != 0 {
			t.Fatalf("reset command = %v, want all zero", d.lastCmd)
		}
	}
}
