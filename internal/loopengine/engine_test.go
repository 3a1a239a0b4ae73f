package loopengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ausocean/aoctl/internal/device/wfs"
	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/aoctl/internal/reconstruct"
)

type fakeCamera struct{ ring *frame.FrameRing }

func (c *fakeCamera) Ring() *frame.FrameRing { return c.ring }

type fakeWFS struct {
	measureErr error
	ctrlCmd    []float64
	shiftEst   []float64
}

func (w *fakeWFS) Measure(f *frame.Frame) (wfs.WFInfo, error) {
	if w.measureErr != nil {
		return wfs.WFInfo{}, w.measureErr
	}
	return wfs.WFInfo{WFAmp: []float64{1, 2}}, nil
}

func (w *fakeWFS) CompCtrlCmd(wfcname string, shift []float64, inputBasis reconstruct.Basis, t *reconstruct.Transform) ([]float64, error) {
	return w.ctrlCmd, nil
}

func (w *fakeWFS) CompShift(wfcname string, act []float64) ([]float64, error) {
	return w.shiftEst, nil
}

type fakeWFC struct {
	updated bool
	actuated bool
	ctrl    []float64
}

func (w *fakeWFC) Name() string { return "wfc0" }
func (w *fakeWFC) UpdateControl(errIn []float64, retain float64) error {
	w.updated = true
	return nil
}
func (w *fakeWFC) ApplyActMap() {}
func (w *fakeWFC) Actuate() error {
	w.actuated = true
	return nil
}
func (w *fakeWFC) Ctrl() []float64 { return w.ctrl }

type fakeTelescope struct{ x, y float64 }

func (t *fakeTelescope) SetTrackOffset(x, y float64) error {
	t.x, t.y = x, y
	return nil
}

func queueFrame(r *frame.FrameRing) {
	pix := make([]byte, 4)
	f, _ := frame.New(0, pix, frame.Depth8, 2, 2, time.Now())
	r.Queue(f)
}

func TestOpenIterationDoesNotActuate(t *testing.T) {
	ring := frame.NewRing(8)
	queueFrame(ring)
	cam := &fakeCamera{ring: ring}
	ws := &fakeWFS{ctrlCmd: []float64{0.1}, shiftEst: []float64{1, 1}}
	wc := &fakeWFC{ctrl: []float64{0.1}}
	tel := &fakeTelescope{}

	e := New(cam, ws, wc, tel, nil, 1, noopLogger{})
	if err := e.openIteration(context.Background()); err != nil {
		t.Fatalf("openIteration: %v", err)
	}
	if wc.updated || wc.actuated {
		t.Fatal("open loop must not actuate the WFC")
	}
	if tel.x != 1 || tel.y != 1 {
		t.Fatalf("got tip/tilt (%v,%v), want (1,1)", tel.x, tel.y)
	}
}

func TestClosedIterationActuates(t *testing.T) {
	ring := frame.NewRing(8)
	queueFrame(ring)
	cam := &fakeCamera{ring: ring}
	ws := &fakeWFS{ctrlCmd: []float64{0.1}, shiftEst: []float64{1, 1}}
	wc := &fakeWFC{ctrl: []float64{0.1}}
	tel := &fakeTelescope{}

	e := New(cam, ws, wc, tel, nil, 1, noopLogger{})
	if err := e.closedIteration(context.Background()); err != nil {
		t.Fatalf("closedIteration: %v", err)
	}
	if !wc.updated || !wc.actuated {
		t.Fatal("closed loop must update and actuate the WFC")
	}
}

func TestIterationFailureDoesNotPanic(t *testing.T) {
	old := MissedFrameBudget
	MissedFrameBudget = 20 * time.Millisecond
	defer func() { MissedFrameBudget = old }()

	ring := frame.NewRing(8)
	cam := &fakeCamera{ring: ring} // empty ring -> missed-frame budget
	ws := &fakeWFS{measureErr: errors.New("boom")}
	wc := &fakeWFC{}
	tel := &fakeTelescope{}

	e := New(cam, ws, wc, tel, nil, 1, noopLogger{})
	e.lastSeen = 0
	start := time.Now()
	err := e.openIteration(context.Background())
	if err == nil {
		t.Fatal("expected an error from an empty ring")
	}
	if time.Since(start) > time.Second {
		t.Fatal("openIteration took far longer than the missed-frame budget")
	}
}

func TestPerfRingRecentOrder(t *testing.T) {
	r := NewPerfRing(2)
	for _, kind := range []string{"a", "b", "c"} {
		m := r.Begin(kind)
		m.Phase("x")
		m.End()
	}
	recent := r.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("got %d iterations, want 2", len(recent))
	}
	if recent[0].Kind != "b" || recent[1].Kind != "c" {
		t.Fatalf("got kinds %q,%q, want b,c", recent[0].Kind, recent[1].Kind)
	}
}

type noopLogger struct{}

func (noopLogger) Log(l int8, m string, a ...interface{})  {}
func (noopLogger) SetLevel(l int8)                         {}
func (noopLogger) Debug(msg string, args ...interface{})   {}
func (noopLogger) Info(msg string, args ...interface{})    {}
func (noopLogger) Warning(msg string, args ...interface{}) {}
func (noopLogger) Error(msg string, args ...interface{})   {}
func (noopLogger) Fatal(msg string, args ...interface{})   {}
