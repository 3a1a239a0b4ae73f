package session

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ausocean/aoctl/internal/device/camera"
	"github.com/ausocean/aoctl/internal/device/telescope"
	"github.com/ausocean/aoctl/internal/device/wfc"
	"github.com/ausocean/aoctl/internal/frame"
)

type fakeWFCDriver struct{ last []float64 }

func (d *fakeWFCDriver) Actuate(cmd []float64) error {
	d.last = append([]float64(nil), cmd...)
	return nil
}

func newTestWFC() (*wfc.WFC, *fakeWFCDriver) {
	drv := &fakeWFCDriver{}
	w := wfc.New("wfc0", 4, 4, nil, drv, testLogger())
	return w, drv
}

func TestWFCHandlerSetAndGetMaxAct(t *testing.T) {
	w, _ := newTestWFC()
	h := &WFCHandler{WFC: w, Rng: rand.New(rand.NewSource(1))}

	if _, _, err := h.Handle(nil, []string{"set", "maxact", "0.5"}); err != nil {
		t.Fatalf("set maxact: %v", err)
	}
	_, payload, err := h.Handle(nil, []string{"get", "maxact"})
	if err != nil {
		t.Fatalf("get maxact: %v", err)
	}
	if payload != "0.5" {
		t.Fatalf("got %q, want %q", payload, "0.5")
	}
}

func TestWFCHandlerActOneClampsThroughDriver(t *testing.T) {
	w, drv := newTestWFC()
	h := &WFCHandler{WFC: w, Rng: rand.New(rand.NewSource(1))}

	if _, _, err := h.Handle(nil, []string{"set", "maxact", "1"}); err != nil {
		t.Fatalf("set maxact: %v", err)
	}
	if _, _, err := h.Handle(nil, []string{"act", "one", "2", "5"}); err != nil {
		t.Fatalf("act one: %v", err)
	}
	if drv.last[2] != 1 {
		t.Fatalf("got actuator 2 = %v, want clamped to 1", drv.last[2])
	}
}

func TestWFCHandlerWaffleAlternatesSign(t *testing.T) {
	w, drv := newTestWFC()
	w.SetWaffleSets([]int{0, 2}, []int{1, 3})
	h := &WFCHandler{WFC: w, Rng: rand.New(rand.NewSource(1))}

	if _, _, err := h.Handle(nil, []string{"act", "waffle", "0.7"}); err != nil {
		t.Fatalf("act waffle: %v", err)
	}
	want := []float64{0.7, -0.7, 0.7, -0.7}
	for i, v := range want {
		if drv.last[i] != v {
			t.Fatalf("actuator %d = %v, want %v", i, drv.last[i], v)
		}
	}
}

func TestWFCHandlerUnknownCommand(t *testing.T) {
	w, _ := newTestWFC()
	h := &WFCHandler{WFC: w, Rng: rand.New(rand.NewSource(1))}
	if _, _, err := h.Handle(nil, []string{"frobnicate"}); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

type fakeTelDriver struct{ x, y float64 }

func (d *fakeTelDriver) SetTrackOffset(x, y float64) error {
	d.x, d.y = x, y
	return nil
}

func TestTelescopeHandlerSetAndGetScaleFactor(t *testing.T) {
	tel := telescope.New("tel0", &fakeTelDriver{}, testLogger())
	h := &TelescopeHandler{Tel: tel}

	if _, _, err := h.Handle(nil, []string{"set", "scalefac", "2", "3"}); err != nil {
		t.Fatalf("set scalefac: %v", err)
	}
	_, payload, err := h.Handle(nil, []string{"get", "tel_units"})
	if err != nil {
		t.Fatalf("get tel_units: %v", err)
	}
	if payload != "2 3" {
		t.Fatalf("got %q, want %q", payload, "2 3")
	}
}

func TestTelescopeHandlerSetTTGain(t *testing.T) {
	tel := telescope.New("tel0", &fakeTelDriver{}, testLogger())
	h := &TelescopeHandler{Tel: tel}

	if _, _, err := h.Handle(nil, []string{"set", "ttgain", "1", "0.1", "0.01"}); err != nil {
		t.Fatalf("set ttgain: %v", err)
	}
	_, payload, err := h.Handle(nil, []string{"get", "ttgain"})
	if err != nil {
		t.Fatalf("get ttgain: %v", err)
	}
	if payload != "1 0.1 0.01" {
		t.Fatalf("got %q, want %q", payload, "1 0.1 0.01")
	}
}

type fakeCameraAcquirer struct {
	w, h int
	next uint64
}

func newFakeCameraAcquirer(w, h int) *fakeCameraAcquirer { return &fakeCameraAcquirer{w: w, h: h} }

func (a *fakeCameraAcquirer) AcquireFrame(exposure, gain, offset float64) (*frame.Frame, error) {
	pix := make([]byte, a.w*a.h)
	f, err := frame.New(a.next, pix, frame.Depth8, a.w, a.h, time.Now())
	a.next++
	return f, err
}

func (a *fakeCameraAcquirer) Close() error { return nil }

func TestCameraHandlerSetAndGetSettings(t *testing.T) {
	acq := newFakeCameraAcquirer(4, 4)
	cam := camera.New("cam0", acq, 8, testLogger())
	h := &CameraHandler{Cam: cam}

	if _, _, err := h.Handle(nil, []string{"set", "exposure", "0.25"}); err != nil {
		t.Fatalf("set exposure: %v", err)
	}
	_, payload, err := h.Handle(nil, []string{"get", "exposure"})
	if err != nil {
		t.Fatalf("get exposure: %v", err)
	}
	if payload != "0.25" {
		t.Fatalf("got %q, want %q", payload, "0.25")
	}
}

// TestCameraHandlerSetStoreWritesFITS exercises scenario S4: "set store 3"
// arms the next three captured frames to be written to FITS files with the
// configured exposure stamped in EXPTIME, then auto-disables.
func TestCameraHandlerSetStoreWritesFITS(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "frame")

	acq := newFakeCameraAcquirer(4, 4)
	cam := camera.New("cam0", acq, 8, testLogger())
	srv := NewServer(&GlobalHandler{}, testLogger())
	h := &CameraHandler{Cam: cam, Srv: srv}

	if _, _, err := h.Handle(nil, []string{"set", "exposure", "0.5"}); err != nil {
		t.Fatalf("set exposure: %v", err)
	}
	if _, _, err := h.Handle(nil, []string{"set", "filename", prefix}); err != nil {
		t.Fatalf("set filename: %v", err)
	}
	if _, _, err := h.Handle(nil, []string{"set", "fits", "me,target1,test run"}); err != nil {
		t.Fatalf("set fits: %v", err)
	}
	if _, _, err := h.Handle(nil, []string{"set", "store", "3"}); err != nil {
		t.Fatalf("set store: %v", err)
	}
	if _, _, err := h.Handle(nil, []string{"set", "mode", "RUNNING"}); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	if err := cam.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer cam.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(prefix + "-2.fits"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for stored frames under %s", dir)
		}
		time.Sleep(5 * time.Millisecond)
	}

	for id := 0; id < 3; id++ {
		path := prefix + "-" + strconv.Itoa(id) + ".fits"
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading %s: %v", path, err)
		}
		if !bytes.Contains(b, []byte("EXPTIME")) {
			t.Fatalf("%s: missing EXPTIME header card", path)
		}
	}
}

func TestCameraHandlerSetModeUnknownRejected(t *testing.T) {
	acq := newFakeCameraAcquirer(4, 4)
	cam := camera.New("cam0", acq, 8, testLogger())
	h := &CameraHandler{Cam: cam}

	if _, _, err := h.Handle(nil, []string{"set", "mode", "bogus"}); err == nil {
		t.Fatal("expected an error for an unknown camera mode")
	}
}
