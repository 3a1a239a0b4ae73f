package camera

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/utils/logging"
)

type fakeAcquirer struct {
	mu     sync.Mutex
	next   uint64
	w, h   int
	closed bool
}

func newFakeAcquirer(w, h int) *fakeAcquirer { return &fakeAcquirer{w: w, h: h} }

func (f *fakeAcquirer) AcquireFrame(exposure, gain, offset float64) (*frame.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pix := make([]byte, f.w*f.h)
	fr, err := frame.New(f.next, pix, frame.Depth8, f.w, f.h, time.Now())
	f.next++
	return fr, err
}

func (f *fakeAcquirer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func testLogger() logging.Logger {
	return logging.New(logging.Debug, io.Discard, false)
}

func TestCaptureLoopRunningQueuesFrames(t *testing.T) {
	acq := newFakeAcquirer(4, 4)
	c := New("cam0", acq, 8, testLogger())
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.SetMode(Running)

	deadline := time.Now().Add(time.Second)
	for c.Ring().Count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.Ring().Count() < 3 {
		t.Fatalf("expected at least 3 frames queued, got %d", c.Ring().Count())
	}

	c.SetMode(Off)
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !acq.closed {
		t.Fatal("expected acquirer to be closed on Stop")
	}
}

func TestCaptureLoopSingleReturnsToWaiting(t *testing.T) {
	acq := newFakeAcquirer(4, 4)
	c := New("cam0", acq, 8, testLogger())
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.SetMode(Single)

	deadline := time.Now().Add(time.Second)
	for c.Mode() == Single && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.Mode() != Waiting {
		t.Fatalf("got mode %v, want %v", c.Mode(), Waiting)
	}
	if c.Ring().Count() != 1 {
		t.Fatalf("got %d frames, want exactly 1", c.Ring().Count())
	}
	c.Stop()
}

func TestSetSettingsInvalidatesDarkFlatOnExposureChange(t *testing.T) {
	acq := newFakeAcquirer(4, 4)
	c := New("cam0", acq, 8, testLogger())
	c.SetSettings(Settings{Exposure: 1})
	if err := c.AccumulateDark(2); err != nil {
		t.Fatalf("AccumulateDark: %v", err)
	}
	if c.dark.n != 2 {
		t.Fatalf("got %d dark frames accumulated, want 2", c.dark.n)
	}
	c.SetSettings(Settings{Exposure: 2})
	if c.dark.n != 0 {
		t.Fatalf("expected dark accumulation reset after exposure change, got n=%d", c.dark.n)
	}
}

func TestThumbnailDownsamples(t *testing.T) {
	pix := make([]byte, 8*8)
	for i := range pix {
		pix[i] = 255
	}
	f, err := frame.New(0, pix, frame.Depth8, 8, 8, time.Now())
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	thumb := Thumbnail(f, 4, 4)
	if len(thumb) != 16 {
		t.Fatalf("got %d bytes, want 16", len(thumb))
	}
	for _, v := range thumb {
		if v != 255 {
			t.Fatalf("got %d, want 255", v)
		}
	}
}

func TestGrabCropsAndSubsamples(t *testing.T) {
	pix := make([]byte, 8*8)
	for i := 0; i < 8; i++ {
		pix[i*8+i] = 100
	}
	f, err := frame.New(0, pix, frame.Depth8, 8, 8, time.Now())
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	c := New("cam0", newFakeAcquirer(8, 8), 8, testLogger())
	w, h, out := c.Grab(f, 0, 0, 8, 8, 2, false)
	if w != 4 || h != 4 {
		t.Fatalf("got %dx%d, want 4x4", w, h)
	}
	if len(out) != 16 {
		t.Fatalf("got %d pixels, want 16", len(out))
	}
}
