/*
DESCRIPTION
  camera.go implements the Camera device of spec §4.3: a long-running
  capture thread driven by a mode state machine, feeding a frame ring,
  with dark/flat accumulation, store-N persistence hooks, thumbnail
  downsampling, and cropped grab.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package camera implements the Camera device contract: a capture thread
// state machine over a hardware- or simulator-specific Acquirer, feeding
// a frame.FrameRing, with dark/flat, store-N, thumbnail, and grab.
package camera

import (
	"fmt"
	"sync"

	"github.com/ausocean/aoctl/internal/device"
	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/utils/logging"
)

// Mode is the camera's capture-thread state.
type Mode int

// Capture modes, per spec §4.3.
const (
	Off Mode = iota
	Waiting
	Single
	Running
	Config
	Error
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "off"
	case Waiting:
		return "waiting"
	case Single:
		return "single"
	case Running:
		return "running"
	case Config:
		return "config"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Acquirer is the hardware- or simulator-specific driver that produces one
// frame per call, honouring the camera's current exposure/gain/offset.
// AcquireFrame may block (with an internal timeout) waiting on hardware.
type Acquirer interface {
	AcquireFrame(exposure, gain, offset float64) (*frame.Frame, error)
	Close() error
}

// Settings holds the live-tunable per-capture parameters of spec §4.3.
type Settings struct {
	Exposure float64
	Interval float64
	Gain     float64
	Offset   float64
}

// accum is a running sum image used by dark/flat accumulation.
type accum struct {
	sum     []uint32
	n       int
	exptime float64
	w, h    int
}

func (a *accum) reset(w, h int) {
	a.sum = make([]uint32, w*h)
	a.n = 0
	a.w, a.h = w, h
}

func (a *accum) add(f *frame.Frame) {
	if a.sum == nil || a.w != f.W || a.h != f.H {
		a.reset(f.W, f.H)
	}
	for i := range a.sum {
		a.sum[i] += uint32(f.At(i%f.W, i/f.W))
	}
	a.n++
}

// Camera is the capture-thread device.
type Camera struct {
	mu   sync.Mutex
	cond *sync.Cond

	name string
	acq  Acquirer
	log  logging.Logger
	ring *frame.FrameRing

	mode     Mode
	settings Settings

	dark, flat accum
	storeN     int
	onStore    func(f *frame.Frame, s Settings, n int)

	status device.Status

	done chan struct{}
	wg   sync.WaitGroup
}

// New returns a Camera driven by acq, publishing into a ring of the given
// size.
func New(name string, acq Acquirer, ringSize int, log logging.Logger) *Camera {
	c := &Camera{
		name: name,
		acq:  acq,
		log:  log,
		ring: frame.NewRing(ringSize),
		mode: Off,
		done: make(chan struct{}),
		status: device.Status{Name: name, Type: "camera"},
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *Camera) Name() string { return c.name }

// Ring exposes the frame ring for the WFS and session layer to read from.
func (c *Camera) Ring() *frame.FrameRing { return c.ring }

// Start launches the capture thread. Start is idempotent: calling it again
// while already running has no effect.
func (c *Camera) Start() error {
	c.mu.Lock()
	if c.status.Online {
		c.mu.Unlock()
		return nil
	}
	c.status.Online = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.captureLoop()
	c.log.Info("camera started", "name", c.name)
	return nil
}

// Stop signals the capture thread to exit, waits for it to finish (an
// acquisition already in flight completes first), and then closes the
// driver.
func (c *Camera) Stop() error {
	c.mu.Lock()
	if !c.status.Online {
		c.mu.Unlock()
		return nil
	}
	c.status.Online = false
	c.mu.Unlock()

	close(c.done)
	c.cond.Broadcast()
	c.wg.Wait()
	c.done = make(chan struct{})
	c.log.Info("camera stopped", "name", c.name)
	return c.acq.Close()
}

func (c *Camera) Status() device.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetMode sets the capture mode and wakes the capture thread. It does not
// touch the dark/flat accumulations; exposure/gain/offset changes
// invalidate those, in SetSettings.
func (c *Camera) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	c.cond.Broadcast()
}

func (c *Camera) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetSettings updates exposure/interval/gain/offset. A change to exposure,
// gain, or offset invalidates dark/flat per spec §4.3.
func (c *Camera) SetSettings(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	invalidate := s.Exposure != c.settings.Exposure || s.Gain != c.settings.Gain || s.Offset != c.settings.Offset
	c.settings = s
	if invalidate {
		c.dark = accum{}
		c.flat = accum{}
	}
}

func (c *Camera) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// captureLoop implements spec §4.3's capture-thread pseudocode.
func (c *Camera) captureLoop() {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		for c.mode != Running && c.mode != Single {
			select {
			case <-c.done:
				c.mu.Unlock()
				return
			default:
			}
			c.cond.Wait()
		}
		select {
		case <-c.done:
			c.mu.Unlock()
			return
		default:
		}
		mode := c.mode
		settings := c.settings
		c.mu.Unlock()

		select {
		case <-c.done:
			return
		default:
		}

		f, err := c.acq.AcquireFrame(settings.Exposure, settings.Gain, settings.Offset)
		if err != nil {
			c.mu.Lock()
			c.status.ErrorCount++
			c.mu.Unlock()
			c.log.Warning("frame acquisition failed", "name", c.name, "error", err)
			continue
		}

		evicted := c.ring.Queue(f)
		_ = evicted // backing store recycling is the acquirer's concern

		c.mu.Lock()
		if c.storeN > 0 && c.onStore != nil {
			c.storeN--
			c.onStore(f, c.settings, c.storeN)
			if c.storeN == 0 {
				c.log.Info("store complete", "name", c.name)
			}
		}
		if mode == Single {
			c.mode = Waiting
		}
		c.mu.Unlock()
	}
}

// SetStore arms persistence of the next n frames; cb is invoked once per
// stored frame from the capture goroutine, with the remaining count.
func (c *Camera) SetStore(n int, cb func(f *frame.Frame, s Settings, n int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeN = n
	c.onStore = cb
}

// AccumulateDark runs n frames through the dark accumulator. Caller is
// expected to ensure the camera is idle with respect to store/grab while
// this runs.
func (c *Camera) AccumulateDark(n int) error {
	return c.accumulate(&c.dark, n)
}

// AccumulateFlat runs n frames through the flat accumulator.
func (c *Camera) AccumulateFlat(n int) error {
	return c.accumulate(&c.flat, n)
}

// DarkFlatStatus reports whether a dark and/or flat accumulation has been
// run since the last settings change invalidated them, for "get calib".
func (c *Camera) DarkFlatStatus() (hasDark, hasFlat bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dark.n > 0, c.flat.n > 0
}

func (c *Camera) accumulate(a *accum, n int) error {
	c.mu.Lock()
	exposure := c.settings.Exposure
	c.mu.Unlock()

	a.reset(0, 0)
	a.exptime = exposure
	for i := 0; i < n; i++ {
		f, err := c.acq.AcquireFrame(exposure, c.settings.Gain, c.settings.Offset)
		if err != nil {
			return fmt.Errorf("camera: accumulation frame %d: %w", i, err)
		}
		a.add(f)
	}
	return nil
}

// Correct applies dark/flat correction to raw per spec §4.3: (raw -
// dark)*flat, clamped to the frame's depth range.
func (c *Camera) Correct(f *frame.Frame) []int {
	out := make([]int, f.W*f.H)
	maxVal := (1 << uint(f.Depth)) - 1
	for i := range out {
		raw := f.At(i%f.W, i/f.W)
		var d, fl float64
		if c.dark.n > 0 && i < len(c.dark.sum) {
			d = float64(c.dark.sum[i]) / float64(c.dark.n)
		}
		fl = 1
		if c.flat.n > 0 && i < len(c.flat.sum) {
			mean := float64(c.flat.sum[i]) / float64(c.flat.n)
			if mean != 0 {
				fl = mean
			}
		}
		v := int((float64(raw) - d) * fl)
		if v < 0 {
			v = 0
		}
		if v > maxVal {
			v = maxVal
		}
		out[i] = v
	}
	return out
}

// Thumbnail downsamples the latest frame by equal integer steps to
// w x h x 8, byte-packed, per spec §4.3.
func Thumbnail(f *frame.Frame, w, h int) []byte {
	out := make([]byte, w*h)
	sx := f.W / w
	sy := f.H / h
	if sx < 1 {
		sx = 1
	}
	if sy < 1 {
		sy = 1
	}
	maxVal := (1 << uint(f.Depth)) - 1
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			sxp := i * sx
			syp := j * sy
			if sxp >= f.W {
				sxp = f.W - 1
			}
			if syp >= f.H {
				syp = f.H - 1
			}
			v := f.At(sxp, syp)
			out[j*w+i] = byte(v * 255 / maxVal)
		}
	}
	return out
}

// Grab crops f to (x1,y1,x2,y2) with integer subsampling step, optionally
// dark/flat corrected, per spec §4.3.
func (c *Camera) Grab(f *frame.Frame, x1, y1, x2, y2, step int, correct bool) (w, h int, pix []int) {
	if step < 1 {
		step = 1
	}
	w = (x2 - x1 + step - 1) / step
	h = (y2 - y1 + step - 1) / step
	pix = make([]int, w*h)

	var corrected []int
	if correct {
		corrected = c.Correct(f)
	}

	for j := 0; j < h; j++ {
		sy := y1 + j*step
		for i := 0; i < w; i++ {
			sx := x1 + i*step
			if sx < 0 || sx >= f.W || sy < 0 || sy >= f.H {
				continue
			}
			if correct {
				pix[j*w+i] = corrected[sy*f.W+sx]
			} else {
				pix[j*w+i] = f.At(sx, sy)
			}
		}
	}
	return w, h, pix
}
