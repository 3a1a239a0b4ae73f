/*
DESCRIPTION
  engine.go implements the loop engine of spec §4.7: the mode state
  machine (LISTEN/OPEN/CLOSED/CAL/SHUTDOWN) and the open- and
  closed-loop iteration bodies that chain camera capture through
  measurement, reconstruction, actuation, and telescope tip/tilt
  offload.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package loopengine implements the control loop's mode state machine:
// LISTEN, OPEN, CLOSED, CAL, and SHUTDOWN, and the per-iteration bodies
// that drive a camera, a wavefront sensor, a wavefront corrector, and a
// telescope mount through one measurement/actuation cycle.
package loopengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/aoctl/internal/device/wfs"
	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/aoctl/internal/reconstruct"
	"github.com/ausocean/utils/logging"
)

// Mode is the loop engine's state.
type Mode int

// Loop modes, per spec §4.7.
const (
	Listen Mode = iota
	Open
	Closed
	Cal
	Shutdown
)

func (m Mode) String() string {
	switch m {
	case Listen:
		return "listen"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Cal:
		return "cal"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Camera is the minimal surface the loop engine needs from a camera
// device.
type Camera interface {
	Ring() *frame.FrameRing
}

// WFS is the minimal surface the loop engine needs from a wavefront
// sensor device.
type WFS interface {
	Measure(f *frame.Frame) (wfs.WFInfo, error)
	CompCtrlCmd(wfcname string, shift []float64, inputBasis reconstruct.Basis, wfcBasisTransform *reconstruct.Transform) ([]float64, error)
	CompShift(wfcname string, act []float64) ([]float64, error)
}

// WFC is the minimal surface the loop engine needs from a wavefront
// corrector device.
type WFC interface {
	Name() string
	UpdateControl(errIn []float64, retain float64) error
	ApplyActMap()
	Actuate() error
	Ctrl() []float64
}

// Telescope is the minimal surface the loop engine needs from the
// telescope mount.
type Telescope interface {
	SetTrackOffset(x, y float64) error
}

// Calibrator runs the full calibration sequence; installed separately
// since it owns its own WFC/camera orchestration (wfs.Calibrate).
type Calibrator func(ctx context.Context) error

// MissedFrameBudget bounds how long open_loop/closed_loop will wait for
// the next frame before treating the iteration as failed. A var, not a
// const, so tests can shrink it.
var MissedFrameBudget = 2 * time.Second

// Engine is the loop engine: a mode state machine driving one camera, one
// WFS, one WFC, and the telescope through repeated iterations.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	mode Mode
	log  logging.Logger

	cam  Camera
	ws   WFS
	wc   WFC
	tel  Telescope
	cal  Calibrator

	retain float64
	perf   *PerfRing

	lastSeen uint64
	started  bool
}

// New returns an Engine in LISTEN mode.
func New(cam Camera, ws WFS, wc WFC, tel Telescope, cal Calibrator, retain float64, log logging.Logger) *Engine {
	e := &Engine{
		cam: cam, ws: ws, wc: wc, tel: tel, cal: cal,
		retain: retain,
		log:    log,
		perf:   NewPerfRing(256),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// SetMode requests a mode transition; the running loop observes it at the
// top of its next iteration, per spec §4.7's ordering guarantee.
func (e *Engine) SetMode(m Mode) {
	e.mu.Lock()
	e.mode = m
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Mode returns the current mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Run is the engine's main thread, per spec §4.7's pseudocode. It returns
// when the mode transitions to SHUTDOWN.
func (e *Engine) Run(ctx context.Context) {
	for {
		e.mu.Lock()
		for e.mode == Listen {
			e.cond.Wait()
		}
		mode := e.mode
		e.mu.Unlock()

		switch mode {
		case Listen:
			continue
		case Open:
			for e.Mode() == Open {
				if err := e.openIteration(ctx); err != nil {
					e.log.Warning("open loop iteration failed, degrading to listen", "error", err)
					e.SetMode(Listen)
					break
				}
			}
		case Closed:
			for e.Mode() == Closed {
				if err := e.closedIteration(ctx); err != nil {
					e.log.Warning("closed loop iteration failed, degrading to listen", "error", err)
					e.SetMode(Listen)
					break
				}
			}
		case Cal:
			if e.cal != nil {
				if err := e.cal(ctx); err != nil {
					e.log.Warning("calibration failed", "error", err)
				}
			}
			e.SetMode(Listen)
		case Shutdown:
			return
		}
	}
}

func (e *Engine) nextFrame() (*frame.Frame, error) {
	ring := e.cam.Ring()
	deadline := time.Now().Add(MissedFrameBudget)
	get := func() *frame.Frame {
		if !e.started {
			return ring.Latest()
		}
		return ring.Get(e.lastSeen+1, false)
	}
	f := get()
	for f == nil {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("loopengine: missed-frame budget exceeded waiting for frame %d", e.lastSeen+1)
		}
		time.Sleep(time.Millisecond)
		f = get()
	}
	e.lastSeen = f.ID
	e.started = true
	return f, nil
}

// openIteration implements spec §4.7's open_loop: measure, compute the
// control command and diagnostic shift, compute tip/tilt, and offload to
// the telescope. No actuation.
func (e *Engine) openIteration(ctx context.Context) error {
	mark := e.perf.Begin("open")
	defer mark.End()

	f, err := e.nextFrame()
	if err != nil {
		return err
	}
	mark.Phase("frame")

	info, err := e.ws.Measure(f)
	if err != nil {
		return fmt.Errorf("measure: %w", err)
	}
	mark.Phase("measure")

	act, err := e.ws.CompCtrlCmd(e.wc.Name(), info.WFAmp, reconstruct.Sensor, nil)
	if err != nil {
		return fmt.Errorf("comp_ctrlcmd: %w", err)
	}
	mark.Phase("ctrlcmd")

	shiftEst, err := e.ws.CompShift(e.wc.Name(), act)
	if err != nil {
		return fmt.Errorf("comp_shift: %w", err)
	}
	mark.Phase("shift")

	var ttx, tty float64
	wfs.CompTT(shiftEst, &ttx, &tty)
	mark.Phase("comp_tt")

	if err := e.tel.SetTrackOffset(ttx, tty); err != nil {
		return fmt.Errorf("telescope offload: %w", err)
	}
	mark.Phase("telescope")
	return nil
}

// closedIteration implements spec §4.7's closed_loop: as open_loop, but
// drives WFC.update_control and WFC.actuate between comp_ctrlcmd and
// comp_shift, and comp_shift runs on the full accumulated command (the
// WFC's ctrl_vec after actuation) so comp_tt sees total sky motion.
func (e *Engine) closedIteration(ctx context.Context) error {
	mark := e.perf.Begin("closed")
	defer mark.End()

	f, err := e.nextFrame()
	if err != nil {
		return err
	}
	mark.Phase("frame")

	info, err := e.ws.Measure(f)
	if err != nil {
		return fmt.Errorf("measure: %w", err)
	}
	mark.Phase("measure")

	act, err := e.ws.CompCtrlCmd(e.wc.Name(), info.WFAmp, reconstruct.Sensor, nil)
	if err != nil {
		return fmt.Errorf("comp_ctrlcmd: %w", err)
	}
	mark.Phase("ctrlcmd")

	if err := e.wc.UpdateControl(act, e.retain); err != nil {
		return fmt.Errorf("update_control: %w", err)
	}
	e.wc.ApplyActMap()
	if err := e.wc.Actuate(); err != nil {
		return fmt.Errorf("actuate: %w", err)
	}
	mark.Phase("actuate")

	full := e.wc.Ctrl()
	shiftEst, err := e.ws.CompShift(e.wc.Name(), full)
	if err != nil {
		return fmt.Errorf("comp_shift: %w", err)
	}
	mark.Phase("shift")

	var ttx, tty float64
	wfs.CompTT(shiftEst, &ttx, &tty)
	mark.Phase("comp_tt")

	if err := e.tel.SetTrackOffset(ttx, tty); err != nil {
		return fmt.Errorf("telescope offload: %w", err)
	}
	mark.Phase("telescope")
	return nil
}
