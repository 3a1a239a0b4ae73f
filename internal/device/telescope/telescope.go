/*
DESCRIPTION
  telescope.go implements the telescope mount device: tip/tilt track
  offload from the WFS, with its own PID loop state for slow drift
  correction, supplemented from original_source's ui/telescopectrl.cc
  (set ttgain) per SPEC_FULL.md §4.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package telescope implements the telescope mount device that offloads
// the slowly-varying tip/tilt component of WFS shifts.
package telescope

import (
	"math"
	"sync"

	"github.com/ausocean/aoctl/internal/device"
	"github.com/ausocean/utils/logging"
)

// Gain is the telescope tip/tilt PID gain (set ttgain).
type Gain struct{ P, I, D float64 }

// Driver is implemented by the hardware- or simulator-specific mount
// backend.
type Driver interface {
	SetTrackOffset(x, y float64) error
}

// Telescope is the telescope mount device.
type Telescope struct {
	mu sync.Mutex

	name   string
	driver Driver
	log    logging.Logger

	ccdAngle       float64
	scaleX, scaleY float64
	gain           Gain

	integralX, integralY float64
	prevX, prevY         float64

	trackX, trackY float64
	pixShiftX, pixShiftY float64

	status device.Status
}

// New returns a Telescope device.
func New(name string, driver Driver, log logging.Logger) *Telescope {
	return &Telescope{
		name:   name,
		driver: driver,
		log:    log,
		scaleX: 1, scaleY: 1,
		status: device.Status{Name: name, Type: "telescope"},
	}
}

func (t *Telescope) Name() string { return t.name }

func (t *Telescope) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Online = true
	t.log.Info("telescope started", "name", t.name)
	return nil
}

func (t *Telescope) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Online = false
	t.log.Info("telescope stopped", "name", t.name)
	return nil
}

func (t *Telescope) Status() device.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Telescope) SetCCDAngle(a float64)        { t.mu.Lock(); t.ccdAngle = a; t.mu.Unlock() }
func (t *Telescope) SetScaleFactor(fx, fy float64) { t.mu.Lock(); t.scaleX, t.scaleY = fx, fy; t.mu.Unlock() }
func (t *Telescope) SetGain(g Gain)               { t.mu.Lock(); t.gain = g; t.mu.Unlock() }

// CCDAngle returns the current CCD-to-mount rotation angle, for "get
// calib".
func (t *Telescope) CCDAngle() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ccdAngle
}

// Gain returns the current tip/tilt PID gain (get ttgain).
func (t *Telescope) Gain() Gain {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gain
}

// Units returns the pixel-to-mount-axis scale factors (get tel_units).
func (t *Telescope) Units() (sx, sy float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scaleX, t.scaleY
}

// SetTrackOffset implements the tip/tilt off-load driven by WFS.comp_tt:
// it rotates the pixel-space (ttx,tty) by ccdAngle into mount axes, scales
// by (scaleX,scaleY), runs the PID update, and commands the mount.
func (t *Telescope) SetTrackOffset(ttx, tty float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pixShiftX, t.pixShiftY = ttx, tty

	cos, sin := math.Cos(t.ccdAngle), math.Sin(t.ccdAngle)
	rx := ttx*cos - tty*sin
	ry := ttx*sin + tty*cos
	ex := rx * t.scaleX
	ey := ry * t.scaleY

	t.integralX += ex
	t.integralY += ey
	dx := ex - t.prevX
	dy := ey - t.prevY
	t.prevX, t.prevY = ex, ey

	t.trackX += t.gain.P*ex + t.gain.I*t.integralX + t.gain.D*dx
	t.trackY += t.gain.P*ey + t.gain.I*t.integralY + t.gain.D*dy

	if err := t.driver.SetTrackOffset(t.trackX, t.trackY); err != nil {
		t.status.ErrorCount++
		return err
	}
	return nil
}

// Track returns the current accumulated track offset (get tel_track).
func (t *Telescope) Track() (x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trackX, t.trackY
}

// PixShift returns the last raw pixel shift passed to SetTrackOffset (get
// pixshift).
func (t *Telescope) PixShift() (x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pixShiftX, t.pixShiftY
}
