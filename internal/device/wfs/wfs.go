/*
DESCRIPTION
  wfs.go implements the Shack-Hartmann wavefront sensor device: geometry
  management, per-frame measurement, influence-matrix calibration, the
  reconstructor, and reference/zero calibration, per spec §4.5.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package wfs implements the Shack-Hartmann wavefront sensor device.
package wfs

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/aoctl/internal/device"
	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/aoctl/internal/reconstruct"
	"github.com/ausocean/aoctl/internal/shiftengine"
	"github.com/ausocean/utils/logging"
)

// WFInfo is the result of one Measure call.
type WFInfo struct {
	WFAmp  []float64 // residual modes to correct
	WFFull []float64 // cumulative applied correction + residual, or nil when not meaningful
}

// Camera is the minimal surface WFS needs from a camera device during
// calibration and measurement; satisfied by camera.Camera.
type Camera interface {
	Ring() *frame.FrameRing
}

// SimControl is implemented by the simulator stack so calibration can
// disable seeing and error sources per spec §4.5.3 step 1. A WFS attached
// to real hardware leaves this nil.
type SimControl interface {
	SetSeeingEnabled(bool)
	SetWFCErrEnabled(bool)
}

// WFS is the Shack-Hartmann wavefront sensor device.
type WFS struct {
	mu sync.Mutex

	name string
	log  logging.Logger
	eng  *shiftengine.Engine

	rects []shiftengine.Rect
	ref   []float64 // reference vector, length 2*Nsubap

	basis     reconstruct.Basis
	transform *reconstruct.Transform

	recons map[string]*reconstruct.Reconstructor // keyed by WFC name

	lastStep CalibStep // most recently completed stage of zero->influence->svd

	shiftMini, maxShift float64
	corrWin             int
	method              shiftengine.Method

	status device.Status
}

// New returns a WFS with the given shift engine (shared or private worker
// pool, per deployment).
func New(name string, eng *shiftengine.Engine, log logging.Logger) *WFS {
	return &WFS{
		name:      name,
		log:       log,
		eng:       eng,
		recons:    make(map[string]*reconstruct.Reconstructor),
		lastStep:  StepNone,
		shiftMini: 10,
		maxShift:  20,
		corrWin:   4,
		method:    shiftengine.COG,
		status:    device.Status{Name: name, Type: "wfs"},
	}
}

func (w *WFS) Name() string { return w.name }

func (w *WFS) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Online = true
	return nil
}

func (w *WFS) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Online = false
	return nil
}

func (w *WFS) Status() device.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// SetGeometry replaces the MLA rectangle list wholesale (mla generate/find
// /store or an explicit CSV load all funnel through this) and resets the
// reference vector, since it is no longer meaningful for a different
// geometry.
func (w *WFS) SetGeometry(rects []shiftengine.Rect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rects = rects
	w.ref = make([]float64, 2*len(rects))
}

func (w *WFS) Geometry() []shiftengine.Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]shiftengine.Rect, len(w.rects))
	copy(out, w.rects)
	return out
}

// maxOverlapFraction is the open-question policy of spec §9: a new
// subimage whose rectangle overlaps an existing one by more than this
// fraction of its own area is rejected rather than merged or silently
// accepted.
const maxOverlapFraction = 0.1

// AddSubimage appends one subimage rectangle (mla add), rejecting it if it
// overlaps an existing subimage by more than maxOverlapFraction of its
// area.
func (w *WFS) AddSubimage(r shiftengine.Rect) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !(0 <= r.LX && r.LX < r.TX && 0 <= r.LY && r.LY < r.TY) {
		return fmt.Errorf("wfs: invalid subimage rectangle %+v", r)
	}
	area := float64((r.TX - r.LX) * (r.TY - r.LY))
	for _, existing := range w.rects {
		ov := rectOverlapArea(r, existing)
		if ov/area > maxOverlapFraction {
			return fmt.Errorf("wfs: subimage %+v overlaps existing subimage %+v by %.0f%%, rejected", r, existing, 100*ov/area)
		}
	}
	w.rects = append(w.rects, r)
	w.ref = append(w.ref, 0, 0)
	return nil
}

// DelSubimage removes the subimage at idx (mla del).
func (w *WFS) DelSubimage(idx int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if idx < 0 || idx >= len(w.rects) {
		return fmt.Errorf("wfs: subimage index %d out of range", idx)
	}
	w.rects = append(w.rects[:idx], w.rects[idx+1:]...)
	w.ref = append(w.ref[:2*idx], w.ref[2*idx+2:]...)
	return nil
}

func rectOverlapArea(a, b shiftengine.Rect) float64 {
	lx := maxInt(a.LX, b.LX)
	ly := maxInt(a.LY, b.LY)
	tx := minInt(a.TX, b.TX)
	ty := minInt(a.TY, b.TY)
	if lx >= tx || ly >= ty {
		return 0
	}
	return float64((tx - lx) * (ty - ly))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// SetBasis configures the modal basis and its precomputed transform.
// SENSOR needs no transform.
func (w *WFS) SetBasis(b reconstruct.Basis, t *reconstruct.Transform) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.basis = b
	w.transform = t
}

func (w *WFS) Basis() reconstruct.Basis {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.basis
}

// Measure implements spec §4.5.2: shift-engine measurement, reference
// subtraction, and basis transform.
func (w *WFS) Measure(f *frame.Frame) (WFInfo, error) {
	w.mu.Lock()
	rects := w.rects
	ref := w.ref
	mini, maxShift, corrWin, method := w.shiftMini, w.maxShift, w.corrWin, w.method
	basis, transform := w.basis, w.transform
	w.mu.Unlock()

	if len(rects) == 0 {
		return WFInfo{}, fmt.Errorf("wfs: no MLA geometry configured")
	}
	if err := ContainedIn(rects, f.W, f.H); err != nil {
		return WFInfo{}, fmt.Errorf("wfs: calibration invalidated: %w", err)
	}

	raw := w.eng.Dispatch(f, rects, method, mini, maxShift, corrWin)
	shift := make([]float64, len(raw))
	for i := range shift {
		shift[i] = raw[i] - ref[i]
	}

	var amp []float64
	switch basis {
	case reconstruct.Sensor:
		amp = shift
	default:
		amp = transform.Apply(shift)
	}
	return WFInfo{WFAmp: amp}, nil
}

// SetReference measures on the current optical state and stores the
// result as the new zero point, per spec §4.5.5.
func (w *WFS) SetReference(f *frame.Frame) error {
	w.mu.Lock()
	rects := w.rects
	mini, maxShift, corrWin, method := w.shiftMini, w.maxShift, w.corrWin, w.method
	w.mu.Unlock()

	if len(rects) == 0 {
		return fmt.Errorf("wfs: no MLA geometry configured")
	}
	measured := w.eng.Dispatch(f, rects, method, mini, maxShift, corrWin)

	w.mu.Lock()
	w.ref = measured
	w.mu.Unlock()
	return nil
}

// Reference returns a copy of the current reference vector.
func (w *WFS) Reference() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, len(w.ref))
	copy(out, w.ref)
	return out
}

// CalibOffset adds a constant (x,y) to every entry of the reference
// vector, per spec §4.5.5, deliberately offsetting the closed-loop fixed
// point.
func (w *WFS) CalibOffset(x, y float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := 0; i+1 < len(w.ref); i += 2 {
		w.ref[i] += x
		w.ref[i+1] += y
	}
}

// Reconstructor returns the reconstructor calibrated for wfcname, or
// false if none has been calibrated yet.
func (w *WFS) Reconstructor(wfcname string) (*reconstruct.Reconstructor, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.recons[wfcname]
	return r, ok
}

// SetReconstructor installs a freshly-calibrated reconstructor for wfcname.
func (w *WFS) SetReconstructor(wfcname string, r *reconstruct.Reconstructor) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recons[wfcname] = r
}

// LastCalibStep reports the most recently completed stage of the
// zero->influence->svd calibration pipeline, for "get calib".
func (w *WFS) LastCalibStep() CalibStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastStep
}

func (w *WFS) setLastStep(s CalibStep) {
	w.mu.Lock()
	w.lastStep = s
	w.mu.Unlock()
}

// CompCtrlCmd implements spec §4.5.4: act = A . shift, with an optional
// basis transform on the input if the WFC is driven in a non-sensor
// basis. inputBasis describes the coordinate system shift is already in.
func (w *WFS) CompCtrlCmd(wfcname string, shift []float64, inputBasis reconstruct.Basis, wfcBasisTransform *reconstruct.Transform) ([]float64, error) {
	r, ok := w.Reconstructor(wfcname)
	if !ok {
		return nil, fmt.Errorf("wfs: no reconstructor calibrated for wfc %q", wfcname)
	}
	if inputBasis != reconstruct.Sensor && wfcBasisTransform != nil {
		shift = wfcBasisTransform.Apply(shift)
	}
	return r.Act(shift), nil
}

// CompShift implements spec §4.5.4's diagnostic shift_est = M . act.
func (w *WFS) CompShift(wfcname string, act []float64) ([]float64, error) {
	r, ok := w.Reconstructor(wfcname)
	if !ok {
		return nil, fmt.Errorf("wfs: no reconstructor calibrated for wfc %q", wfcname)
	}
	return r.Shift(act), nil
}

// CompTT implements spec §4.5.4's comp_tt: sums dx_i, dy_i over shift
// (laid out x0,y0,x1,y1,...) and adds the result into the caller's
// (ttx,tty) accumulator.
func CompTT(shift []float64, ttx, tty *float64) {
	for i := 0; i+1 < len(shift); i += 2 {
		*ttx += shift[i]
		*tty += shift[i+1]
	}
}

// MatrixFromRows builds a *mat.Dense influence matrix of shape
// (2*Nsubap, Nact) from Nact columns, each a length-2*Nsubap shift
// vector.
func MatrixFromRows(cols [][]float64) *mat.Dense {
	if len(cols) == 0 {
		return mat.NewDense(0, 0, nil)
	}
	rows := len(cols[0])
	m := mat.NewDense(rows, len(cols), nil)
	for j, col := range cols {
		for i, v := range col {
			m.Set(i, j, v)
		}
	}
	return m
}
