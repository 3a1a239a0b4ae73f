/*
DESCRIPTION
  wfc.go implements the wavefront corrector device contract of spec §4.4:
  update_control, the actuation-map fan-out, and actuate. Hardware access
  is isolated behind the Driver interface so that calibration, waffle, and
  random-pattern stimuli work identically against the simulator and a real
  deformable mirror.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package wfc implements the wavefront corrector (deformable mirror)
// device: modal control state, the actuation map, and actuation.
package wfc

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ausocean/aoctl/internal/device"
	"github.com/ausocean/utils/logging"
)

// Gain is the (p, i, d) update-law gain. I and D are reserved per spec
// §4.4 and are not applied by update_control in the base contract.
type Gain struct{ P, I, D float64 }

// ActMap is the sparse virtual-mode -> real-actuator relation of spec
// §3. A nil or empty map means Nvirt == Nreal and the identity applies.
type ActMap map[int][]int

// Driver is implemented by a hardware- or simulator-specific backend.
// dm_actuate in spec terms.
type Driver interface {
	Actuate(command []float64) error
}

// WFC is the wavefront corrector device.
type WFC struct {
	mu sync.Mutex // serialises every command handler and state mutator

	name   string
	driver Driver
	log    logging.Logger

	nvirt, nreal int
	actMap       ActMap

	target  []float64 // length nvirt
	ctrlVec []float64 // length nreal
	offset  []float64 // length nreal
	err     []float64 // length nvirt, workspace
	prev    []float64 // length nvirt, workspace
	pidInt  []float64 // length nvirt, workspace

	gain    Gain
	maxAct  float64

	waffleEven, waffleOdd []int

	status device.Status
}

// New returns a WFC with nvirt virtual modes, nreal real actuators, and
// the given actuation map (nil for identity).
func New(name string, nvirt, nreal int, actMap ActMap, driver Driver, log logging.Logger) *WFC {
	if actMap == nil {
		nreal = nvirt
	}
	return &WFC{
		name:    name,
		driver:  driver,
		log:     log,
		nvirt:   nvirt,
		nreal:   nreal,
		actMap:  actMap,
		target:  make([]float64, nvirt),
		ctrlVec: make([]float64, nreal),
		offset:  make([]float64, nreal),
		err:     make([]float64, nvirt),
		prev:    make([]float64, nvirt),
		pidInt:  make([]float64, nvirt),
		maxAct:  1,
		status:  device.Status{Name: name, Type: "wfc"},
	}
}

func (w *WFC) Name() string { return w.name }

func (w *WFC) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Online = true
	w.log.Info("wfc started", "name", w.name, "nvirt", w.nvirt, "nreal", w.nreal)
	return nil
}

func (w *WFC) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.Online = false
	w.log.Info("wfc stopped", "name", w.name)
	return nil
}

func (w *WFC) Status() device.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// SetGain sets the PID gain under the command mutex.
func (w *WFC) SetGain(g Gain) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gain = g
}

func (w *WFC) Gain() Gain {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gain
}

// SetMaxAct sets the per-actuator clamp.
func (w *WFC) SetMaxAct(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maxAct = v
}

func (w *WFC) MaxAct() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxAct
}

// SetOffset sets offset[n:n+len(v)].
func (w *WFC) SetOffset(n int, v []float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n < 0 || n+len(v) > len(w.offset) {
		return fmt.Errorf("wfc: offset range [%d,%d) out of bounds for %d actuators", n, n+len(v), len(w.offset))
	}
	copy(w.offset[n:], v)
	return nil
}

// Offset returns a copy of the current per-actuator calibrated zero-point
// offset (the vector SetOffset writes into).
func (w *WFC) Offset() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, len(w.offset))
	copy(out, w.offset)
	return out
}

// Ctrl returns a copy of the current per-actuator command (ctrl_vec).
func (w *WFC) Ctrl() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]float64, len(w.ctrlVec))
	copy(out, w.ctrlVec)
	return out
}

// NactBoth returns the virtual-mode and real-actuator counts.
func (w *WFC) NactBoth() (nvirt, nreal int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nvirt, w.nreal
}

// Nact returns the real-actuator count, satisfying wfs.ActuatorDriver:
// influence-matrix calibration pushes one real actuator at a time.
func (w *WFC) Nact() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nreal
}

// SetActuator sets ctrl_vec[idx] directly, bypassing the modal control
// law, and actuates. Used as the push-pull stimulus during
// influence-matrix calibration (spec §4.5.3), which drives real
// actuators one at a time rather than through update_control.
func (w *WFC) SetActuator(idx int, amp float64) error {
	w.mu.Lock()
	if idx < 0 || idx >= len(w.ctrlVec) {
		w.mu.Unlock()
		return fmt.Errorf("wfc: actuator index %d out of range", idx)
	}
	w.ctrlVec[idx] = amp
	w.mu.Unlock()
	return w.Actuate()
}

// UpdateControl implements spec §4.4 step 1: copy err into the per-WFC
// err buffer, scale target by retain, then target += gain.P*err, clamped
// per element to [-maxact, maxact].
func (w *WFC) UpdateControl(errIn []float64, retain float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(errIn) != w.nvirt {
		return fmt.Errorf("wfc: err length %d, want %d", len(errIn), w.nvirt)
	}
	copy(w.err, errIn)
	for i := range w.target {
		w.target[i] = retain*w.target[i] + w.gain.P*w.err[i]
		w.target[i] = clamp(w.target[i], w.maxAct)
	}
	copy(w.prev, w.target)
	return nil
}

// ApplyActMap implements spec §4.4 step 2: expand target (Nvirt) into
// ctrl_vec (Nreal) via the actuation map, or alias it when none is
// configured.
func (w *WFC) ApplyActMap() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.applyActMapLocked()
}

func (w *WFC) applyActMapLocked() {
	if w.actMap == nil {
		copy(w.ctrlVec, w.target)
		return
	}
	for i := range w.ctrlVec {
		w.ctrlVec[i] = 0
	}
	for mode, acts := range w.actMap {
		if mode < 0 || mode >= len(w.target) {
			continue
		}
		for _, a := range acts {
			if a >= 0 && a < len(w.ctrlVec) {
				w.ctrlVec[a] = w.target[mode]
			}
		}
	}
}

// Actuate implements spec §4.4 step 3: command = ctrl_vec + offset,
// clamped to [-maxact, maxact] per the spec's mandated "clamp the sum"
// resolution of the offset-vs-maxact ambiguity (§9 open question), then
// sent to the driver. The driver call is made while
// holding the command mutex, serialising actuation against any
// concurrent configuration change on this WFC.
func (w *WFC) Actuate() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cmd := make([]float64, len(w.ctrlVec))
	for i := range cmd {
		cmd[i] = clamp(w.ctrlVec[i]+w.offset[i], w.maxAct)
	}
	if err := w.driver.Actuate(cmd); err != nil {
		w.status.ErrorCount++
		return fmt.Errorf("wfc: actuate: %w", err)
	}
	return nil
}

// SetWafflePattern sets a sign-alternating pattern on the configured
// even/odd actuator sets, bypassing the actuation map, per spec §4.4 and
// §8 invariant 6.
func (w *WFC) SetWafflePattern(v float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.ctrlVec {
		w.ctrlVec[i] = 0
	}
	for _, a := range w.waffleEven {
		if a >= 0 && a < len(w.ctrlVec) {
			w.ctrlVec[a] = v
		}
	}
	for _, a := range w.waffleOdd {
		if a >= 0 && a < len(w.ctrlVec) {
			w.ctrlVec[a] = -v
		}
	}
	return nil
}

// SetWaffleSets configures the even/odd actuator sets used by
// SetWafflePattern, loaded from configuration (Config.WaffleEven/Odd).
func (w *WFC) SetWaffleSets(even, odd []int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waffleEven = even
	w.waffleOdd = odd
}

// SetRandomPattern sets target to a uniform random value in [-a,a] at
// every modal element, then applies the actuation map.
func (w *WFC) SetRandomPattern(a float64, rng *rand.Rand) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.target {
		w.target[i] = a * (2*rng.Float64() - 1)
	}
	w.applyActMapLocked()
}

// Reset zeroes the target, re-derives ctrl_vec, and actuates.
func (w *WFC) Reset() error {
	w.mu.Lock()
	for i := range w.target {
		w.target[i] = 0
	}
	w.applyActMapLocked()
	w.mu.Unlock()
	return w.Actuate()
}

// Loosen pushes +a, -a alternately n times with delay dt, to relax a
// mirror that has been sitting at extremes.
func (w *WFC) Loosen(a float64, n int, dt time.Duration) error {
	for i := 0; i < n; i++ {
		v := a
		if i%2 == 1 {
			v = -a
		}
		w.mu.Lock()
		for j := range w.target {
			w.target[j] = v
		}
		w.applyActMapLocked()
		w.mu.Unlock()
		if err := w.Actuate(); err != nil {
			return err
		}
		time.Sleep(dt)
	}
	return nil
}

func clamp(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < -max {
		return -max
	}
	return v
}
