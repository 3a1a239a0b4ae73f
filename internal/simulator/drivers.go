/*
DESCRIPTION
  drivers.go adapts the simulator's surface and aperture models onto the
  device layer's Driver interfaces (wfc.Driver, telescope.Driver), so a
  *wfc.WFC and *telescope.Telescope can run against the simulator with no
  special-casing in the loop engine or session layer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package simulator

// WFCDriver implements wfc.Driver against a simulated mirror: the
// commanded actuator vector lives in the WFC's own ctrl_vec, so there is
// nothing to push to hardware here. WFCSurface reads that same state back
// out for the optical model each frame.
type WFCDriver struct{}

// Actuate is a no-op: the command is already recorded by the caller
// (*wfc.WFC), and WFCSurface reads it back via Ctrl() on the next frame.
func (WFCDriver) Actuate(command []float64) error { return nil }

// WFCCommander is the minimal surface WFCSurface needs from a WFC: the
// current per-actuator command. Satisfied by *wfc.WFC.
type WFCCommander interface {
	Ctrl() []float64
}

// WFCSurface adapts a WFCCommander and an ActuatorGrid into the
// WFCCorrection interface Camera needs: the mirror figure for the
// WFC's current command, in field coordinates.
type WFCSurface struct {
	WFC  WFCCommander
	Grid ActuatorGrid
}

// Surface implements WFCCorrection.
func (s WFCSurface) Surface(w, h int) [][]float64 {
	return s.Grid.Surface(s.WFC.Ctrl(), w, h)
}

// SimControl implements wfs.SimControl, letting calibration disable the
// simulator's seeing and WFC-as-error stages for the duration of a
// push-pull sweep (spec §4.5.3 step 1).
type SimControl struct {
	Seeing *Seeing
	Err    *ErrorSource
}

func (c SimControl) SetSeeingEnabled(v bool) { c.Seeing.SetEnabled(v) }
func (c SimControl) SetWFCErrEnabled(v bool) { c.Err.SetEnabled(v) }

// TelescopeDriver implements telescope.Driver against the simulator: the
// mount has no physical effect on the synthetic optical path (tip/tilt is
// folded into Seeing's motion model instead, per spec §4.6), so this
// simply records the last commanded offset for diagnostics.
type TelescopeDriver struct {
	LastX, LastY float64
}

// SetTrackOffset implements telescope.Driver.
func (d *TelescopeDriver) SetTrackOffset(x, y float64) error {
	d.LastX, d.LastY = x, y
	return nil
}
