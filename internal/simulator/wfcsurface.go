/*
DESCRIPTION
  wfcsurface.go implements the simulated WFC surface of spec §4.6: a
  weighted sum of Gaussians centred at each virtual actuator's normalised
  position, and the WFC-as-error stage that perturbs the wavefront with a
  randomly evolving modal vector (spec §4.6 step 2).

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

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ActuatorGrid positions each virtual actuator at a normalised (x,y) in
// [-1,1], used to build the Gaussian-sum simulated mirror surface.
type ActuatorGrid struct {
	Positions [][2]float64
	ActSize   float64 // common Gaussian standard deviation
}

// MinActVecAmp is the early-exit threshold from spec §4.6: if the L1 norm
// of the target vector is below this, the surface is returned as exactly
// zero without evaluating any Gaussian.
const MinActVecAmp = 1e-6

// Surface evaluates the simulated WFC surface over a w x h grid of
// normalised positions spanning [-1,1]^2, weighted by target (clamped to
// [-1,1] per element), per spec §4.6.
func (g ActuatorGrid) Surface(target []float64, w, h int) [][]float64 {
	out := make([][]float64, h)
	for i := range out {
		out[i] = make([]float64, w)
	}

	var l1 float64
	weights := make([]float64, len(target))
	for i, t := range target {
		c := clamp1(t)
		weights[i] = c
		l1 += math.Abs(c)
	}
	if l1 < MinActVecAmp {
		return out
	}

	inv2s2 := 1 / (2 * g.ActSize * g.ActSize)
	for j := 0; j < h; j++ {
		y := -1 + 2*float64(j)/float64(h-1)
		for i := 0; i < w; i++ {
			x := -1 + 2*float64(i)/float64(w-1)
			var v float64
			for k, pos := range g.Positions {
				if k >= len(weights) {
					break
				}
				dx := x - pos[0]
				dy := y - pos[1]
				v += weights[k] * math.Exp(-(dx*dx+dy*dy)*inv2s2)
			}
			out[j][i] = v
		}
	}
	return out
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// ErrorSource drives the WFC-as-error stage: a random modal vector that
// evolves with retention alpha (new = (1-alpha)*random + alpha*prev), per
// spec §4.6 step 2.
type ErrorSource struct {
	Grid  ActuatorGrid
	Alpha float64
	prev  []float64

	enabled bool
}

// NewErrorSource returns an ErrorSource enabled by default.
func NewErrorSource(grid ActuatorGrid, alpha float64) *ErrorSource {
	return &ErrorSource{Grid: grid, Alpha: alpha, enabled: true}
}

// SetEnabled toggles the WFC-as-error stage, used by calibration (spec
// §4.5.3 step 1) to disable it while measuring a pure push-pull response.
func (e *ErrorSource) SetEnabled(v bool) { e.enabled = v }

// Enabled reports whether the error stage is currently contributing.
func (e *ErrorSource) Enabled() bool { return e.enabled }

// Step draws a fresh random target, blends it with the retained previous
// value, actuates it through actuate (the paired error WFC), and returns
// the resulting simulated surface.
func (e *ErrorSource) Step(n int, w, h int, rng *distuv.Uniform, actuate func([]float64) [][]float64) [][]float64 {
	if e.prev == nil {
		e.prev = make([]float64, n)
	}
	if !e.enabled {
		out := make([][]float64, h)
		for i := range out {
			out[i] = make([]float64, w)
		}
		return out
	}
	next := make([]float64, n)
	for i := range next {
		r := 2*rng.Rand() - 1
		next[i] = (1-e.Alpha)*r + e.Alpha*e.prev[i]
	}
	e.prev = next
	if actuate != nil {
		return actuate(next)
	}
	return e.Grid.Surface(next, w, h)
}
