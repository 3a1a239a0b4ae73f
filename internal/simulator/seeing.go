/*
DESCRIPTION
  seeing.go implements the synthetic-atmosphere stage of the simulator
  pipeline (spec §4.6 step 1): a large wavefront source image is cropped
  at a moving window, advected by one of three motion models, and scaled.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package simulator implements the synthetic optical path that
// substitutes for real hardware end to end: atmosphere, WFC-as-error
// surface, telescope aperture, microlens imaging, and CCD noise.
package simulator

// MotionModel selects how the seeing window advects across the source
// image.
type MotionModel int

const (
	Linear MotionModel = iota // bounce at edges
	Random                    // uniform jitter bounded to the source extent
	Drifting                  // random-walk velocity plus linear advection
)

// Seeing generates a moving crop of a large synthetic wavefront source,
// modelling atmospheric turbulence advecting across the telescope
// aperture.
type Seeing struct {
	Source     [][]float64 // large source wavefront image, row-major [y][x]
	W, H       int         // crop window size
	PX, PY     float64     // current window position
	VX, VY     float64     // windspeed (Linear/Drifting)
	Model      MotionModel
	SeeingFac  float64

	enabled bool
}

// NewSeeing returns a Seeing stage over the given source image.
func NewSeeing(source [][]float64, w, h int, vx, vy, seeingFac float64, model MotionModel) *Seeing {
	return &Seeing{
		Source: source, W: w, H: h,
		VX: vx, VY: vy, Model: model, SeeingFac: seeingFac,
		enabled: true,
	}
}

// SetEnabled toggles seeing on/off, used by calibration (spec §4.5.3
// step 1) to disable atmospheric error while measuring a pure push-pull
// response.
func (s *Seeing) SetEnabled(v bool) { s.enabled = v }

// Enabled reports whether seeing is currently contributing to the
// wavefront.
func (s *Seeing) Enabled() bool { return s.enabled }

// Step advances the window position per the configured motion model and
// returns the scaled crop as a wavefront contribution. When disabled, it
// returns an all-zero field of the same size without advancing state, so
// that re-enabling seeing resumes from where it left off.
func (s *Seeing) Step(rng Source) [][]float64 {
	out := make([][]float64, s.H)
	for i := range out {
		out[i] = make([]float64, s.W)
	}
	if !s.enabled {
		return out
	}

	srcH := len(s.Source)
	srcW := 0
	if srcH > 0 {
		srcW = len(s.Source[0])
	}

	switch s.Model {
	case Linear:
		s.PX += s.VX
		s.PY += s.VY
		s.PX, s.VX = bounce(s.PX, s.VX, float64(srcW-s.W))
		s.PY, s.VY = bounce(s.PY, s.VY, float64(srcH-s.H))
	case Random:
		s.PX = rng.Float64() * float64(maxInt(srcW-s.W, 0))
		s.PY = rng.Float64() * float64(maxInt(srcH-s.H, 0))
	case Drifting:
		s.VX += rng.NormFloat64() * 0.01
		s.VY += rng.NormFloat64() * 0.01
		s.PX += s.VX
		s.PY += s.VY
		s.PX, s.VX = bounce(s.PX, s.VX, float64(srcW-s.W))
		s.PY, s.VY = bounce(s.PY, s.VY, float64(srcH-s.H))
	}

	px, py := int(s.PX), int(s.PY)
	for j := 0; j < s.H; j++ {
		sy := clampIdx(py+j, srcH)
		for i := 0; i < s.W; i++ {
			sx := clampIdx(px+i, srcW)
			out[j][i] = s.Source[sy][sx] * s.SeeingFac
		}
	}
	return out
}

// Source abstracts the random number generator so Seeing's step function
// can be driven deterministically in tests.
type Source interface {
	Float64() float64
	NormFloat64() float64
}

func bounce(p, v, max float64) (float64, float64) {
	if max <= 0 {
		return 0, v
	}
	if p < 0 {
		p = -p
		v = -v
	}
	if p > max {
		p = 2*max - p
		v = -v
	}
	return p, v
}

func clampIdx(i, n int) int {
	if n <= 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
