/*
DESCRIPTION
  simcam.go composes the simulator stages (seeing, WFC-as-error, WFC
  correction, telescope aperture, microlens imaging, CCD readout) into a
  single Acquirer implementation that substitutes for real camera
  hardware end to end, per spec §4.6.

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
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/aoctl/internal/shiftengine"
)

// Subimage is one microlens-array rectangle, in the simulator's field
// coordinates.
type Subimage struct{ LX, LY, TX, TY int }

// WFCCorrection is implemented by the WFC under test: Surface returns the
// simulated mirror figure for the current actuator state, in the same
// normalised coordinate frame as ActuatorGrid.Surface.
type WFCCorrection interface {
	Surface(w, h int) [][]float64
}

// Camera is a full synthetic optical path standing in for real camera
// hardware: atmosphere, WFC-as-error perturbation, telescope aperture,
// per-subaperture microlens imaging, and CCD readout, assembled into one
// frame.Frame per AcquireFrame call.
type Camera struct {
	W, H int

	Seeing     *Seeing
	ErrSource  *ErrorSource
	Correction WFCCorrection
	Subimages  []Subimage
	MLA        MLAParams
	CCD        CCDParams

	rngUniform *distuv.Uniform
	rngNormal  normSource
	id         uint64
}

// normSource adapts a gonum distuv.Normal to the Source interface Seeing
// expects alongside the uniform generator.
type normSource struct {
	u *distuv.Uniform
	n *distuv.Normal
}

func (s normSource) Float64() float64     { return s.u.Rand() }
func (s normSource) NormFloat64() float64 { return s.n.Rand() }

// NewCamera returns a simulated Camera of resolution w x h, seeded from
// src.
func NewCamera(w, h int, subimages []Subimage, mla MLAParams, ccd CCDParams, seeing *Seeing, errSource *ErrorSource, correction WFCCorrection, src rand.Source) *Camera {
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	n := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	return &Camera{
		W: w, H: h,
		Seeing: seeing, ErrSource: errSource, Correction: correction,
		Subimages:  subimages,
		MLA:        mla,
		CCD:        ccd,
		rngUniform: &u,
		rngNormal:  normSource{u: &u, n: &n},
	}
}

// AcquireFrame implements camera.Acquirer by running the full simulator
// pipeline of spec §4.6 and packing the result into an 8-bit frame.Frame.
func (c *Camera) AcquireFrame(exposure, gain, offset float64) (*frame.Frame, error) {
	field := c.Seeing.Step(c.rngNormal)

	errSurface := c.ErrSource.Step(len(c.Subimages), c.W, c.H, c.rngUniform, nil)
	addInPlace(field, errSurface)

	if c.Correction != nil {
		correction := c.Correction.Surface(c.W, c.H)
		addInPlace(field, correction)
	}

	field = ApplyAperture(field, c.MLA.TelRadius)

	out := make([][]uint8, c.H)
	for i := range out {
		out[i] = make([]uint8, c.W)
	}
	ccd := c.CCD
	ccd.Exposure = exposure
	ccd.Gain = gain
	ccd.Offset = offset

	for _, s := range c.Subimages {
		img, ok := SubapertureImage(field, s.LX, s.LY, s.TX, s.TY, c.W, c.H, c.MLA)
		if !ok {
			continue
		}
		exposed := Expose(img, ccd, c.rngUniform)
		cx := (s.LX + s.TX) / 2
		cy := (s.LY + s.TY) / 2
		n := s.TX - s.LX
		ox := cx - n
		oy := cy - n
		for j := 0; j < len(exposed); j++ {
			ty := oy + j
			if ty < 0 || ty >= c.H {
				continue
			}
			for i := 0; i < len(exposed[j]); i++ {
				tx := ox + i
				if tx < 0 || tx >= c.W {
					continue
				}
				out[ty][tx] = exposed[j][i]
			}
		}
	}

	pix := make([]byte, c.W*c.H)
	for j := 0; j < c.H; j++ {
		copy(pix[j*c.W:(j+1)*c.W], out[j])
	}

	f, err := frame.New(c.id, pix, frame.Depth8, c.W, c.H, time.Now())
	if err != nil {
		return nil, err
	}
	c.id++
	return f, nil
}

// Close is a no-op: the simulator holds no external hardware handle.
func (c *Camera) Close() error { return nil }

func addInPlace(dst, src [][]float64) {
	for j := range dst {
		if j >= len(src) {
			break
		}
		for i := range dst[j] {
			if i >= len(src[j]) {
				break
			}
			dst[j][i] += src[j][i]
		}
	}
}

// SubimagesFromRects converts a shiftengine.Rect list (as configured on
// the WFS) into simulator Subimages, letting the camera and the WFS share
// one geometry.
func SubimagesFromRects(rects []shiftengine.Rect) []Subimage {
	out := make([]Subimage, len(rects))
	for i, r := range rects {
		out[i] = Subimage{LX: r.LX, LY: r.LY, TX: r.TX, TY: r.TY}
	}
	return out
}
