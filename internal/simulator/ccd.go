/*
DESCRIPTION
  ccd.go implements the simulated CCD readout stage of spec §4.6 step 6:
  exposure/offset/gain scaling, uniform read noise injection, and
  conversion to 8-bit pixel values.

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

import "gonum.org/v1/gonum/stat/distuv"

// CCDParams configures the simulated readout.
type CCDParams struct {
	Exposure float64
	Offset   float64
	Gain     float64
	NoiseAmp float64 // half-width of the uniform read-noise distribution
}

// Expose converts a power-spectrum image into an 8-bit frame: each pixel
// is scaled by gain*exposure, offset, perturbed by uniform noise in
// [-NoiseAmp,NoiseAmp], and clamped to [0,255].
func Expose(img [][]float64, p CCDParams, rng *distuv.Uniform) [][]uint8 {
	h := len(img)
	out := make([][]uint8, h)
	for j := 0; j < h; j++ {
		row := img[j]
		dst := make([]uint8, len(row))
		for i, v := range row {
			pix := v*p.Gain*p.Exposure + p.Offset
			if rng != nil {
				pix += (2*rng.Rand() - 1) * p.NoiseAmp
			}
			dst[i] = clamp8(pix)
		}
		out[j] = dst
	}
	return out
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
