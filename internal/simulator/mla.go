/*
DESCRIPTION
  mla.go implements the microlens-imaging stage of spec §4.6 step 5: per
  subaperture, the cropped wavefront is embedded as a complex field,
  Fourier-transformed, and the resulting power spectrum is cyclically
  shifted so the spatial-frequency origin lands at the subimage centre.

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
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// MLAParams configures microlens imaging.
type MLAParams struct {
	TelRadius     float64
	TelAptFillMin float64
	MLAFac        float64
}

// SubapertureImage implements spec §4.6 step 5 for one subaperture
// rectangle (lx,ly,tx,ty) of a w x h wavefront field: it checks the
// aperture fill fraction, scales, zero-pads 2x, forward-FFTs, and returns
// the cyclically-shifted power spectrum |F|^2 of size 2N x 2N where
// N = tx-lx (assumed square).
func SubapertureImage(field [][]float64, lx, ly, tx, ty, w, h int, p MLAParams) ([][]float64, bool) {
	if FillFraction(lx, ly, tx, ty, w, h, p.TelRadius) < p.TelAptFillMin {
		return nil, false
	}

	n := tx - lx
	padded := make([][]complex128, 2*n)
	for i := range padded {
		padded[i] = make([]complex128, 2*n)
	}
	for j := ly; j < ty; j++ {
		for i := lx; i < tx; i++ {
			phi := field[j][i] * p.MLAFac
			padded[j-ly][i-lx] = cmplx.Rect(1, phi)
		}
	}

	spectrum := fft.FFT2(padded)

	out := make([][]float64, 2*n)
	for i := range out {
		out[i] = make([]float64, 2*n)
	}
	for j := 0; j < 2*n; j++ {
		sj := (j + n) % (2 * n)
		for i := 0; i < 2*n; i++ {
			si := (i + n) % (2 * n)
			m := cmplx.Abs(spectrum[j][i])
			out[sj][si] = m * m
		}
	}
	return out, true
}
