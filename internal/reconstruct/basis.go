/*
DESCRIPTION
  basis.go applies the precomputed linear basis transforms (§3 "Wavefront
  representation") between the sensor's native shift-vector coordinates
  and a modal basis (Zernike, Karhunen-Loeve, or mirror modes), and
  provides the tip/tilt extraction used to off-load slow drift to the
  telescope mount (§4.5.4 comp_tt).

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package reconstruct

import "gonum.org/v1/gonum/mat"

// Basis names the coordinate system a wavefront amplitude vector is
// expressed in.
type Basis int

const (
	Sensor Basis = iota
	Zernike
	KL
	Mirror
)

func (b Basis) String() string {
	switch b {
	case Sensor:
		return "sensor"
	case Zernike:
		return "zernike"
	case KL:
		return "kl"
	case Mirror:
		return "mirror"
	default:
		return "unknown"
	}
}

// Transform is a precomputed linear map B (shape Nmodes x 2*Nsubap) from
// shift-vector coordinates into a modal basis.
type Transform struct {
	B *mat.Dense
}

// Apply left-multiplies shift by B, returning the mode amplitudes.
func (t *Transform) Apply(shift []float64) []float64 {
	if t == nil || t.B == nil {
		out := make([]float64, len(shift))
		copy(out, shift)
		return out
	}
	v := mat.NewVecDense(len(shift), shift)
	rows, _ := t.B.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(t.B, v)
	return out.RawVector().Data
}

// TipTilt sums the x and y components of a shift vector, per spec
// §4.5.4 comp_tt: ttx = sum(dx_i), tty = sum(dy_i). The caller
// accumulates these into its own running telescope offset.
func TipTilt(shift []float64) (ttx, tty float64) {
	for i := 0; i+1 < len(shift); i += 2 {
		ttx += shift[i]
		tty += shift[i+1]
	}
	return ttx, tty
}
