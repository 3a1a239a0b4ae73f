/*
DESCRIPTION
  zernike_transform.go builds the Transform the WFS needs to express a
  shift vector in Zernike modal coordinates: a finite-difference gradient
  of each Zernike polynomial at every subaperture centre, since the shift
  vector itself is a vector of local wavefront slopes rather than
  wavefront heights.

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

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ausocean/aoctl/internal/zernike"
)

// zernikeGradStep is the half-width used to estimate d/dx, d/dy of each
// Zernike polynomial by central difference.
const zernikeGradStep = 1e-3

// BuildZernikeTransform returns a Transform mapping a 2*len(positions)
// shift vector (dx,dy pairs, one per subaperture) onto the first nmodes
// Zernike coefficients. positions gives each subaperture centre in
// normalised aperture coordinates (x,y in [-1,1]).
//
// Row m of B holds, for each subaperture i, the local gradient of Zernike
// mode m at positions[i]: B[m][2i] = dZ_m/dx, B[m][2i+1] = dZ_m/dy. A
// least-squares fit of the modal coefficients to an observed shift vector
// is then a single matrix-vector product via Transform.Apply, since B is
// built pre-normalised by pseudo-inverse of the gradient Gram matrix.
func BuildZernikeTransform(nmodes int, positions [][2]float64) *Transform {
	modes := zernike.NollSequence(nmodes)
	grad := make([]float64, 2*len(positions)*nmodes)
	for m, idx := range modes {
		for i, p := range positions {
			dx, dy := zernikeGradient(idx, p)
			grad[m*2*len(positions)+2*i] = dx
			grad[m*2*len(positions)+2*i+1] = dy
		}
	}
	g := mat.NewDense(nmodes, 2*len(positions), grad)

	var pinv mat.Dense
	if err := pinv.Inverse(gramOrRegularized(g)); err == nil {
		var b mat.Dense
		b.Mul(&pinv, g)
		return &Transform{B: &b}
	}
	return &Transform{B: g}
}

// gramOrRegularized returns g * g^T, Tikhonov-regularized by a small
// diagonal term so the inverse stays well-conditioned even when modes are
// nearly degenerate over a sparse subaperture layout.
func gramOrRegularized(g *mat.Dense) *mat.Dense {
	rows, _ := g.Dims()
	var gram mat.Dense
	gram.Mul(g, g.T())
	for i := 0; i < rows; i++ {
		gram.Set(i, i, gram.At(i, i)+1e-9)
	}
	return &gram
}

// zernikeGradient estimates (dZ/dx, dZ/dy) of Zernike mode idx at
// position p by central difference in Cartesian coordinates, converting
// to/from the polar (rho,theta) form zernike.Eval expects.
func zernikeGradient(idx zernike.Index, p [2]float64) (dx, dy float64) {
	eval := func(x, y float64) float64 {
		rho := math.Hypot(x, y)
		if rho > 1 {
			return 0
		}
		return zernike.Eval(idx, rho, math.Atan2(y, x))
	}
	h := zernikeGradStep
	dx = (eval(p[0]+h, p[1]) - eval(p[0]-h, p[1])) / (2 * h)
	dy = (eval(p[0], p[1]+h) - eval(p[0], p[1]-h)) / (2 * h)
	return dx, dy
}
