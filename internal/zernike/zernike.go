/*
DESCRIPTION
  zernike.go generates Zernike polynomial basis functions over a unit
  disc, following the radial/azimuthal construction of original_source's
  lib/zernike.cc. These are evaluated at the centre of each subaperture to
  build the Zernike basis transform used by the WFS when its modal basis
  is set to ZERNIKE.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package zernike generates the Zernike polynomial basis used to express
// wavefronts in modal (rather than per-subaperture sensor) coordinates.
package zernike

import "math"

// Index is a (radial, azimuthal) Zernike mode pair in the classical
// (n, m) convention, with |m| <= n and n - |m| even.
type Index struct{ N, M int }

// NollSequence returns the first count Zernike (n,m) pairs ordered by
// radial degree n, then by m from -n to n in steps of 2 (the OSA/ANSI
// order, not Noll's), which is the order modes are assigned to rows of
// the basis transform.
func NollSequence(count int) []Index {
	var seq []Index
	for n := 0; len(seq) < count; n++ {
		for m := -n; m <= n; m += 2 {
			seq = append(seq, Index{n, m})
			if len(seq) >= count {
				break
			}
		}
	}
	return seq
}

// radial evaluates the Zernike radial polynomial R_n^|m|(rho).
func radial(n, m int, rho float64) float64 {
	m = absInt(m)
	if (n-m)%2 != 0 {
		return 0
	}
	var sum float64
	for k := 0; k <= (n-m)/2; k++ {
		num := float64(sign(k)) * factorial(n-k)
		den := factorial(k) * factorial((n+m)/2-k) * factorial((n-m)/2-k)
		sum += num / den * math.Pow(rho, float64(n-2*k))
	}
	return sum
}

// Eval evaluates the Zernike polynomial Z_n^m at polar coordinates (rho
// in [0,1], theta in radians), with no normalisation factor applied (so
// piston is 1 everywhere).
func Eval(idx Index, rho, theta float64) float64 {
	r := radial(idx.N, idx.M, rho)
	if idx.M >= 0 {
		return r * math.Cos(float64(idx.M)*theta)
	}
	return r * math.Sin(float64(-idx.M)*theta)
}

func sign(k int) int {
	if k%2 == 0 {
		return 1
	}
	return -1
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

func factorial(n int) float64 {
	if n <= 1 {
		return 1
	}
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

// Basis evaluates the first len(modes) Zernike polynomials at each of the
// given normalised (x,y) positions (each in [-1,1], with x^2+y^2<=1 inside
// the aperture), returning a row-major matrix of shape
// len(modes) x len(positions). Positions outside the unit disc evaluate
// to 0.
func Basis(modes []Index, positions [][2]float64) [][]float64 {
	out := make([][]float64, len(modes))
	for i, idx := range modes {
		row := make([]float64, len(positions))
		for j, p := range positions {
			x, y := p[0], p[1]
			rho := math.Hypot(x, y)
			if rho > 1 {
				continue
			}
			theta := math.Atan2(y, x)
			row[j] = Eval(idx, rho, theta)
		}
		out[i] = row
	}
	return out
}
