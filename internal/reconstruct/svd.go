/*
DESCRIPTION
  svd.go computes the truncated Moore-Penrose pseudo-inverse of an
  influence matrix via its reduced SVD, following the truncation semantics
  of spec §3 exactly: a negative cutoff drops the smallest |cutoff| modes,
  a cutoff greater than 1 keeps that many of the largest modes, and a
  cutoff in (0,1] keeps the smallest k such that the retained power
  fraction is at least cutoff.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package reconstruct builds and applies the linear maps that turn WFS
// shift measurements into WFC commands: the influence matrix, its
// truncated pseudo-inverse (the actuation matrix), and basis transforms.
package reconstruct

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Reconstructor holds an influence matrix M (shape 2*Nsubap x Nact) and
// its truncated pseudo-inverse A = M+, along with the SVD diagnostics
// spec §3 requires.
type Reconstructor struct {
	M *mat.Dense // 2*Nsubap x Nact
	A *mat.Dense // Nact x 2*Nsubap

	SingularValues []float64
	ModesUsed      int
	PowerFraction  float64
	Condition      float64
}

// Build runs the reduced SVD of m and truncates it per cutoff, storing the
// resulting actuation matrix and diagnostics.
func Build(m *mat.Dense, cutoff float64) (*Reconstructor, error) {
	rows, cols := m.Dims()
	if rows < cols {
		return nil, fmt.Errorf("reconstruct: influence matrix is ill-posed: 2*Nsubap=%d < Nact=%d", rows, cols)
	}

	var svd mat.SVD
	ok := svd.Factorize(m, mat.SVDThin)
	if !ok {
		return nil, errors.New("reconstruct: SVD factorization failed")
	}

	sv := svd.Values(nil)
	k := truncationCount(sv, cutoff)
	if k <= 0 {
		return nil, errors.New("reconstruct: truncation leaves zero modes; influence matrix is singular for this cutoff")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	uk := u.Slice(0, rows, 0, k).(*mat.Dense)
	vk := v.Slice(0, cols, 0, k).(*mat.Dense)

	sinv := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		sinv.Set(i, i, 1/sv[i])
	}

	var tmp mat.Dense
	tmp.Mul(vk, sinv)
	a := mat.NewDense(cols, rows, nil)
	a.Mul(&tmp, uk.T())

	var total, used float64
	for _, s := range sv {
		total += s * s
	}
	for i := 0; i < k; i++ {
		used += sv[i] * sv[i]
	}
	cond := 0.0
	if k > 0 && sv[k-1] != 0 {
		cond = sv[0] / sv[k-1]
	}

	return &Reconstructor{
		M:              m,
		A:              a,
		SingularValues: sv,
		ModesUsed:      k,
		PowerFraction:  safeDiv(used, total),
		Condition:      cond,
	}, nil
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// truncationCount applies spec §3's cutoff semantics. sv must be sorted
// in non-increasing order, as gonum's thin SVD guarantees.
func truncationCount(sv []float64, cutoff float64) int {
	n := len(sv)
	switch {
	case cutoff < 0:
		drop := int(-cutoff)
		k := n - drop
		if k < 0 {
			k = 0
		}
		return k
	case cutoff > 1:
		k := int(cutoff)
		if k > n {
			k = n
		}
		return k
	default:
		var total float64
		for _, s := range sv {
			total += s * s
		}
		if total == 0 {
			return 0
		}
		var acc float64
		for i, s := range sv {
			acc += s * s
			if acc/total >= cutoff {
				return i + 1
			}
		}
		return n
	}
}

// Act computes act = A . shift.
func (r *Reconstructor) Act(shift []float64) []float64 {
	v := mat.NewVecDense(len(shift), shift)
	rows, _ := r.A.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(r.A, v)
	return out.RawVector().Data
}

// Shift computes the diagnostic shift estimate shift_est = M . act.
func (r *Reconstructor) Shift(act []float64) []float64 {
	v := mat.NewVecDense(len(act), act)
	rows, _ := r.M.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(r.M, v)
	return out.RawVector().Data
}
