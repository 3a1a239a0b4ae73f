/*
DESCRIPTION
  source.go synthesizes the large source wavefront image Seeing advects
  a crop window across: a sum of a handful of random low-spatial-frequency
  sinusoids, standing in for a real Kolmogorov phase screen without
  pulling in a dedicated turbulence-generation library.

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

import "math"

// sourceTerms is the number of random sinusoids summed to build the
// synthetic source image; enough to give the seeing crop window
// structure to advect across without resolving to a flat field.
const sourceTerms = 12

// GenerateSource builds a w x h synthetic wavefront source image by
// summing sourceTerms random-phase, random-orientation sinusoids, scaled
// to roughly unit amplitude. rng drives both the per-term frequency,
// orientation, and phase.
func GenerateSource(w, h int, rng Source) [][]float64 {
	type term struct{ kx, ky, phase, amp float64 }
	terms := make([]term, sourceTerms)
	for i := range terms {
		freq := 1 + 4*rng.Float64()
		theta := 2 * math.Pi * rng.Float64()
		terms[i] = term{
			kx:    freq * math.Cos(theta) / float64(w),
			ky:    freq * math.Sin(theta) / float64(h),
			phase: 2 * math.Pi * rng.Float64(),
			amp:   1 / float64(i+1),
		}
	}

	out := make([][]float64, h)
	for y := range out {
		row := make([]float64, w)
		for x := range row {
			var v float64
			for _, t := range terms {
				v += t.amp * math.Sin(2*math.Pi*(t.kx*float64(x)+t.ky*float64(y))+t.phase)
			}
			row[x] = v
		}
		out[y] = row
	}
	return out
}
