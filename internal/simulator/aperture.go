/*
DESCRIPTION
  aperture.go implements the telescope-aperture stage of spec §4.6 step 4:
  multiplying the wavefront by a circular mask of radius
  telradius*min(w,h)/2.

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

// ApplyAperture multiplies field by a circular mask of radius
// telRadius*min(w,h)/2 centred on the field, in place, and returns it.
func ApplyAperture(field [][]float64, telRadius float64) [][]float64 {
	h := len(field)
	if h == 0 {
		return field
	}
	w := len(field[0])
	cx, cy := float64(w)/2, float64(h)/2
	r := telRadius * float64(minInt(w, h)) / 2

	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			dx, dy := float64(i)-cx, float64(j)-cy
			if dx*dx+dy*dy > r*r {
				field[j][i] = 0
			}
		}
	}
	return field
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FillFraction returns the fraction of rect's area that lies within the
// circular aperture mask, used by microlens imaging to reject
// subapertures with insufficient illuminated area (spec §4.6 step 5).
func FillFraction(lx, ly, tx, ty, w, h int, telRadius float64) float64 {
	cx, cy := float64(w)/2, float64(h)/2
	r := telRadius * float64(minInt(w, h)) / 2
	var inside, total int
	for j := ly; j < ty; j++ {
		for i := lx; i < tx; i++ {
			total++
			dx, dy := float64(i)-cx, float64(j)-cy
			if dx*dx+dy*dy <= r*r {
				inside++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inside) / float64(total)
}
