/*
DESCRIPTION
  geometry.go builds the microlens-array (MLA) geometry that defines a
  Shack-Hartmann WFS: the ordered list of subimage rectangles, built
  procedurally from a lattice, heuristically from a bright-spot search, or
  loaded verbatim, per spec §4.5.1.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package wfs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/aoctl/internal/shiftengine"
)

// Shape selects the aperture test used when generating a procedural grid.
type Shape int

const (
	Square Shape = iota
	Circular
)

// GridParams configures the procedural MLA generator.
type GridParams struct {
	FrameW, FrameH int
	SubW, SubH     int     // subimage size (sx, sy)
	PitchX, PitchY int     // lattice pitch (px, py)
	RowOffset      int     // per-row x-offset, for hex packing
	DispX, DispY   int     // global centre displacement
	Shape          Shape
	Overlap        float64 // minimum fraction of the subimage inside the aperture
}

// GenerateGrid enumerates lattice positions and keeps those whose subimage
// rectangle lies sufficiently inside the aperture, per spec §4.5.1.
func GenerateGrid(p GridParams) []shiftengine.Rect {
	cx := p.FrameW/2 + p.DispX
	cy := p.FrameH/2 + p.DispY
	radius := float64(minInt(p.FrameW, p.FrameH)) / 2

	var rects []shiftengine.Rect
	row := 0
	for y := cy % p.PitchY; y < p.FrameH; y += p.PitchY {
		xOff := (row % 2) * p.RowOffset
		for x := (cx+xOff)%p.PitchX - p.PitchX; x < p.FrameW; x += p.PitchX {
			lx, ly := x, y
			tx, ty := lx+p.SubW, ly+p.SubH
			if lx < 0 || ly < 0 || tx > p.FrameW || ty > p.FrameH {
				continue
			}
			if overlapFraction(p.Shape, lx, ly, tx, ty, float64(cx), float64(cy), radius) < p.Overlap {
				continue
			}
			rects = append(rects, shiftengine.Rect{LX: lx, LY: ly, TX: tx, TY: ty})
		}
		row++
	}
	sort.Slice(rects, func(i, j int) bool {
		if rects[i].LY != rects[j].LY {
			return rects[i].LY < rects[j].LY
		}
		return rects[i].LX < rects[j].LX
	})
	return rects
}

// overlapFraction estimates, by sampling the rectangle's corners and
// centre, what fraction of a subimage lies within the chosen aperture
// shape.
func overlapFraction(shape Shape, lx, ly, tx, ty int, cx, cy, radius float64) float64 {
	pts := [][2]float64{
		{float64(lx), float64(ly)}, {float64(tx), float64(ly)},
		{float64(lx), float64(ty)}, {float64(tx), float64(ty)},
		{float64(lx+tx) / 2, float64(ly+ty) / 2},
	}
	var inside int
	for _, p := range pts {
		dx, dy := p[0]-cx, p[1]-cy
		switch shape {
		case Circular:
			if dx*dx+dy*dy <= radius*radius {
				inside++
			}
		default: // Square
			if dx >= -radius && dx <= radius && dy >= -radius && dy <= radius {
				inside++
			}
		}
	}
	return float64(inside) / float64(len(pts))
}

// BrightSpotParams configures the heuristic bright-spot MLA search.
type BrightSpotParams struct {
	SubW, SubH int
	MaxSpots   int
	Threshold  float64 // stop once the brightest remaining pixel falls below this
}

// FindBrightSpots repeatedly locates the brightest pixel remaining in f,
// records a centred subimage rectangle, and zeroes out that region from a
// working copy, per spec §4.5.1. FindBrightSpotsCV in gocv.go is the
// gocv.MinMaxLoc equivalent for withcv builds.
func FindBrightSpots(f *frame.Frame, p BrightSpotParams) []shiftengine.Rect {
	work := make([]int, f.W*f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			work[y*f.W+x] = f.At(x, y)
		}
	}

	var rects []shiftengine.Rect
	for len(rects) < p.MaxSpots {
		bx, by, bv := -1, -1, -1
		for y := 0; y < f.H; y++ {
			for x := 0; x < f.W; x++ {
				v := work[y*f.W+x]
				if v > bv {
					bv, bx, by = v, x, y
				}
			}
		}
		if bv < 0 || float64(bv) < p.Threshold {
			break
		}
		lx := clampInt(bx-p.SubW/2, 0, f.W-p.SubW)
		ly := clampInt(by-p.SubH/2, 0, f.H-p.SubH)
		rects = append(rects, shiftengine.Rect{LX: lx, LY: ly, TX: lx + p.SubW, TY: ly + p.SubH})

		for y := ly; y < ly+p.SubH && y < f.H; y++ {
			for x := lx; x < lx+p.SubW && x < f.W; x++ {
				work[y*f.W+x] = 0
			}
		}
	}
	return rects
}

// ParseRects parses the space-separated "lx ly tx ty lx ly tx ty ..."
// explicit-geometry string format of spec §4.5.1.
func ParseRects(s string) ([]shiftengine.Rect, error) {
	fields := strings.Fields(s)
	if len(fields)%4 != 0 {
		return nil, fmt.Errorf("wfs: explicit geometry has %d fields, not a multiple of 4", len(fields))
	}
	rects := make([]shiftengine.Rect, 0, len(fields)/4)
	for i := 0; i < len(fields); i += 4 {
		vals := make([]int, 4)
		for j := 0; j < 4; j++ {
			v, err := strconv.Atoi(fields[i+j])
			if err != nil {
				return nil, fmt.Errorf("wfs: bad integer %q in geometry string: %w", fields[i+j], err)
			}
			vals[j] = v
		}
		r := shiftengine.Rect{LX: vals[0], LY: vals[1], TX: vals[2], TY: vals[3]}
		if err := validateRect(r); err != nil {
			return nil, err
		}
		rects = append(rects, r)
	}
	return rects, nil
}

func validateRect(r shiftengine.Rect) error {
	if !(0 <= r.LX && r.LX < r.TX && 0 <= r.LY && r.LY < r.TY) {
		return fmt.Errorf("wfs: invalid subimage rectangle %+v", r)
	}
	return nil
}

// ContainedIn checks that every rectangle lies within a w x h frame, per
// the invariant of spec §4.5.1: mismatch must invalidate calibration.
func ContainedIn(rects []shiftengine.Rect, w, h int) error {
	for i, r := range rects {
		if r.TX > w || r.TY > h {
			return fmt.Errorf("wfs: subimage %d %+v exceeds frame bounds %dx%d", i, r, w, h)
		}
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
