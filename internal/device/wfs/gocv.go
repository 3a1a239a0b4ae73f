//go:build withcv
// +build withcv

/*
DESCRIPTION
  gocv.go provides a gocv-backed bright-spot search over the MLA, for
  builds where OpenCV is available and the stdlib brute-force scan in
  geometry.go isn't fast enough for a full-resolution sensor. Gated behind
  the withcv build tag exactly as camera/gocv.go gates its gocv additions.

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
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/aoctl/internal/shiftengine"
)

// frameToMat packs f's pixel data into a single-channel 32-bit float
// gocv.Mat, preserving full dynamic range for gocv.MinMaxLoc.
func frameToMat(f *frame.Frame) (gocv.Mat, error) {
	buf := make([]float32, f.W*f.H)
	for i := range buf {
		buf[i] = float32(f.At(i%f.W, i/f.W))
	}
	m, err := gocv.NewMatFromBytes(f.H, f.W, gocv.MatTypeCV32FC1, float32SliceToBytes(buf))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("wfs: frameToMat: %w", err)
	}
	return m, nil
}

// FindBrightSpotsCV is the gocv.MinMaxLoc equivalent of FindBrightSpots:
// it repeatedly locates the brightest remaining pixel via MinMaxLoc,
// records a centred subimage rectangle, and blanks that region out of the
// working Mat, matching FindBrightSpots's stop conditions exactly.
func FindBrightSpotsCV(f *frame.Frame, p BrightSpotParams) ([]shiftengine.Rect, error) {
	work, err := frameToMat(f)
	if err != nil {
		return nil, err
	}
	defer work.Close()

	var rects []shiftengine.Rect
	for len(rects) < p.MaxSpots {
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(work)
		if float64(maxVal) < p.Threshold {
			break
		}
		bx, by := maxLoc.X, maxLoc.Y
		lx := clampInt(bx-p.SubW/2, 0, f.W-p.SubW)
		ly := clampInt(by-p.SubH/2, 0, f.H-p.SubH)
		rects = append(rects, shiftengine.Rect{LX: lx, LY: ly, TX: lx + p.SubW, TY: ly + p.SubH})

		tx := lx + p.SubW
		if tx > f.W {
			tx = f.W
		}
		ty := ly + p.SubH
		if ty > f.H {
			ty = f.H
		}
		roi := work.Region(image.Rect(lx, ly, tx, ty))
		roi.SetTo(gocv.NewScalar(0, 0, 0, 0))
		roi.Close()
	}
	return rects, nil
}

// float32SliceToBytes reinterprets a []float32 as its little-endian byte
// representation, as gocv.NewMatFromBytes expects for CV32F Mats.
func float32SliceToBytes(buf []float32) []byte {
	out := make([]byte, 4*len(buf))
	for i, v := range buf {
		bits := math.Float32bits(v)
		out[4*i+0] = byte(bits)
		out[4*i+1] = byte(bits >> 8)
		out[4*i+2] = byte(bits >> 16)
		out[4*i+3] = byte(bits >> 24)
	}
	return out
}
