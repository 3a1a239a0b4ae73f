//go:build withcv
// +build withcv

/*
DESCRIPTION
  gocv.go provides gocv-backed implementations of thumbnail downsampling
  and dark/flat correction, for builds where OpenCV is available and the
  stdlib nearest-neighbour versions in camera.go aren't fast enough for a
  full-resolution sensor. Gated behind the withcv build tag exactly as the
  teacher gates device/webcam and exp/gocv-exp.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package camera

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ausocean/aoctl/internal/frame"
)

// frameToMat packs f's pixel data into a single-channel 8-bit gocv.Mat,
// scaling down from its native bit depth the same way Thumbnail does.
func frameToMat(f *frame.Frame) (gocv.Mat, error) {
	maxVal := (1 << uint(f.Depth)) - 1
	buf := make([]uint8, f.W*f.H)
	for i := range buf {
		buf[i] = uint8(f.At(i%f.W, i/f.W) * 255 / maxVal)
	}
	m, err := gocv.NewMatFromBytes(f.H, f.W, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("camera: frameToMat: %w", err)
	}
	return m, nil
}

// ThumbnailCV downsamples f to w x h via gocv's area-interpolation resize,
// an alternative to Thumbnail's nearest-neighbour sampling.
func ThumbnailCV(f *frame.Frame, w, h int) ([]byte, error) {
	src, err := frameToMat(f)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(w, h), 0, 0, gocv.InterpolationArea)

	return dst.ToBytes(), nil
}

// CorrectCV applies (raw - dark) * flat via gocv matrix arithmetic,
// an alternative to Correct's scalar loop for large frames.
func (c *Camera) CorrectCV(f *frame.Frame) ([]byte, error) {
	raw, err := frameToMat(f)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	darkBuf := make([]uint8, f.W*f.H)
	flatBuf := make([]uint8, f.W*f.H)
	for i := range darkBuf {
		flatBuf[i] = 255
	}
	if c.dark.n > 0 {
		for i := range darkBuf {
			if i < len(c.dark.sum) {
				darkBuf[i] = uint8(float64(c.dark.sum[i]) / float64(c.dark.n))
			}
		}
	}
	if c.flat.n > 0 {
		for i := range flatBuf {
			if i < len(c.flat.sum) {
				flatBuf[i] = uint8(float64(c.flat.sum[i]) / float64(c.flat.n))
			}
		}
	}
	dark, err := gocv.NewMatFromBytes(f.H, f.W, gocv.MatTypeCV8UC1, darkBuf)
	if err != nil {
		return nil, fmt.Errorf("camera: dark mat: %w", err)
	}
	defer dark.Close()
	flat, err := gocv.NewMatFromBytes(f.H, f.W, gocv.MatTypeCV8UC1, flatBuf)
	if err != nil {
		return nil, fmt.Errorf("camera: flat mat: %w", err)
	}
	defer flat.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(raw, dark, &diff)

	out := gocv.NewMat()
	defer out.Close()
	gocv.Multiply(diff, flat, &out)

	return out.ToBytes(), nil
}
