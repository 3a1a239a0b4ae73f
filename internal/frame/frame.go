/*
DESCRIPTION
  frame.go provides Frame, the immutable unit of image data passed from a
  camera device through the measurement and display pipeline.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package frame provides the Frame type and FrameRing, a bounded ring
// buffer of frames shared between a camera's capture thread and any
// number of reader goroutines (the loop engine, GUIs, monitors).
package frame

import (
	"fmt"
	"math"
	"time"
)

// Depth is the bit depth of a frame's pixels.
type Depth int

// Supported pixel depths.
const (
	Depth8  Depth = 8
	Depth16 Depth = 16
	Depth32 Depth = 32
)

// Size returns the number of bytes required to store w*h pixels at depth d.
func (d Depth) Size(w, h int) int {
	return ((int(d) + 7) / 8) * w * h
}

// Stats holds lazily-computed per-frame statistics.
type Stats struct {
	Min, Max int
	Mean, RMS float64
	Histogram []int
}

// Frame is an immutable, timestamped image once it has been published into
// a FrameRing. The camera owns Pix for the lifetime of the ring slot it
// occupies; FrameRing.Queue hands the evicted Frame back to its caller so
// the backing store can be recycled into the next acquisition.
type Frame struct {
	ID    uint64
	Pix   []byte
	Depth Depth
	W, H  int
	Time  time.Time

	stats *Stats
}

// New validates the geometry invariant size == ceil(depth/8)*w*h and
// returns a new Frame.
func New(id uint64, pix []byte, depth Depth, w, h int, t time.Time) (*Frame, error) {
	want := depth.Size(w, h)
	if len(pix) != want {
		return nil, fmt.Errorf("frame: bad size: got %d bytes, want %d for %dx%d at depth %d", len(pix), want, w, h, depth)
	}
	return &Frame{ID: id, Pix: pix, Depth: depth, W: w, H: h, Time: t}, nil
}

// Size returns the number of bytes backing the frame.
func (f *Frame) Size() int { return len(f.Pix) }

// At returns the pixel value at (x,y), widened to int regardless of depth.
func (f *Frame) At(x, y int) int {
	i := y*f.W + x
	switch f.Depth {
	case Depth8:
		return int(f.Pix[i])
	case Depth16:
		o := i * 2
		return int(f.Pix[o]) | int(f.Pix[o+1])<<8
	case Depth32:
		o := i * 4
		return int(f.Pix[o]) | int(f.Pix[o+1])<<8 | int(f.Pix[o+2])<<16 | int(f.Pix[o+3])<<24
	default:
		return 0
	}
}

// Stats computes (and memoises) min/max/mean/rms/histogram over the frame.
// The computation is deferred until first requested, since many consumers
// of a Frame (the shift engine, network transmission) never need it.
func (f *Frame) Stats() Stats {
	if f.stats != nil {
		return *f.stats
	}
	s := Stats{Min: math.MaxInt32, Histogram: make([]int, 1<<uint(minInt(int(f.Depth), 16)))}
	var sum, sumSq float64
	n := f.W * f.H
	for i := 0; i < n; i++ {
		v := f.At(i%f.W, i/f.W)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		sum += float64(v)
		sumSq += float64(v) * float64(v)
		if v < len(s.Histogram) {
			s.Histogram[v]++
		}
	}
	if n > 0 {
		s.Mean = sum / float64(n)
		s.RMS = math.Sqrt(sumSq / float64(n))
	}
	f.stats = &s
	return s
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
