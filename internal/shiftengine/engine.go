/*
DESCRIPTION
  engine.go provides Engine, a fixed worker pool that computes per-subimage
  centre-of-gravity or correlation shifts for one frame. The controller and
  worker choreography follows the three-lock fork-join protocol of spec
  §4.2: work_lock/work_cond dispatches a job to the pool, workpool_lock
  guards the finished counter, and done_lock/done_cond is held by the
  controller across dispatch so the last worker's signal is never lost.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package shiftengine computes Shack-Hartmann subimage shifts from a frame,
// in parallel across a fixed pool of worker goroutines.
package shiftengine

import (
	"sync"
	"sync/atomic"

	"github.com/ausocean/aoctl/internal/frame"
)

// Method selects the shift-measurement algorithm.
type Method int

const (
	COG  Method = iota // intensity-weighted centroid.
	CORR               // SAD-based correlation with subpixel fit.
)

// Rect is a subimage rectangle in frame coordinates: 0 <= LX < TX <= w,
// 0 <= LY < TY <= h.
type Rect struct {
	LX, LY, TX, TY int
}

func (r Rect) center() (float64, float64) {
	return float64(r.LX+r.TX) / 2, float64(r.LY+r.TY) / 2
}

// job describes one dispatch: a frame, its subimage rectangles, and the
// output shift vector to fill. Out has length 2*len(Rects); out[2*i],
// out[2*i+1] is the (dx,dy) for Rects[i].
type job struct {
	frame     *frame.Frame
	rects     []Rect
	out       []float64
	method    Method
	mini      float64
	maxShift  float64
	corrWin   int
}

// Engine is a fixed pool of W worker goroutines that jointly compute a
// shift vector for one job at a time. Engine is safe for use by a single
// controller goroutine; Dispatch blocks until the prior job (if any) has
// completed.
type Engine struct {
	workMu   sync.Mutex
	workCond *sync.Cond
	doneMu   sync.Mutex
	doneCond *sync.Cond

	poolMu         sync.Mutex
	workersFinished int
	workers         int

	job            job
	jobsRemaining  int64 // atomically decremented index, -1 meaning "done"
	generation     uint64
	seenGeneration []uint64 // per-worker last-seen generation, to avoid spurious wakeups
}

// New starts w worker goroutines and returns the running Engine.
func New(w int) *Engine {
	if w < 1 {
		w = 1
	}
	e := &Engine{workers: w, seenGeneration: make([]uint64, w)}
	e.workCond = sync.NewCond(&e.workMu)
	e.doneCond = sync.NewCond(&e.doneMu)
	for i := 0; i < w; i++ {
		go e.workerLoop(i)
	}
	return e
}

// Dispatch runs one shift computation synchronously: it fills a job,
// wakes the pool, and waits for every worker to finish before returning
// the shift vector (length 2*len(rects)).
func (e *Engine) Dispatch(f *frame.Frame, rects []Rect, method Method, mini, maxShift float64, corrWin int) []float64 {
	out := make([]float64, 2*len(rects))

	e.doneMu.Lock()
	defer e.doneMu.Unlock()

	e.workMu.Lock()
	e.job = job{frame: f, rects: rects, out: out, method: method, mini: mini, maxShift: maxShift, corrWin: corrWin}
	e.generation++
	e.jobsRemaining = int64(len(rects)) - 1
	e.poolMu.Lock()
	e.workersFinished = 0
	e.poolMu.Unlock()
	e.workCond.Broadcast()
	e.workMu.Unlock()

	// done_lock is held across dispatch, guaranteeing the last finisher's
	// broadcast (taken under the same lock) is never lost to a race.
	for {
		e.poolMu.Lock()
		finished := e.workersFinished
		e.poolMu.Unlock()
		if finished >= e.workers {
			break
		}
		e.doneCond.Wait()
	}
	return out
}

func (e *Engine) workerLoop(id int) {
	for {
		e.workMu.Lock()
		for e.generation == e.seenGeneration[id] {
			e.workCond.Wait()
		}
		gen := e.generation
		j := e.job
		e.workMu.Unlock()

		for {
			idx := atomic.AddInt64(&e.jobsRemaining, -1) + 1
			if idx < 0 {
				break
			}
			computeOne(j, int(idx))
		}

		e.seenGeneration[id] = gen

		e.poolMu.Lock()
		e.workersFinished++
		last := e.workersFinished == e.workers
		e.poolMu.Unlock()

		if last {
			e.doneMu.Lock()
			e.doneCond.Broadcast()
			e.doneMu.Unlock()
		}
	}
}

func computeOne(j job, i int) {
	rect := j.rects[i]
	var dx, dy float64
	switch j.method {
	case CORR:
		dx, dy = correlate(j.frame, rect, j.corrWin)
	default:
		dx, dy = cog(j.frame, rect, j.mini)
	}
	if dx > j.maxShift {
		dx = j.maxShift
	}
	if dx < -j.maxShift {
		dx = -j.maxShift
	}
	if dy > j.maxShift {
		dy = j.maxShift
	}
	if dy < -j.maxShift {
		dy = -j.maxShift
	}
	j.out[2*i] = dx
	j.out[2*i+1] = dy
}

// cog computes the intensity-weighted centroid of rect minus its centre,
// per spec §4.2.
func cog(f *frame.Frame, rect Rect, mini float64) (float64, float64) {
	var s, vx, vy float64
	for j := rect.LY; j < rect.TY; j++ {
		for i := rect.LX; i < rect.TX; i++ {
			p := float64(f.At(i, j))
			if p < mini {
				continue
			}
			s += p
			vx += p * float64(i)
			vy += p * float64(j)
		}
	}
	if s <= 0 {
		return 0, 0
	}
	cx, cy := rect.center()
	return vx/s - cx, vy/s - cy
}

// correlate computes the SAD-minimum shift over a +-corrWin window,
// refined with a 1-D parabolic subpixel fit along each axis.
func correlate(f *frame.Frame, rect Rect, win int) (float64, float64) {
	if win <= 0 {
		win = 1
	}
	cx, cy := rect.LX, rect.LY
	w := rect.TX - rect.LX
	h := rect.TY - rect.LY

	sad := func(ox, oy int) float64 {
		var sum float64
		for j := 0; j < h; j++ {
			for i := 0; i < w; i++ {
				a := f.At(cx+i, cy+j)
				bx, by := cx+i+ox, cy+j+oy
				if bx < 0 || by < 0 || bx >= f.W || by >= f.H {
					sum += float64(a)
					continue
				}
				b := f.At(bx, by)
				d := a - b
				if d < 0 {
					d = -d
				}
				sum += float64(d)
			}
		}
		return sum
	}

	bestOX, bestOY, best := 0, 0, sad(0, 0)
	for oy := -win; oy <= win; oy++ {
		for ox := -win; ox <= win; ox++ {
			v := sad(ox, oy)
			if v < best {
				best, bestOX, bestOY = v, ox, oy
			}
		}
	}

	dx := float64(bestOX) + parabolicOffset(sad(bestOX-1, bestOY), sad(bestOX, bestOY), sad(bestOX+1, bestOY))
	dy := float64(bestOY) + parabolicOffset(sad(bestOX, bestOY-1), sad(bestOX, bestOY), sad(bestOX, bestOY+1))
	return dx, dy
}

// parabolicOffset fits a parabola through (−1,lo), (0,mid), (1,hi) and
// returns the offset of its minimum from 0.
func parabolicOffset(lo, mid, hi float64) float64 {
	denom := lo - 2*mid + hi
	if denom == 0 {
		return 0
	}
	return 0.5 * (lo - hi) / denom
}
