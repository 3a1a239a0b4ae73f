/*
DESCRIPTION
  calib.go implements influence-matrix calibration (spec §4.5.3) and the
  composed zero->influence->svd orchestrator supplemented from
  original_source's mods/shwfs.cc calib() method (see SPEC_FULL.md §4).

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
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/aoctl/internal/frame"
	"github.com/ausocean/aoctl/internal/reconstruct"
)

// ActuatorDriver is the minimal surface CalibInfluence needs from a WFC:
// push one actuator to a known amplitude and actuate, without going
// through the full modal control-law path.
type ActuatorDriver interface {
	Name() string
	SetActuator(idx int, amp float64) error
	Nact() int
}

// CalibInfluence implements spec §4.5.3: for each actuator and each
// amplitude, set the WFC to zero, push that actuator, wait for a fresh
// frame (skipping one to avoid stale data), measure shifts, and fit a
// linear response per actuator across amplitudes to build one column of
// the influence matrix.
func (w *WFS) CalibInfluence(ctx context.Context, cam Camera, wfc ActuatorDriver, amplitudes []float64, cutoff float64) (*reconstruct.Reconstructor, error) {
	if len(amplitudes) == 0 {
		return nil, fmt.Errorf("wfs: calib influence needs at least one amplitude")
	}
	nact := wfc.Nact()
	cols := make([][]float64, nact)

	for j := 0; j < nact; j++ {
		samples := make([][]float64, len(amplitudes))
		for p, amp := range amplitudes {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			for k := 0; k < nact; k++ {
				if err := wfc.SetActuator(k, 0); err != nil {
					return nil, fmt.Errorf("wfs: zeroing actuator %d: %w", k, err)
				}
			}
			if err := wfc.SetActuator(j, amp); err != nil {
				return nil, fmt.Errorf("wfs: pushing actuator %d to %v: %w", j, amp, err)
			}

			f, err := freshFrame(ctx, cam)
			if err != nil {
				return nil, fmt.Errorf("wfs: waiting for fresh frame: %w", err)
			}
			f, err = freshFrame(ctx, cam) // skip one, per spec §4.5.3 step 2.
			if err != nil {
				return nil, fmt.Errorf("wfs: waiting for fresh frame: %w", err)
			}

			info, err := w.Measure(f)
			if err != nil {
				return nil, fmt.Errorf("wfs: measuring push-pull response: %w", err)
			}
			samples[p] = info.WFAmp
		}
		col, err := linearFit(amplitudes, samples)
		if err != nil {
			return nil, fmt.Errorf("wfs: actuator %d: %w", j, err)
		}
		cols[j] = col
	}
	w.setLastStep(StepInfluence)

	m := MatrixFromRows(cols)
	r, err := reconstruct.Build(m, cutoff)
	if err != nil {
		return nil, errors.Wrapf(err, "wfs: building reconstructor for wfc %q", wfc.Name())
	}
	w.SetReconstructor(wfc.Name(), r)
	w.setLastStep(StepSVD)
	return r, nil
}

// RebuildSVD re-truncates the already-measured influence matrix for wfcname
// at a new cutoff (the standalone "calib svd" command), without re-running
// the push-pull measurement CalibInfluence entails.
func (w *WFS) RebuildSVD(wfcname string, cutoff float64) (*reconstruct.Reconstructor, error) {
	prev, ok := w.Reconstructor(wfcname)
	if !ok {
		return nil, fmt.Errorf("wfs: no influence matrix measured yet for wfc %q", wfcname)
	}
	r, err := reconstruct.Build(prev.M, cutoff)
	if err != nil {
		return nil, errors.Wrapf(err, "wfs: rebuilding svd for wfc %q", wfcname)
	}
	w.SetReconstructor(wfcname, r)
	w.setLastStep(StepSVD)
	return r, nil
}

// linearFit computes, for each shift-vector component, the least-squares
// slope of samples[p][i] against amplitudes[p] through the origin
// (push-pull is linearised around zero).
func linearFit(amplitudes []float64, samples [][]float64) ([]float64, error) {
	if len(samples) == 0 || len(samples[0]) == 0 {
		return nil, fmt.Errorf("no samples to fit")
	}
	n := len(samples[0])
	out := make([]float64, n)
	var sumAA float64
	for _, a := range amplitudes {
		sumAA += a * a
	}
	if sumAA == 0 {
		return nil, fmt.Errorf("all amplitudes are zero")
	}
	for i := 0; i < n; i++ {
		var sumAY float64
		for p, a := range amplitudes {
			sumAY += a * samples[p][i]
		}
		out[i] = sumAY / sumAA
	}
	return out, nil
}

// freshFrame blocks for the next frame published by cam's ring.
func freshFrame(ctx context.Context, cam Camera) (*frame.Frame, error) {
	ring := cam.Ring()
	seen := ring.Count()
	if seen > 0 {
		seen--
	}
	type result struct {
		f *frame.Frame
	}
	ch := make(chan result, 1)
	go func() { ch <- result{ring.Next(seen, true)} }()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.f, nil
	}
}

// CalibStep names one stage of the composed Calibrate orchestrator.
type CalibStep int

const (
	StepNone CalibStep = iota - 1
	StepZero
	StepInfluence
	StepSVD
)

func (s CalibStep) String() string {
	switch s {
	case StepZero:
		return "zero"
	case StepInfluence:
		return "influence"
	case StepSVD:
		return "svd"
	default:
		return "none"
	}
}

// CalibParams bundles the parameters the composed Calibrate needs.
type CalibParams struct {
	Amplitudes []float64
	Cutoff     float64
}

// Zero implements spec §4.5.3 step 1 and the standalone "calib zero"
// command: disable simulated seeing and WFC error sources (if sim is
// non-nil), reset the WFC, acquire a fresh frame, and set it as the new
// reference. Returns the resulting reference vector.
func (w *WFS) Zero(ctx context.Context, cam Camera, wfcReset func() error, sim SimControl) ([]float64, error) {
	if sim != nil {
		sim.SetSeeingEnabled(false)
		sim.SetWFCErrEnabled(false)
	}

	if err := wfcReset(); err != nil {
		return nil, errors.Wrap(err, "wfs: calibrate: resetting wfc")
	}
	f, err := freshFrame(ctx, cam)
	if err != nil {
		return nil, errors.Wrap(err, "wfs: calibrate zero")
	}
	if err := w.SetReference(f); err != nil {
		return nil, errors.Wrap(err, "wfs: calibrate zero")
	}
	w.setLastStep(StepZero)
	return w.Reference(), nil
}

// Calibrate runs zero -> influence -> svd as one composed operation
// (original_source mods/shwfs.cc calib()), per spec §4.5.3, in addition to
// the individually addressable calib zero|influence|svd commands that
// reuse the same Zero/CalibInfluence/RebuildSVD steps.
func (w *WFS) Calibrate(ctx context.Context, cam Camera, wfc ActuatorDriver, wfcReset func() error, sim SimControl, p CalibParams) (*reconstruct.Reconstructor, error) {
	if _, err := w.Zero(ctx, cam, wfcReset, sim); err != nil {
		return nil, err
	}
	return w.CalibInfluence(ctx, cam, wfc, p.Amplitudes, p.Cutoff)
}
