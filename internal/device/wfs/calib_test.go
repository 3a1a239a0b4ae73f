package wfs

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestLinearFitRecoversKnownSlope(t *testing.T) {
	amplitudes := []float64{-1, 1}
	// Component 0 responds with slope 2, component 1 with slope -0.5.
	samples := [][]float64{
		{-2, 0.5},
		{2, -0.5},
	}
	got, err := linearFit(amplitudes, samples)
	if err != nil {
		t.Fatalf("linearFit: %v", err)
	}
	want := []float64{2, -0.5}
	for i := range want {
		if !scalar.EqualWithinAbs(got[i], want[i], 1e-9) {
			t.Fatalf("linearFit()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLinearFitThreePointLeastSquares(t *testing.T) {
	amplitudes := []float64{-2, 0, 2}
	// Exact slope-3 response through the origin, one component.
	samples := [][]float64{
		{-6},
		{0},
		{6},
	}
	got, err := linearFit(amplitudes, samples)
	if err != nil {
		t.Fatalf("linearFit: %v", err)
	}
	if !scalar.EqualWithinAbs(got[0], 3, 1e-9) {
		t.Fatalf("linearFit()[0] = %v, want 3", got[0])
	}
}

func TestLinearFitRejectsAllZeroAmplitudes(t *testing.T) {
	if _, err := linearFit([]float64{0, 0}, [][]float64{{1}, {1}}); err == nil {
		t.Fatal("expected error for all-zero amplitudes")
	}
}

func TestLinearFitRejectsEmptySamples(t *testing.T) {
	if _, err := linearFit(nil, nil); err == nil {
		t.Fatal("expected error for empty samples")
	}
}
