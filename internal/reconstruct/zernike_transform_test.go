package reconstruct

import "testing"

func TestBuildZernikeTransformShape(t *testing.T) {
	positions := [][2]float64{
		{-0.5, -0.5}, {0.5, -0.5}, {-0.5, 0.5}, {0.5, 0.5},
		{0, 0},
	}
	const nmodes = 3
	tr := BuildZernikeTransform(nmodes, positions)
	rows, cols := tr.B.Dims()
	if rows != nmodes {
		t.Fatalf("got %d rows, want %d", rows, nmodes)
	}
	if want := 2 * len(positions); cols != want {
		t.Fatalf("got %d cols, want %d", cols, want)
	}
}

func TestBuildZernikeTransformAppliesToShiftVector(t *testing.T) {
	positions := [][2]float64{{-0.5, 0}, {0.5, 0}, {0, -0.5}, {0, 0.5}}
	tr := BuildZernikeTransform(4, positions)

	shift := make([]float64, 2*len(positions))
	for i := range shift {
		shift[i] = 0.1
	}
	amp := tr.Apply(shift)
	if len(amp) != 4 {
		t.Fatalf("got %d amplitudes, want 4", len(amp))
	}
	for i, v := range amp {
		if v != v { // NaN check without importing math
			t.Fatalf("amplitude %d is NaN", i)
		}
	}
}

func TestTransformApplyNilPassesThrough(t *testing.T) {
	var tr *Transform
	shift := []float64{1, 2, 3}
	got := tr.Apply(shift)
	for i, v := range got {
		if v != shift[i] {
			t.Fatalf("nil transform should pass through: got %v, want %v", got, shift)
		}
	}
}
