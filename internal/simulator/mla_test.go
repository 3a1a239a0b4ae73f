package simulator

import "testing"

func TestSubapertureImageRejectsLowFill(t *testing.T) {
	field := make([][]float64, 8)
	for i := range field {
		field[i] = make([]float64, 8)
	}
	p := MLAParams{TelRadius: 0.05, TelAptFillMin: 0.5, MLAFac: 1}
	_, ok := SubapertureImage(field, 0, 0, 4, 4, 8, 8, p)
	if ok {
		t.Fatal("expected subaperture to be rejected for insufficient fill fraction")
	}
}

func TestSubapertureImageFlatFieldPeaksAtCentre(t *testing.T) {
	n := 4
	field := make([][]float64, n)
	for i := range field {
		field[i] = make([]float64, n)
	}
	p := MLAParams{TelRadius: 1, TelAptFillMin: 0, MLAFac: 1}
	img, ok := SubapertureImage(field, 0, 0, n, n, n, n, p)
	if !ok {
		t.Fatal("expected subaperture to pass fill-fraction check")
	}
	if len(img) != 2*n || len(img[0]) != 2*n {
		t.Fatalf("got %dx%d image, want %dx%d", len(img), len(img[0]), 2*n, 2*n)
	}

	var peak float64
	var pj, pi int
	for j, row := range img {
		for i, v := range row {
			if v > peak {
				peak, pj, pi = v, j, i
			}
		}
	}
	if pj != n || pi != n {
		t.Fatalf("flat field peak at (%d,%d), want centre (%d,%d)", pi, pj, n, n)
	}
}
