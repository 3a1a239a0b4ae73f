package simulator

import "testing"

func TestExposeClampsAndScales(t *testing.T) {
	img := [][]float64{{0, 500}, {-10, 100}}
	p := CCDParams{Exposure: 1, Offset: 0, Gain: 1, NoiseAmp: 0}
	out := Expose(img, p, nil)

	want := [][]uint8{{0, 255}, {0, 100}}
	for j := range want {
		for i := range want[j] {
			if out[j][i] != want[j][i] {
				t.Errorf("[%d][%d] = %d, want %d", j, i, out[j][i], want[j][i])
			}
		}
	}
}

func TestExposeAppliesOffsetAndGain(t *testing.T) {
	img := [][]float64{{10}}
	p := CCDParams{Exposure: 2, Offset: 5, Gain: 1, NoiseAmp: 0}
	out := Expose(img, p, nil)
	if out[0][0] != 25 {
		t.Fatalf("got %d, want 25", out[0][0])
	}
}
