package simulator

import (
	"math/rand"
	"testing"
)

func TestCameraAcquireFrameProducesExpectedGeometry(t *testing.T) {
	const w, h = 32, 32
	source := make([][]float64, 64)
	for i := range source {
		source[i] = make([]float64, 64)
	}
	seeing := NewSeeing(source, w, h, 0, 0, 1, Linear)
	errSrc := NewErrorSource(ActuatorGrid{Positions: [][2]float64{{0, 0}}, ActSize: 0.3}, 0.5)

	subs := []Subimage{{LX: 0, LY: 0, TX: 8, TY: 8}}
	mla := MLAParams{TelRadius: 1, TelAptFillMin: 0, MLAFac: 1}
	ccd := CCDParams{NoiseAmp: 0}

	cam := NewCamera(w, h, subs, mla, ccd, seeing, errSrc, nil, rand.NewSource(1))
	f, err := cam.AcquireFrame(1, 1, 0)
	if err != nil {
		t.Fatalf("AcquireFrame: %v", err)
	}
	if f.W != w || f.H != h {
		t.Fatalf("got %dx%d frame, want %dx%d", f.W, f.H, w, h)
	}
	if f.Depth != 8 {
		t.Fatalf("got depth %d, want 8", f.Depth)
	}
}

func TestCameraAcquireFrameAssignsSequentialIDs(t *testing.T) {
	const w, h = 16, 16
	source := make([][]float64, 32)
	for i := range source {
		source[i] = make([]float64, 32)
	}
	seeing := NewSeeing(source, w, h, 0, 0, 1, Linear)
	errSrc := NewErrorSource(ActuatorGrid{Positions: [][2]float64{{0, 0}}, ActSize: 0.3}, 0.5)
	cam := NewCamera(w, h, nil, MLAParams{}, CCDParams{}, seeing, errSrc, nil, rand.NewSource(2))

	f0, _ := cam.AcquireFrame(1, 1, 0)
	f1, _ := cam.AcquireFrame(1, 1, 0)
	if f0.ID != 0 || f1.ID != 1 {
		t.Fatalf("got ids %d,%d, want 0,1", f0.ID, f1.ID)
	}
}
