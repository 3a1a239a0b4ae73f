package telescope

import (
	"io"
	"testing"

	"github.com/ausocean/utils/logging"
)

type fakeDriver struct {
	x, y   float64
	failOn error
}

func (d *fakeDriver) SetTrackOffset(x, y float64) error {
	if d.failOn != nil {
		return d.failOn
	}
	d.x, d.y = x, y
	return nil
}

func newTestTelescope() (*Telescope, *fakeDriver) {
	d := &fakeDriver{}
	return New("tel0", d, logging.New(logging.Debug, io.Discard, false)), d
}

func TestSetTrackOffsetAppliesScaledPGain(t *testing.T) {
	tel, d := newTestTelescope()
	tel.SetGain(Gain{P: 0.5})
	tel.SetScaleFactor(2, 2)

	if err := tel.SetTrackOffset(1, 1); err != nil {
		t.Fatalf("SetTrackOffset: %v", err)
	}
	x, y := tel.Track()
	if x != 1 || y != 1 {
		t.Fatalf("Track() = (%v,%v), want (1,1)", x, y)
	}
	if d.x != 1 || d.y != 1 {
		t.Fatalf("driver saw (%v,%v), want (1,1)", d.x, d.y)
	}
}

func TestGainAndUnitsRoundTrip(t *testing.T) {
	tel, _ := newTestTelescope()
	tel.SetGain(Gain{P: 0.25, I: 0.1, D: 0.05})
	tel.SetScaleFactor(3.5, 4.5)

	if g := tel.Gain(); g.P != 0.25 || g.I != 0.1 || g.D != 0.05 {
		t.Fatalf("Gain() = %+v, want {0.25 0.1 0.05}", g)
	}
	sx, sy := tel.Units()
	if sx != 3.5 || sy != 4.5 {
		t.Fatalf("Units() = (%v,%v), want (3.5,4.5)", sx, sy)
	}
}

func TestPixShiftReportsRawOffset(t *testing.T) {
	tel, _ := newTestTelescope()
	tel.SetScaleFactor(2, 4)
	if err := tel.SetTrackOffset(3, 3); err != nil {
		t.Fatalf("SetTrackOffset: %v", err)
	}
	px, py := tel.PixShift()
	if px != 3 || py != 3 {
		t.Fatalf("PixShift() = (%v,%v), want (3,3) (raw, unscaled)", px, py)
	}
}
