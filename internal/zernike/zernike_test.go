package zernike

import (
	"math"
	"testing"
)

func TestPistonIsConstantOne(t *testing.T) {
	// Z(0,0) (piston) is constant 1 everywhere inside the unit disc.
	for _, rho := range []float64{0, 0.3, 0.9, 1.0} {
		v := Eval(Index{0, 0}, rho, 0.7)
		if math.Abs(v-1) > 1e-9 {
			t.Fatalf("piston at rho=%v = %v, want 1", rho, v)
		}
	}
}

func TestTipTiltLinearInCoordinates(t *testing.T) {
	// Z(1,1) = rho*cos(theta) = x; Z(1,-1) = rho*sin(theta) = y.
	x, y := 0.4, -0.6
	rho := math.Hypot(x, y)
	theta := math.Atan2(y, x)
	if got := Eval(Index{1, 1}, rho, theta); math.Abs(got-x) > 1e-9 {
		t.Fatalf("x-tilt = %v, want %v", got, x)
	}
	if got := Eval(Index{1, -1}, rho, theta); math.Abs(got-y) > 1e-9 {
		t.Fatalf("y-tilt = %v, want %v", got, y)
	}
}

func TestOutsideDiscIsZero(t *testing.T) {
	basis := Basis([]Index{{2, 0}}, [][2]float64{{2, 2}})
	if basis[0][0] != 0 {
		t.Fatalf("basis outside unit disc = %v, want 0", basis[0][0])
	}
}

func TestNollSequenceLength(t *testing.T) {
	seq := NollSequence(10)
	if len(seq) != 10 {
		t.Fatalf("len(seq) = %d, want 10", len(seq))
	}
	for _, idx := range seq {
		if (idx.N-absIntPublic(idx.M))%2 != 0 {
			t.Fatalf("invalid mode %+v: n-|m| must be even", idx)
		}
	}
}

func absIntPublic(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
