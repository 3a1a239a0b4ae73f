package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/aoctl/internal/reconstruct"
	"github.com/ausocean/aoctl/internal/shiftengine"
)

func TestWriteReadMLARoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mla.csv")

	rects := []shiftengine.Rect{
		{LX: 0, LY: 0, TX: 16, TY: 16},
		{LX: 16, LY: 0, TX: 32, TY: 16},
	}
	if err := WriteMLA(path, rects); err != nil {
		t.Fatalf("WriteMLA: %v", err)
	}
	got, err := ReadMLA(path)
	if err != nil {
		t.Fatalf("ReadMLA: %v", err)
	}
	if diff := cmp.Diff(rects, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMLARejectsMalformedRow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mla.csv")
	if err := os.WriteFile(path, []byte("0,0,16\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ReadMLA(path); err == nil {
		t.Fatal("expected an error for a malformed row")
	}
}

func TestWriteVector(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refvec.csv")
	if err := WriteVector(path, []float64{1.5, -2, 0}); err != nil {
		t.Fatalf("WriteVector: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "1.5\n-2\n0\n"
	if string(b) != want {
		t.Fatalf("got %q, want %q", string(b), want)
	}
}

func TestWriteSVDDiagnostics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svd.csv")
	r := &reconstruct.Reconstructor{
		SingularValues: []float64{3, 2, 1},
		ModesUsed:      2,
		PowerFraction:  0.9,
		Condition:      3,
	}
	if err := WriteSVDDiagnostics(path, r); err != nil {
		t.Fatalf("WriteSVDDiagnostics: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "3\n2\n1\nsummary,2,0.9,3\n"
	if string(b) != want {
		t.Fatalf("got %q, want %q", string(b), want)
	}
}
