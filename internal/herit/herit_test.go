package herit

import (
	"math"
	"testing"

	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
	"github.com/hcholab-fastfam/fastfam-go/internal/sparse"
)

// TestEstimateModeATriviality covers spec §8 scenario S4: A = I (no
// off-diagonal structural nonzeros) must yield Vg=0 and isSignificant=false.
func TestEstimateModeATriviality(t *testing.T) {
	n := 4
	a := sparse.NewSym(n)
	for i := 0; i < n; i++ {
		a.SetDiag(i, 1)
	}
	a.Finalize()

	y := []float64{-1.5, -0.5, 0.5, 1.5}
	res, err := Estimate(a, y, ModeFull)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if res.Vg != 0 {
		t.Fatalf("Vg = %v, want 0 (no off-diagonal pairs)", res.Vg)
	}
	if res.IsSignificant {
		t.Fatalf("expected isSignificant=false when A has no off-diagonal structure")
	}
}

// TestEstimateModeASymmetry covers spec §8 invariant 3: Mode-A HE output is
// invariant under simultaneous permutation of samples in y and A.
func TestEstimateModeASymmetry(t *testing.T) {
	n := 4
	a := sparse.NewSym(n)
	a.SetPair(0, 1, 0.5)
	a.SetPair(0, 2, 0.1)
	a.SetPair(1, 3, 0.3)
	for i := 0; i < n; i++ {
		a.SetDiag(i, 1)
	}
	a.Finalize()
	y := []float64{1.2, -0.4, 0.7, -1.5}

	res1, err := Estimate(a, y, ModeFull)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}

	// Permute: new order = [2, 0, 3, 1].
	perm := []int{2, 0, 3, 1}
	oldToNew := make(map[int]int, n)
	for newI, oldI := range perm {
		oldToNew[oldI] = newI
	}
	ap := sparse.NewSym(n)
	for oldI := 0; oldI < n; oldI++ {
		for _, e := range a.Rows[oldI] {
			ap.Rows[oldToNew[oldI]] = append(ap.Rows[oldToNew[oldI]], sparse.Entry{
				Row: oldToNew[oldI], Col: oldToNew[e.Col], Val: e.Val,
			})
		}
	}
	ap.Finalize()
	yp := make([]float64, n)
	for newI, oldI := range perm {
		yp[newI] = y[oldI]
	}

	res2, err := Estimate(ap, yp, ModeFull)
	if err != nil {
		t.Fatalf("Estimate (permuted): %v", err)
	}

	if math.Abs(res1.Vg-res2.Vg) > 1e-9 {
		t.Fatalf("Vg not permutation-invariant: %v vs %v", res1.Vg, res2.Vg)
	}
	if math.Abs(res1.P-res2.P) > 1e-9 {
		t.Fatalf("p not permutation-invariant: %v vs %v", res1.P, res2.P)
	}
}

func TestEstimateModeBTooFewPairsFails(t *testing.T) {
	n := 3
	a := sparse.NewSym(n)
	a.SetPair(0, 1, 0.5)
	a.Finalize()
	y := []float64{1, 2, 3}

	_, err := Estimate(a, y, ModeRelOnly)
	if !ferr.AsKind(err, ferr.EHESingular) {
		t.Fatalf("expected E_HE_SINGULAR, got %v", err)
	}
}

func TestEstimateModeBBasic(t *testing.T) {
	n := 6
	a := sparse.NewSym(n)
	a.SetPair(0, 1, 0.5)
	a.SetPair(0, 2, 0.3)
	a.SetPair(1, 3, 0.2)
	a.SetPair(2, 4, 0.4)
	a.SetPair(3, 5, 0.1)
	a.Finalize()
	y := []float64{1.0, -0.5, 0.8, -1.2, 0.3, -0.1}

	res, err := Estimate(a, y, ModeRelOnly)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.IsNaN(res.Vg) || math.IsNaN(res.P) {
		t.Fatalf("Mode B produced NaN result: %+v", res)
	}
}
