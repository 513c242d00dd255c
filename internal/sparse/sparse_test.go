package sparse

import (
	"math"
	"testing"
)

func TestSymSetPairBothTriangles(t *testing.T) {
	a := NewSym(3)
	a.SetPair(0, 1, 0.5)
	a.SetDiag(0, 1)
	a.SetDiag(1, 1)
	a.Finalize()

	if len(a.Rows[0]) != 2 || len(a.Rows[1]) != 2 {
		t.Fatalf("expected both triangles materialized: row0=%v row1=%v", a.Rows[0], a.Rows[1])
	}
	dense := a.Dense()
	if dense[0*3+1] != 0.5 || dense[1*3+0] != 0.5 {
		t.Fatalf("Dense() not symmetric: %v", dense)
	}
}

func TestScaleAndShiftDiag(t *testing.T) {
	a := NewSym(2)
	a.SetPair(0, 1, 2.0)
	a.SetDiag(0, 1.0)
	a.SetDiag(1, 1.0)
	a.Finalize()

	a.ScaleAndShiftDiag(0.5, 0.25)
	dense := a.Dense()
	// diagonal: 1*0.5 + 0.25 = 0.75; off-diagonal: 2*0.5 = 1.0
	if math.Abs(dense[0]-0.75) > 1e-12 || math.Abs(dense[3]-0.75) > 1e-12 {
		t.Fatalf("diagonal not scaled+shifted: %v", dense)
	}
	if math.Abs(dense[1]-1.0) > 1e-12 || math.Abs(dense[2]-1.0) > 1e-12 {
		t.Fatalf("off-diagonal not scaled: %v", dense)
	}
}

func TestMulVecIdentity(t *testing.T) {
	n := 3
	a := NewSym(n)
	for i := 0; i < n; i++ {
		a.SetDiag(i, 1)
	}
	a.Finalize()
	x := []float64{1, 2, 3}
	out := make([]float64, n)
	a.MulVec(out, x)
	for i := range x {
		if out[i] != x[i] {
			t.Fatalf("MulVec with identity changed x: %v", out)
		}
	}
}

// TestLDLTRoundTrip covers spec §8 invariant 4 in miniature: ||V*Vinv - I||
// should be near zero for a small, well-conditioned diagonally-dominant V.
func TestLDLTRoundTrip(t *testing.T) {
	n := 5
	a := NewSym(n)
	a.SetPair(0, 1, 0.1)
	a.SetPair(1, 2, 0.1)
	a.SetPair(2, 3, 0.1)
	a.SetPair(3, 4, 0.1)
	for i := 0; i < n; i++ {
		a.SetDiag(i, 1.0)
	}
	a.Finalize()

	factor, err := Compute(a, MethodLDLT)
	if err != nil || !factor.Ok() {
		t.Fatalf("Compute: %v", err)
	}

	maxErr := 0.0
	for col := 0; col < n; col++ {
		e := make([]float64, n)
		e[col] = 1
		x, err := factor.Solve(e)
		if err != nil {
			t.Fatalf("Solve: %v", err)
		}
		// reconstruct (V*x)[row] and compare to e[row]
		vx := make([]float64, n)
		a.MulVec(vx, x)
		for row := 0; row < n; row++ {
			want := 0.0
			if row == col {
				want = 1
			}
			if d := math.Abs(vx[row] - want); d > maxErr {
				maxErr = d
			}
		}
	}
	if maxErr > 1e-9 {
		t.Fatalf("||V*Vinv - I||_max = %v, want < 1e-9", maxErr)
	}
}

func TestConjugateGradientMatchesDirect(t *testing.T) {
	n := 5
	a := NewSym(n)
	a.SetPair(0, 1, 0.1)
	a.SetPair(1, 2, 0.1)
	a.SetPair(2, 3, 0.1)
	a.SetPair(3, 4, 0.1)
	for i := 0; i < n; i++ {
		a.SetDiag(i, 1.0)
	}
	a.Finalize()

	b := []float64{1, 0, -1, 2, 0.5}

	direct, err := Compute(a, MethodLDLT)
	if err != nil {
		t.Fatalf("Compute(ldlt): %v", err)
	}
	xDirect, err := direct.Solve(b)
	if err != nil {
		t.Fatalf("Solve(ldlt): %v", err)
	}

	iterative, err := Compute(a, MethodCG)
	if err != nil {
		t.Fatalf("Compute(cg): %v", err)
	}
	xCG, err := iterative.Solve(b)
	if err != nil {
		t.Fatalf("Solve(cg): %v", err)
	}

	for i := range xDirect {
		if math.Abs(xDirect[i]-xCG[i]) > 1e-6 {
			t.Fatalf("cg diverges from direct solve at %d: %v vs %v", i, xCG[i], xDirect[i])
		}
	}
}

func TestComputeRejectsNonPD(t *testing.T) {
	n := 2
	a := NewSym(n)
	a.SetPair(0, 1, 10) // wildly off-diagonal-dominant, not PD
	a.SetDiag(0, 1)
	a.SetDiag(1, 1)
	a.Finalize()

	_, err := Compute(a, MethodLDLT)
	if err == nil {
		t.Fatalf("expected E_VINV_FACTOR for a non-positive-definite matrix")
	}
}
