// Package herit implements the Variance Estimator (spec §4.3): Haseman–
// Elston regression to estimate Vg/Ve from the GRM and centered phenotype,
// and the significance test that gates the OLS fallback. Grounded on
// FastFAM.cpp's two HEreg overloads (Mode A: dense pairwise over the
// stored GRM; Mode B: related-pairs-only vectors).
package herit

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
	"github.com/hcholab-fastfam/fastfam-go/internal/sparse"
)

// Mode selects the HE regression variant (spec §4.3 / SPEC_FULL.md feature
// 1, the --rel-only toggle).
type Mode string

const (
	ModeFull    Mode = "full"
	ModeRelOnly Mode = "rel-only"
)

const significanceThreshold = 0.05

var chiSq1 = distuv.ChiSquared{K: 1}

// Result is the output of variance estimation: (Vg, Ve, isSignificant).
type Result struct {
	Vg            float64
	Ve            float64
	IsSignificant bool
	ChiSq         float64
	P             float64
}

// Estimate runs HE regression in the given mode over the conditioned,
// mean-centered phenotype y and the sparse GRM a.
func Estimate(a *sparse.Sym, y []float64, mode Mode) (*Result, error) {
	n := len(y)
	vp := sumSquares(y) / float64(n-1)

	var vg, se2 float64
	var err error
	switch mode {
	case ModeRelOnly:
		vg, se2, err = heModeB(a, y)
	default: // ModeFull, ""
		vg, se2, err = heModeA(a, y)
	}
	if err != nil {
		return nil, err
	}

	chi2 := 0.0
	if se2 > 0 {
		chi2 = vg * vg / se2
	}
	p := chiSq1.Survival(chi2)

	return &Result{
		Vg:            vg,
		Ve:            vp - vg,
		IsSignificant: p <= significanceThreshold,
		ChiSq:         chi2,
		P:             p,
	}, nil
}

// heModeA implements FastFAM.cpp's HEreg(SpMat, VectorXd, bool&): the
// normal-equation system is accumulated over every ordered pair (i<j),
// treating size = n*n as the sample count per spec §9's documented open
// question (structural zeros count toward the degrees of freedom). Per
// FastFAM.cpp:350-358, sumZ/sumZ2 (XtY[0] and SSy) come from a dense
// cross-product of y over every i<j pair regardless of GRM sparsity; only
// sumA/sumA2/sumAZ are gated by A's structural nonzeros.
func heModeA(a *sparse.Sym, y []float64) (vg, varVg float64, err error) {
	n := len(y)
	size := float64(n) * float64(n)

	var sumZ, sumZ2 float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			zij := y[i] * y[j]
			sumZ += zij
			sumZ2 += zij * zij
		}
	}

	var sumA, sumA2, sumAZ float64
	for i := 0; i < n; i++ {
		for _, e := range a.Rows[i] {
			jCol := e.Col
			if jCol <= i {
				continue
			}
			aij := e.Val
			zij := y[i] * y[jCol]
			sumA += aij
			sumA2 += aij * aij
			sumAZ += aij * zij
		}
	}

	xtx := mat.NewDense(2, 2, []float64{
		size, sumA,
		sumA, sumA2,
	})
	xty := mat.NewVecDense(2, []float64{sumZ, sumAZ})

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(xtx); err != nil {
		// XtX is singular (e.g. A has no off-diagonal structure at all, spec
		// §8 S4): FastFAM.cpp:366-370 treats this as Vg=0 with a defined,
		// non-significant SE rather than a fatal error.
		return 0, 0, nil
	}

	var beta mat.VecDense
	beta.MulVec(&xtxInv, xty)

	betaDotXty := beta.AtVec(0)*xty.AtVec(0) + beta.AtVec(1)*xty.AtVec(1)
	sse := (sumZ2 - betaDotXty) / (size - 2)
	varVg = sse * xtxInv.At(1, 1)
	vg = beta.AtVec(1)
	return vg, varVg, nil
}

// heModeB implements FastFAM.cpp's HEreg(vector<double>&, vector<double>&,
// bool&): centers both vectors over the related-pairs-only sample, then
// fits a simple regression Vg = (A.Z)/(A.A).
func heModeB(a *sparse.Sym, y []float64) (vg, varVg float64, err error) {
	n := len(y)
	var aVals, zVals []float64
	for i := 0; i < n; i++ {
		for _, e := range a.Rows[i] {
			if e.Col <= i {
				continue
			}
			aVals = append(aVals, e.Val)
			zVals = append(zVals, y[i]*y[e.Col])
		}
	}
	m := len(aVals)
	if m < 3 {
		return 0, 0, ferr.New(ferr.EHESingular, "too few related pairs for HE Mode B")
	}

	aMean, zMean := mean(aVals), mean(zVals)
	aCentered := make([]float64, m)
	zCentered := make([]float64, m)
	for i := range aVals {
		aCentered[i] = aVals[i] - aMean
		zCentered[i] = zVals[i] - zMean
	}

	a2 := dot(aCentered, aCentered)
	if a2 < 1e-6 {
		return 0, 0, ferr.New(ferr.EHESingular, "related-pairs GRM values have ~zero variance")
	}
	az := dot(aCentered, zCentered)
	vg = az / a2

	residSq := 0.0
	for i := range aCentered {
		r := zCentered[i] - aCentered[i]*vg
		residSq += r * r
	}
	delta := residSq / float64(m-2)
	varVg = delta / a2
	return vg, varVg, nil
}

func sumSquares(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x * x
	}
	return s
}

func mean(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
