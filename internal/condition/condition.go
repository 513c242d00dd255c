// Package condition implements the Phenotype Conditioner (spec §4.2):
// regresses the phenotype on covariates via an LDLT-factored normal-equation
// solve, replaces the phenotype with residuals, then mean-centers. Grounded
// on FastFAM.cpp's conditionCovarReg, translated from Eigen's
// `(t_covar*covar).ldlt().solve(t_covar*pheno)` into gonum's mat.Cholesky
// (CᵀC is symmetric PD whenever full rank, so Cholesky and LDLT coincide;
// gonum has no separate indefinite LDLT type suited to a dense small k×k
// system here).
package condition

import (
	"gonum.org/v1/gonum/mat"

	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
)

// Condition mutates y in place: y ← y − C·β, then mean-centers. C is read
// only. When covar is nil, the step reduces to subtracting the mean.
func Condition(y []float64, covar *mat.Dense) error {
	n := len(y)
	if covar != nil {
		rows, k := covar.Dims()
		if rows != n {
			return ferr.New(ferr.ESingularCovar, "covariate row count does not match phenotype length")
		}

		yVec := mat.NewVecDense(n, y)

		var ctcDense mat.Dense
		ctcDense.Mul(covar.T(), covar)
		var ctcSym mat.SymDense
		ctcSym.ReuseAsSym(k)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				ctcSym.SetSym(i, j, ctcDense.At(i, j))
			}
		}

		var cty mat.VecDense
		cty.MulVec(covar.T(), yVec)

		var chol mat.Cholesky
		if ok := chol.Factorize(&ctcSym); !ok {
			return ferr.New(ferr.ESingularCovar, "CtC is not full rank")
		}

		var beta mat.VecDense
		if err := chol.SolveVecTo(&beta, &cty); err != nil {
			return ferr.Wrap(ferr.ESingularCovar, err, "solving normal equations")
		}

		var fitted mat.VecDense
		fitted.MulVec(covar, &beta)
		for i := 0; i < n; i++ {
			y[i] -= fitted.AtVec(i)
		}
	}

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)
	for i := range y {
		y[i] -= mean
	}
	return nil
}
