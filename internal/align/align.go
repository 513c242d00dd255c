// Package align implements the Sample Aligner (spec §4.1): it intersects the
// phenotype, covariate, and GRM id sets and fixes a single canonical sample
// order used by every downstream structure. Grounded on the id-matching
// logic of original_source/src/FastFAM.cpp's getCommonSampleIndex, expressed
// as plain Go slice/map operations rather than the C++ source's vector
// scanning.
package align

import (
	"gonum.org/v1/gonum/mat"

	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
)

// Alignment holds the canonical order and the permutation from each input
// source's order into it.
type Alignment struct {
	Canonical []string // S, in canonical order

	// PhenoPerm[i] is the index into the phenotype file's order that
	// supplies Canonical[i]. CovarPerm/GRMPerm are analogous and nil when
	// that source was absent.
	PhenoPerm []int
	CovarPerm []int
	GRMPerm   []int
}

// Align computes the canonical order per spec §4.1. pheno is required;
// covar and grm may be nil to indicate "not present".
func Align(pheno []string, covar []string, grm []string) (*Alignment, error) {
	if len(pheno) == 0 {
		return nil, ferr.New(ferr.EAlign, "phenotype id list is empty")
	}

	var s0 []string
	if covar != nil {
		covarSet := make(map[string]bool, len(covar))
		for _, id := range covar {
			covarSet[id] = true
		}
		for _, id := range pheno {
			if covarSet[id] {
				s0 = append(s0, id)
			}
		}
	} else {
		s0 = append(s0, pheno...)
	}

	var canonical []string
	if grm != nil {
		grmIndex := make(map[string]int, len(grm))
		for i, id := range grm {
			grmIndex[id] = i
		}
		// s0 members present in grm, in ascending order of their index
		// into grm (pins the order to the GRM's row/column order, per
		// spec §4.1 step 2).
		var entries []grmEntry
		for _, id := range s0 {
			if idx, ok := grmIndex[id]; ok {
				entries = append(entries, grmEntry{id, idx})
			}
		}
		sortEntriesByGRMIndex(entries)
		for _, e := range entries {
			canonical = append(canonical, e.id)
		}
	} else {
		canonical = s0
	}

	if len(canonical) == 0 {
		return nil, ferr.New(ferr.EAlign, "empty sample intersection")
	}

	phenoIndex := make(map[string]int, len(pheno))
	for i, id := range pheno {
		phenoIndex[id] = i
	}
	phenoPerm := make([]int, len(canonical))
	for i, id := range canonical {
		phenoPerm[i] = phenoIndex[id]
	}

	var covarPerm []int
	if covar != nil {
		covarIndex := make(map[string]int, len(covar))
		for i, id := range covar {
			covarIndex[id] = i
		}
		covarPerm = make([]int, len(canonical))
		for i, id := range canonical {
			covarPerm[i] = covarIndex[id]
		}
	}

	var grmPerm []int
	if grm != nil {
		grmIndex := make(map[string]int, len(grm))
		for i, id := range grm {
			grmIndex[id] = i
		}
		grmPerm = make([]int, len(canonical))
		for i, id := range canonical {
			grmPerm[i] = grmIndex[id]
		}
	}

	return &Alignment{
		Canonical: canonical,
		PhenoPerm: phenoPerm,
		CovarPerm: covarPerm,
		GRMPerm:   grmPerm,
	}, nil
}

type grmEntry struct {
	id       string
	grmIndex int
}

func sortEntriesByGRMIndex(entries []grmEntry) {
	// insertion sort is fine: n is the cohort size, called once at setup.
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && entries[j-1].grmIndex > entries[j].grmIndex {
			entries[j-1], entries[j] = entries[j], entries[j-1]
			j--
		}
	}
}

// ApplyVector permutes v (length = len(perm's source)) into canonical order.
func ApplyVector(v []float64, perm []int) []float64 {
	out := make([]float64, len(perm))
	for i, p := range perm {
		out[i] = v[p]
	}
	return out
}

// ApplyMatrixRows permutes the rows of m into canonical order.
func ApplyMatrixRows(m *mat.Dense, perm []int) *mat.Dense {
	_, k := m.Dims()
	out := mat.NewDense(len(perm), k, nil)
	for i, p := range perm {
		out.SetRow(i, mat.Row(nil, p, m))
	}
	return out
}
