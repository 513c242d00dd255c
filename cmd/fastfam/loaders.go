// Phenotype/covariate file reading and marker metadata loading: the
// external collaborators spec.md §6 specifies only the interface for
// ("phenotype file... yields (id, value) pairs", "covariate file...
// yields (id, numeric_columns...)"). Kept in cmd/fastfam rather than
// internal/ since spec §1 scopes these out of the core; grounded on the
// teacher's plain bufio.Scanner + strconv parsing idiom
// (gwas/utilities.go's LoadCacheFromFile).
package main

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
	"github.com/hcholab-fastfam/fastfam-go/internal/geno"
)

// loadPheno reads a whitespace-separated "id value" file, one sample per
// line, returning ids in file order and the parallel value slice.
func loadPheno(path string) (ids []string, vals []float64, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, nil, ferr.Wrap(ferr.EIO, openErr, "opening phenotype file "+path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, nil, ferr.New(ferr.EIO, "malformed phenotype line: "+line)
		}
		v, perr := strconv.ParseFloat(fields[len(fields)-1], 64)
		if perr != nil {
			return nil, nil, ferr.Wrap(ferr.EIO, perr, "parsing phenotype value: "+line)
		}
		ids = append(ids, fields[0])
		vals = append(vals, v)
	}
	if serr := sc.Err(); serr != nil {
		return nil, nil, ferr.Wrap(ferr.EIO, serr, "reading phenotype file "+path)
	}
	return ids, vals, nil
}

// loadCovar reads a whitespace-separated "id col1 col2 ..." file and
// returns ids plus a dense n*k matrix with an appended all-ones intercept
// column as its final column, per spec DATA MODEL's CovarMat contract.
func loadCovar(path string) (ids []string, covar *mat.Dense, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, nil, ferr.Wrap(ferr.EIO, openErr, "opening covariate file "+path)
	}
	defer f.Close()

	var rows [][]float64
	sc := bufio.NewScanner(f)
	ncols := -1
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, nil, ferr.New(ferr.EIO, "malformed covariate line: "+line)
		}
		vals := make([]float64, len(fields)-1)
		for i, tok := range fields[1:] {
			v, perr := strconv.ParseFloat(tok, 64)
			if perr != nil {
				return nil, nil, ferr.Wrap(ferr.EIO, perr, "parsing covariate value: "+line)
			}
			vals[i] = v
		}
		if ncols == -1 {
			ncols = len(vals)
		} else if len(vals) != ncols {
			return nil, nil, ferr.New(ferr.EIO, "ragged covariate row: "+line)
		}
		ids = append(ids, fields[0])
		rows = append(rows, vals)
	}
	if serr := sc.Err(); serr != nil {
		return nil, nil, ferr.Wrap(ferr.EIO, serr, "reading covariate file "+path)
	}

	k := ncols + 1 // +1 for the intercept column
	m := mat.NewDense(len(rows), k, nil)
	for i, row := range rows {
		for j, v := range row {
			m.Set(i, j, v)
		}
		m.Set(i, ncols, 1) // intercept, last column
	}
	return ids, m, nil
}

// loadMarkerMeta reads a sidecar "id chrom pos a1 a2 af" file describing
// the markers the genotype stream will deliver, in stream order, matching
// the shape of a bim-equivalent file (PLINK decoding itself is external
// per spec §1).
func loadMarkerMeta(path string) ([]geno.Marker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferr.Wrap(ferr.EIO, err, "opening marker metadata file "+path)
	}
	defer f.Close()

	var markers []geno.Marker
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 6 {
			return nil, ferr.New(ferr.EIO, "malformed marker metadata line: "+line)
		}
		pos, perr := strconv.ParseUint(fields[2], 10, 64)
		if perr != nil {
			return nil, ferr.Wrap(ferr.EIO, perr, "parsing marker position: "+line)
		}
		af, aerr := strconv.ParseFloat(fields[5], 64)
		if aerr != nil {
			return nil, ferr.Wrap(ferr.EIO, aerr, "parsing marker allele frequency: "+line)
		}
		markers = append(markers, geno.Marker{
			ID:    fields[0],
			Chrom: fields[1],
			Pos:   pos,
			A1:    fields[3],
			A2:    fields[4],
			AF:    af,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, ferr.Wrap(ferr.EIO, err, "reading marker metadata file "+path)
	}
	return markers, nil
}
