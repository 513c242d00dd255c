// Package vinv implements the V-Inverse Builder (spec §4.4): builds
// V = Vg*A + Ve*I from the sparse GRM and solves it column-by-column against
// the identity to materialize Vinv, or loads a previously persisted Vinv.
// Persistence format grounded on FastFAM.cpp's own save/load of
// <base>.grm.id / <base>.grm.inv, including the "--fastGWA" sentinel line
// (SPEC_FULL.md feature 4) marking a run that degraded to OLS.
package vinv

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"go.dedis.ch/onet/v3/log"

	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
	"github.com/hcholab-fastfam/fastfam-go/internal/sparse"
)

// SentinelNoInverse is written as the sole line of <base>.grm.id when the
// pipeline degraded to OLS and no inverse was built (FastFAM.cpp compat).
const SentinelNoInverse = "--fastGWA"

// Build factors V = vg*A + ve*I and solves it against the identity,
// column-by-column, to produce a dense-as-sparse Vinv (spec §4.4: "no
// explicit thresholding is performed"). a is mutated in place (scaled and
// shifted) per spec's DATA MODEL lifecycle note for A.
func Build(a *sparse.Sym, vg, ve float64, method sparse.Method) (*sparse.Sym, error) {
	a.ScaleAndShiftDiag(vg, ve)
	factor, err := sparse.Compute(a, method)
	if err != nil {
		return nil, err
	}

	n := a.N
	vinv := sparse.NewSym(n)
	ei := make([]float64, n)
	for col := 0; col < n; col++ {
		ei[col] = 1
		x, err := factor.Solve(ei)
		ei[col] = 0
		if err != nil {
			return nil, err
		}
		for row := 0; row < n; row++ {
			if x[row] != 0 {
				vinv.Rows[row] = append(vinv.Rows[row], sparse.Entry{Row: row, Col: col, Val: x[row]})
			}
		}
	}
	vinv.Finalize()
	return vinv, nil
}

// Save persists vinv and the canonical sample order to <base>.grm.id and
// <base>.grm.inv. When vinv is nil (pipeline degraded to OLS), only the
// sentinel id file is written.
func Save(base string, canonical []string, vinv *sparse.Sym) error {
	idPath := base + ".grm.id"
	idFile, err := os.Create(idPath)
	if err != nil {
		return ferr.Wrap(ferr.EIO, err, "creating "+idPath)
	}
	defer idFile.Close()
	w := bufio.NewWriter(idFile)

	if vinv == nil {
		fmt.Fprintln(w, SentinelNoInverse)
		return w.Flush()
	}

	for _, id := range canonical {
		fmt.Fprintln(w, id)
	}
	if err := w.Flush(); err != nil {
		return ferr.Wrap(ferr.EIO, err, "writing "+idPath)
	}

	invPath := base + ".grm.inv"
	invFile, err := os.Create(invPath)
	if err != nil {
		return ferr.Wrap(ferr.EIO, err, "creating "+invPath)
	}
	defer invFile.Close()
	bw := bufio.NewWriter(invFile)
	buf := make([]byte, 16)
	for i, row := range vinv.Rows {
		for _, e := range row {
			binary.LittleEndian.PutUint32(buf[0:4], uint32(i))
			binary.LittleEndian.PutUint32(buf[4:8], uint32(e.Col))
			binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(e.Val))
			if _, err := bw.Write(buf); err != nil {
				return ferr.Wrap(ferr.EIO, err, "writing "+invPath)
			}
		}
	}
	log.LLvl1("wrote Vinv:", invPath, "nnz:", vinv.NNZ())
	return bw.Flush()
}

// Load reads a persisted Vinv, verifying canonical matches the id file
// line-for-line (spec §4.4/§6). Returns (nil, false, nil) when the id file
// is the OLS sentinel.
func Load(base string, canonical []string) (vinvOut *sparse.Sym, ok bool, err error) {
	idPath := base + ".grm.id"
	idFile, err := os.Open(idPath)
	if err != nil {
		return nil, false, ferr.Wrap(ferr.EIO, err, "opening "+idPath)
	}
	defer idFile.Close()

	var ids []string
	sc := bufio.NewScanner(idFile)
	for sc.Scan() {
		ids = append(ids, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, false, ferr.Wrap(ferr.EIO, err, "reading "+idPath)
	}

	if len(ids) == 1 && ids[0] == SentinelNoInverse {
		return nil, false, nil
	}

	if len(ids) != len(canonical) {
		return nil, false, ferr.New(ferr.EInvIDMismatch, "saved inverse id count does not match current cohort")
	}
	for i := range ids {
		if ids[i] != canonical[i] {
			return nil, false, ferr.New(ferr.EInvIDMismatch, "saved inverse id order does not match current cohort")
		}
	}

	invPath := base + ".grm.inv"
	invFile, err := os.Open(invPath)
	if err != nil {
		return nil, false, ferr.Wrap(ferr.EIO, err, "opening "+invPath)
	}
	defer invFile.Close()

	n := len(canonical)
	out := sparse.NewSym(n)
	br := bufio.NewReader(invFile)
	buf := make([]byte, 16)
	for {
		if _, readErr := io.ReadFull(br, buf); readErr != nil {
			if readErr == io.EOF {
				break
			}
			return nil, false, ferr.Wrap(ferr.EIO, readErr, "reading "+invPath)
		}
		row := int(binary.LittleEndian.Uint32(buf[0:4]))
		col := int(binary.LittleEndian.Uint32(buf[4:8]))
		val := math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16]))
		out.Rows[row] = append(out.Rows[row], sparse.Entry{Row: row, Col: col, Val: val})
	}
	out.Finalize()
	return out, true, nil
}
