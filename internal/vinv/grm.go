package vinv

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
	"github.com/hcholab-fastfam/fastfam-go/internal/sparse"
)

// LoadGRMIds reads <base>.grm.id, one id per line, in GRM row order.
func LoadGRMIds(base string) ([]string, error) {
	f, err := os.Open(base + ".grm.id")
	if err != nil {
		return nil, ferr.Wrap(ferr.EIO, err, "opening "+base+".grm.id")
	}
	defer f.Close()
	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		ids = append(ids, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, ferr.Wrap(ferr.EIO, err, "reading "+base+".grm.id")
	}
	return ids, nil
}

// LoadGRMMatrix reads <base>.grm.sp: whitespace-separated triples `i j
// value` with i <= j, materializing both triangles (spec §6, invariant I3).
func LoadGRMMatrix(base string, n int) (*sparse.Sym, error) {
	f, err := os.Open(base + ".grm.sp")
	if err != nil {
		return nil, ferr.Wrap(ferr.EIO, err, "opening "+base+".grm.sp")
	}
	defer f.Close()

	a := sparse.NewSym(n)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, ferr.New(ferr.EIO, "malformed .grm.sp line: "+line)
		}
		i, err1 := strconv.Atoi(fields[0])
		j, err2 := strconv.Atoi(fields[1])
		val, err3 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, ferr.New(ferr.EIO, "malformed .grm.sp line: "+line)
		}
		a.SetPair(i, j, val)
	}
	if err := sc.Err(); err != nil {
		return nil, ferr.Wrap(ferr.EIO, err, "reading "+base+".grm.sp")
	}
	a.Finalize()
	return a, nil
}

// Permute returns a new Sym indexed by the canonical order: out[newI][newJ]
// = a[perm[newI]][perm[newJ]]. perm[newI] is the GRM's own row index that
// supplies canonical row newI (the Alignment.GRMPerm produced by
// internal/align). Entries whose column falls outside perm (a GRM sample
// not part of the canonical cohort) are dropped.
func Permute(a *sparse.Sym, perm []int) *sparse.Sym {
	oldToNew := make(map[int]int, len(perm))
	for newI, oldI := range perm {
		oldToNew[oldI] = newI
	}

	out := sparse.NewSym(len(perm))
	for newI, oldI := range perm {
		for _, e := range a.Rows[oldI] {
			newJ, ok := oldToNew[e.Col]
			if !ok {
				continue
			}
			out.Rows[newI] = append(out.Rows[newI], sparse.Entry{Row: newI, Col: newJ, Val: e.Val})
		}
	}
	out.Finalize()
	return out
}
