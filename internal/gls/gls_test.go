package gls

import (
	"math"
	"testing"

	"github.com/hcholab-fastfam/fastfam-go/internal/geno"
	"github.com/hcholab-fastfam/fastfam-go/internal/sparse"
)

// fixedStreamer delivers a fixed set of pre-materialized marker vectors in
// a single batch, for deterministic unit testing of the GLS engine without
// a real genotype file.
type fixedStreamer struct {
	n       int
	vectors [][]float64
	afs     []float64
}

func (f *fixedStreamer) CountSamples() int             { return f.n }
func (f *fixedStreamer) CountMarkers() int             { return len(f.vectors) }
func (f *fixedStreamer) AlleleFrequency(i int) float64 { return f.afs[i] }
func (f *fixedStreamer) Marker(i int) geno.Marker      { return geno.Marker{AF: f.afs[i]} }

func (f *fixedStreamer) Materialize(localIndex int, outBuf []float64) error {
	copy(outBuf, f.vectors[localIndex])
	return nil
}

func (f *fixedStreamer) Batches(fn func(batchCount, globalBase int) error) error {
	return fn(len(f.vectors), 0)
}

// TestEngineRunOLSSanity covers spec §8 scenario S1.
func TestEngineRunOLSSanity(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	x := []float64{-1.5, -0.5, 0.5, 1.5}
	s := &fixedStreamer{n: 4, vectors: [][]float64{x}, afs: []float64{0.3}}

	e := &Engine{Y: y, Dispatch: Dispatch{Ols: true}, NumWorkers: 1}
	stats, err := e.Run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat, got %d", len(stats))
	}
	st := stats[0]
	if math.Abs(float64(st.Beta)-1.0) > 1e-9 {
		t.Fatalf("beta = %v, want 1.0", st.Beta)
	}
	// MarkerStat.SE is float32, so compare against sqrt(1/5) rounded to float32.
	wantSE := float64(float32(math.Sqrt(1.0 / 5.0)))
	if math.Abs(float64(st.SE)-wantSE) > 1e-9 {
		t.Fatalf("SE = %v, want %v", st.SE, wantSE)
	}
	wantP := 0.02535
	if math.Abs(float64(st.P)-wantP) > 1e-4 {
		t.Fatalf("p = %v, want ~%v", st.P, wantP)
	}
}

func TestEngineDNonPositiveYieldsNaN(t *testing.T) {
	y := []float64{1, 2, 3}
	zero := []float64{0, 0, 0}
	s := &fixedStreamer{n: 3, vectors: [][]float64{zero}, afs: []float64{0.2}}
	e := &Engine{Y: y, Dispatch: Dispatch{Ols: true}, NumWorkers: 1}
	stats, err := e.Run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !math.IsNaN(float64(stats[0].Beta)) || !math.IsNaN(float64(stats[0].SE)) || !math.IsNaN(float64(stats[0].P)) {
		t.Fatalf("expected NaN stats for a zero-variance marker, got %+v", stats[0])
	}
}

// TestEngineDeterministicAcrossWorkerCounts covers spec §8 invariant 7.
func TestEngineDeterministicAcrossWorkerCounts(t *testing.T) {
	n := 6
	y := []float64{1, -2, 3, -4, 5, -6}
	vectors := [][]float64{
		{1, 0, -1, 0, 1, -1},
		{0, 1, 0, -1, 0, 1},
		{2, -1, 0, 1, -2, 0},
		{-1, -1, 1, 1, 0, 0},
		{0, 0, 0, 0, 0, 0}, // zero-variance -> NaN
	}
	afs := []float64{0.1, 0.2, 0.3, 0.4, 0.5}

	run := func(workers int) []MarkerStat {
		s := &fixedStreamer{n: n, vectors: vectors, afs: afs}
		e := &Engine{Y: y, Dispatch: Dispatch{Ols: true}, NumWorkers: workers}
		stats, err := e.Run(s)
		if err != nil {
			t.Fatalf("Run(workers=%d): %v", workers, err)
		}
		return stats
	}

	base := run(1)
	for _, w := range []int{2, 4, 8} {
		got := run(w)
		for i := range base {
			if math.IsNaN(float64(base[i].Beta)) {
				if !math.IsNaN(float64(got[i].Beta)) {
					t.Fatalf("worker=%d marker %d: expected NaN, got %v", w, i, got[i])
				}
				continue
			}
			if base[i] != got[i] {
				t.Fatalf("worker=%d marker %d: %+v != %+v", w, i, got[i], base[i])
			}
		}
	}
}

func TestEngineMixedModelPath(t *testing.T) {
	n := 4
	a := sparse.NewSym(n)
	for i := 0; i < n; i++ {
		a.SetDiag(i, 1) // identity -> Vinv path should match OLS exactly
	}
	a.Finalize()

	y := []float64{1, 2, 3, 4}
	x := []float64{-1.5, -0.5, 0.5, 1.5}
	s := &fixedStreamer{n: n, vectors: [][]float64{x}, afs: []float64{0.3}}

	e := &Engine{Y: y, Dispatch: Dispatch{Vinv: a}, NumWorkers: 1}
	stats, err := e.Run(s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if math.Abs(float64(stats[0].Beta)-1.0) > 1e-9 {
		t.Fatalf("beta = %v, want 1.0 (Vinv=I should match OLS)", stats[0].Beta)
	}
}
