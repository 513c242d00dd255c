// Package diagnostics computes a post-run summary of the marker scan
// (mean/stdev/median of betas and p-values), logged at the end of a run.
// This is a genuinely optional diagnostic layered on top of the required
// pipeline (SPEC_FULL.md DOMAIN STACK), grounded on
// carbocation-genomisc/cmd/pixeloverlapsummary's use of
// stats.LoadRawData(...).Mean()/StandardDeviation(), generalized from that
// reflection-over-struct-fields pattern to two plain float64 slices.
package diagnostics

import (
	"math"

	"github.com/montanaflynn/stats"

	"go.dedis.ch/onet/v3/log"

	"github.com/hcholab-fastfam/fastfam-go/internal/gls"
)

// Summary holds the finite-value summary statistics for one MarkerStat
// field across a run.
type Summary struct {
	N      int
	Mean   float64
	StdDev float64
	Median float64
}

// Report is the full post-run diagnostic: one Summary per reported field,
// plus the count of markers whose p-value is NaN in the results passed to
// Summarize (cmd/fastfam passes the engine's stats, before AF gating, so
// this counts the d<=0 case only).
type Report struct {
	Beta    Summary
	P       Summary
	NumNaN  int
	NumTotal int
}

func finite(vals []float32) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f := float64(v)
		if !math.IsNaN(f) {
			out = append(out, f)
		}
	}
	return out
}

func summarize(vals []float64) Summary {
	data := stats.LoadRawData(vals)
	n := data.Len()
	if n == 0 {
		return Summary{}
	}
	mean, _ := data.Mean()
	sd, _ := data.StandardDeviation()
	med, _ := data.Median()
	return Summary{N: n, Mean: mean, StdDev: sd, Median: med}
}

// Summarize builds a Report from the completed MarkerStat array.
func Summarize(results []gls.MarkerStat) Report {
	betas := make([]float32, len(results))
	ps := make([]float32, len(results))
	numNaN := 0
	for i, r := range results {
		betas[i] = r.Beta
		ps[i] = r.P
		if math.IsNaN(float64(r.P)) {
			numNaN++
		}
	}
	return Report{
		Beta:     summarize(finite(betas)),
		P:        summarize(finite(ps)),
		NumNaN:   numNaN,
		NumTotal: len(results),
	}
}

// Log writes r to the ambient logger (spec §9 ambient stack: onet/log),
// matching the teacher's log.LLvl1 info-line convention.
func (r Report) Log() {
	log.LLvl1("scan complete:", r.NumTotal, "markers,", r.NumNaN, "missing/NaN")
	log.LLvl1("beta: n=", r.Beta.N, "mean=", r.Beta.Mean, "sd=", r.Beta.StdDev, "median=", r.Beta.Median)
	log.LLvl1("p: n=", r.P.N, "mean=", r.P.Mean, "sd=", r.P.StdDev, "median=", r.P.Median)
}
