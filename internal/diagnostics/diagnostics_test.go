package diagnostics

import (
	"math"
	"testing"

	"github.com/hcholab-fastfam/fastfam-go/internal/gls"
)

func TestSummarizeExcludesNaN(t *testing.T) {
	results := []gls.MarkerStat{
		{Beta: 1, P: 0.1},
		{Beta: 2, P: 0.2},
		{Beta: float32(math.NaN()), P: float32(math.NaN())},
	}
	r := Summarize(results)
	if r.NumTotal != 3 {
		t.Fatalf("NumTotal = %d, want 3", r.NumTotal)
	}
	if r.NumNaN != 1 {
		t.Fatalf("NumNaN = %d, want 1", r.NumNaN)
	}
	if r.Beta.N != 2 {
		t.Fatalf("Beta.N = %d, want 2 (NaN excluded)", r.Beta.N)
	}
	if math.Abs(r.Beta.Mean-1.5) > 1e-9 {
		t.Fatalf("Beta.Mean = %v, want 1.5", r.Beta.Mean)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	r := Summarize(nil)
	if r.NumTotal != 0 || r.Beta.N != 0 {
		t.Fatalf("expected zero-value summary for empty input, got %+v", r)
	}
}
