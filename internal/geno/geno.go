// Package geno defines the genotype streamer collaborator interface
// consumed by the Marker GLS Engine (spec §6) and a file-backed
// implementation grounded on the teacher's gwas.GenoFileStream: a
// buffered reader over raw per-sample allele counts, with missing-value
// mean imputation and per-marker standardization. Marker-file
// (PLINK-bed-style) decoding and MAF filtering upstream of this reader are
// external per spec §1; this package assumes the stream already yields
// per-sample allele counts and focuses on standardization/centering and
// batch delivery.
package geno

import (
	"bufio"
	"io"
	"math"
	"os"

	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
)

// Marker carries per-marker metadata alongside its allele frequency,
// delivered by the streamer's batch callback (spec DATA MODEL: Marker).
type Marker struct {
	ID    string
	Chrom string
	Pos   uint64
	A1    string
	A2    string
	AF    float64
}

// Streamer is the consumed interface (spec §6).
type Streamer interface {
	CountSamples() int
	CountMarkers() int
	AlleleFrequency(i int) float64
	Marker(i int) Marker

	// Materialize writes the length-n centered, standardized genotype
	// vector for marker localIndex of the current batch into outBuf.
	Materialize(localIndex int, outBuf []float64) error

	// Batches invokes fn once per batch with (batchCount, globalBase);
	// globalBase is the running total of markers delivered by prior
	// batches.
	Batches(fn func(batchCount, globalBase int) error) error
}

// batchRows holds the raw rows for the batch currently in flight;
// Materialize reads from it by local index.
type batchRows struct {
	raw [][]int8
}

// FileStreamer reads a row-major file of int8 allele counts (0, 1, 2, with
// a sentinel for missing), one marker per row, n samples per row — adapted
// from gwas.GenoFileStream's buffer-and-scan loop but simplified to a plain
// binary layout since PLINK decoding itself is out of scope.
type FileStreamer struct {
	n, m      int
	markers   []Marker
	batchSize int

	f   *os.File
	buf *bufio.Reader

	missingSentinel int8
	current         *batchRows
}

const defaultBatchSize = 4096

// NewFileStreamer opens path, an m x n row-major int8 matrix (m markers,
// n samples per row), with marker metadata supplied separately (e.g. from a
// .snp sidecar or bim-equivalent file produced upstream).
func NewFileStreamer(path string, n int, markers []Marker) (*FileStreamer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferr.Wrap(ferr.EIO, err, "opening genotype file "+path)
	}
	return &FileStreamer{
		n:               n,
		m:               len(markers),
		markers:         markers,
		batchSize:       defaultBatchSize,
		f:               f,
		buf:             bufio.NewReaderSize(f, 1<<20),
		missingSentinel: -1,
	}, nil
}

func (s *FileStreamer) Close() error { return s.f.Close() }

func (s *FileStreamer) CountSamples() int             { return s.n }
func (s *FileStreamer) CountMarkers() int             { return s.m }
func (s *FileStreamer) AlleleFrequency(i int) float64 { return s.markers[i].AF }
func (s *FileStreamer) Marker(i int) Marker           { return s.markers[i] }

// Batches reads the file in row groups of batchSize markers, calling fn once
// per group with the batch's marker count and its globalBase.
func (s *FileStreamer) Batches(fn func(batchCount, globalBase int) error) error {
	globalBase := 0
	rawBuf := make([]byte, s.n)

	for globalBase < s.m {
		count := s.batchSize
		if globalBase+count > s.m {
			count = s.m - globalBase
		}
		rows := make([][]int8, count)
		for k := 0; k < count; k++ {
			if _, err := io.ReadFull(s.buf, rawBuf); err != nil {
				return ferr.Wrap(ferr.EIO, err, "reading genotype stream")
			}
			r := make([]int8, s.n)
			for i, b := range rawBuf {
				r[i] = int8(b)
			}
			rows[k] = r
		}
		s.current = &batchRows{raw: rows}

		if err := fn(count, globalBase); err != nil {
			return err
		}
		globalBase += count
	}
	return nil
}

// Materialize writes the length-n centered, standardized vector for marker
// localIndex of the current batch: missing entries (the sentinel value) are
// mean-imputed first, then the vector is centered and scaled to unit
// variance, matching the genotype-standardization contract spec §6 assumes
// the streamer performs. A monomorphic marker (zero variance after
// centering) is left as all-zero; the GLS Engine's d<=0 guard (spec §4.5
// step 3) turns that into a NaN result rather than a division by zero here.
func (s *FileStreamer) Materialize(localIndex int, outBuf []float64) error {
	if s.current == nil || localIndex >= len(s.current.raw) {
		return ferr.New(ferr.EIO, "materialize called outside an active batch")
	}
	raw := s.current.raw[localIndex]

	sum, count := 0.0, 0
	for _, v := range raw {
		if v != s.missingSentinel {
			sum += float64(v)
			count++
		}
	}
	mean := 0.0
	if count > 0 {
		mean = sum / float64(count)
	}

	for i, v := range raw {
		if v == s.missingSentinel {
			outBuf[i] = mean
		} else {
			outBuf[i] = float64(v)
		}
	}

	m := 0.0
	for _, v := range outBuf {
		m += v
	}
	m /= float64(len(outBuf))

	var ss float64
	for i := range outBuf {
		outBuf[i] -= m
		ss += outBuf[i] * outBuf[i]
	}
	if ss <= 0 {
		return nil
	}
	sd := math.Sqrt(ss / float64(len(outBuf)-1))
	for i := range outBuf {
		outBuf[i] /= sd
	}
	return nil
}
