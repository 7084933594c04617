package foundation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinSamples is the floor below which analyzers warn about sample count.
const MinSamples = 20

// ErrInvalidData marks malformed input: empty, ragged, or non-finite
// matrices. It is the only hard failure an analyzer surfaces to the caller.
var ErrInvalidData = errors.New("invalid observation data")

// ErrInsufficientEvidence marks a synthesis request with fewer usable scales
// than the minimum. Callers receive it wrapped in context, never bare.
var ErrInsufficientEvidence = errors.New("insufficient cross-scale evidence")

// Validate checks an observation matrix for structural problems. It returns
// false only for conditions that make analysis impossible (empty input,
// ragged rows, NaN or Inf entries). Recoverable issues such as a small sample
// count or near-duplicate features come back as warnings with ok still true.
func Validate(m [][]float64) (bool, []string) {
	var warnings []string

	if len(m) == 0 || len(m[0]) == 0 {
		return false, []string{"empty observation matrix"}
	}

	cols := len(m[0])
	for i, row := range m {
		if len(row) != cols {
			return false, []string{fmt.Sprintf("ragged matrix: row %d has %d columns, expected %d", i, len(row), cols)}
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false, []string{fmt.Sprintf("non-finite value at [%d,%d]", i, j)}
			}
		}
	}

	if len(m) < MinSamples {
		warnings = append(warnings, fmt.Sprintf("only %d samples, below recommended minimum of %d", len(m), MinSamples))
	}

	if r, ci, cj := maxFeatureCorrelation(m); r > 0.98 {
		warnings = append(warnings, fmt.Sprintf("features %d and %d are nearly collinear (|r|=%.3f)", ci, cj, r))
	}

	return true, warnings
}

// maxFeatureCorrelation returns the largest absolute pairwise Pearson
// correlation between feature columns and the offending pair. Matrices wider
// than 64 columns are skipped to keep validation cheap.
func maxFeatureCorrelation(m [][]float64) (float64, int, int) {
	cols := len(m[0])
	if cols < 2 || cols > 64 || len(m) < 3 {
		return 0, 0, 0
	}

	colData := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		colData[j] = Column(m, j)
	}

	best, bi, bj := 0.0, 0, 0
	for i := 0; i < cols; i++ {
		for j := i + 1; j < cols; j++ {
			r := stat.Correlation(colData[i], colData[j], nil)
			if math.IsNaN(r) {
				continue
			}
			if math.Abs(r) > best {
				best, bi, bj = math.Abs(r), i, j
			}
		}
	}
	return best, bi, bj
}

// Column extracts feature column j as a fresh slice.
func Column(m [][]float64, j int) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		out[i] = row[j]
	}
	return out
}

// CloneMatrix deep-copies an observation matrix. Analyzers clone before
// normalizing so two concurrent calls never share mutable buffers.
func CloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
