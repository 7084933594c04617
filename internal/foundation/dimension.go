package foundation

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultVarianceThreshold is the cumulative explained-variance cutoff used
// when a caller does not supply one.
const DefaultVarianceThreshold = 0.95

// PCA holds a fitted principal component decomposition. Components are stored
// row-wise, ordered by decreasing explained variance.
type PCA struct {
	Components        [][]float64 // (k, n_features)
	ExplainedVariance []float64   // fraction per component, descending, sums to <= 1
	Mean              []float64   // column means removed before decomposition
}

// FitPCA computes the top k principal components of an observation matrix via
// singular value decomposition of the centered data. k is clamped to the
// available rank; rank deficiency is reported through warnings, not an error.
func FitPCA(m [][]float64, k int) (*PCA, []string, error) {
	n := len(m)
	if n < 2 {
		return nil, nil, fmt.Errorf("pca: need at least 2 samples: %w", ErrInvalidData)
	}
	d := len(m[0])
	if k < 1 {
		k = 1
	}
	if k > d {
		k = d
	}

	// Center columns.
	mean := make([]float64, d)
	for _, row := range m {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	centered := mat.NewDense(n, d, nil)
	for i, row := range m {
		for j, v := range row {
			centered.Set(i, j, v-mean[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, nil, fmt.Errorf("pca: svd failed to converge on %dx%d matrix", n, d)
	}

	var warnings []string
	sv := svd.Values(nil)

	total := 0.0
	for _, s := range sv {
		total += s * s
	}
	if total == 0 {
		warnings = append(warnings, "zero total variance, data is constant")
		total = 1
	}

	rank := 0
	for _, s := range sv {
		if s > 1e-10*sv[0] {
			rank++
		}
	}
	if rank < len(sv) {
		warnings = append(warnings, fmt.Sprintf("rank-deficient data: rank %d of %d", rank, len(sv)))
	}
	if k > rank && rank > 0 {
		k = rank
	}

	var v mat.Dense
	svd.VTo(&v)

	comps := make([][]float64, k)
	explained := make([]float64, k)
	for c := 0; c < k; c++ {
		comps[c] = make([]float64, d)
		for j := 0; j < d; j++ {
			comps[c][j] = v.At(j, c)
		}
		explained[c] = sv[c] * sv[c] / total
	}

	return &PCA{Components: comps, ExplainedVariance: explained, Mean: mean}, warnings, nil
}

// Transform projects observations onto the fitted components, producing one
// row of embedding coordinates per input sample.
func (p *PCA) Transform(m [][]float64) [][]float64 {
	k := len(p.Components)
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, k)
		for c := 0; c < k; c++ {
			sum := 0.0
			for j, v := range row {
				sum += (v - p.Mean[j]) * p.Components[c][j]
			}
			out[i][c] = sum
		}
	}
	return out
}

// EstimateDimensionality returns the smallest number of ranked components
// whose cumulative explained variance exceeds threshold, never less than 1.
// The per-component fractions are returned alongside for callers that build
// embeddings from the same decomposition.
func EstimateDimensionality(m [][]float64, threshold float64) (int, []float64, []string, error) {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultVarianceThreshold
	}

	pca, warnings, err := FitPCA(m, len(m[0]))
	if err != nil {
		return 0, nil, warnings, err
	}

	cum := 0.0
	dim := len(pca.ExplainedVariance)
	for i, f := range pca.ExplainedVariance {
		cum += f
		if cum >= threshold {
			dim = i + 1
			break
		}
	}
	if dim < 1 {
		dim = 1
	}
	return dim, pca.ExplainedVariance, warnings, nil
}
