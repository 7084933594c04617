package foundation

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// NormMethod selects a normalization strategy. Callers choose per noise
// sensitivity: robust for heavy-tailed data, minmax for bounded embeddings,
// standard otherwise.
type NormMethod string

const (
	NormStandard NormMethod = "standard" // zero mean, unit variance
	NormMinMax   NormMethod = "minmax"   // scale to [0,1]
	NormRobust   NormMethod = "robust"   // median center, IQR scale
)

// NormParams records per-column center and scale so a normalization can be
// inverted exactly.
type NormParams struct {
	Method NormMethod `json:"method"`
	Center []float64  `json:"center"`
	Scale  []float64  `json:"scale"`
}

// Normalize transforms each feature column by (x - center) / scale, with
// center and scale chosen by method. Degenerate columns (zero variance, zero
// range, zero IQR) fall back to scale 1 and produce a warning rather than a
// division by zero.
func Normalize(m [][]float64, method NormMethod) ([][]float64, *NormParams, []string, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return nil, nil, nil, fmt.Errorf("normalize: %w", ErrInvalidData)
	}

	cols := len(m[0])
	params := &NormParams{
		Method: method,
		Center: make([]float64, cols),
		Scale:  make([]float64, cols),
	}
	var warnings []string

	for j := 0; j < cols; j++ {
		col := Column(m, j)
		var center, scale float64

		switch method {
		case NormMinMax:
			lo, hi := col[0], col[0]
			for _, v := range col {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
			center, scale = lo, hi-lo
		case NormRobust:
			med, err := stats.Median(col)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("normalize: %w", err)
			}
			iqr, err := stats.InterQuartileRange(col)
			if err != nil {
				iqr = 0
			}
			center, scale = med, iqr
		case NormStandard:
			center = stat.Mean(col, nil)
			scale = math.Sqrt(stat.Variance(col, nil))
		default:
			return nil, nil, nil, fmt.Errorf("normalize: unknown method %q", method)
		}

		if scale == 0 || math.IsNaN(scale) {
			warnings = append(warnings, fmt.Sprintf("feature %d is degenerate under %s normalization, using unit scale", j, method))
			scale = 1
		}
		params.Center[j] = center
		params.Scale[j] = scale
	}

	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, cols)
		for j, v := range row {
			out[i][j] = (v - params.Center[j]) / params.Scale[j]
		}
	}
	return out, params, warnings, nil
}

// Denormalize inverts Normalize given the recorded parameters.
func Denormalize(m [][]float64, params *NormParams) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = v*params.Scale[j] + params.Center[j]
		}
	}
	return out
}
