package foundation

import (
	"fmt"
	"math"
)

// DistanceMetric selects the point-to-point metric used by DistanceMatrix.
type DistanceMetric string

const (
	Euclidean DistanceMetric = "euclidean"
	Manhattan DistanceMetric = "manhattan"
	Chebyshev DistanceMetric = "chebyshev"
)

// Distance computes the metric between two points of equal dimension.
func Distance(a, b []float64, metric DistanceMetric) float64 {
	switch metric {
	case Manhattan:
		sum := 0.0
		for i := range a {
			sum += math.Abs(a[i] - b[i])
		}
		return sum
	case Chebyshev:
		max := 0.0
		for i := range a {
			max = math.Max(max, math.Abs(a[i]-b[i]))
		}
		return max
	default:
		sum := 0.0
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return math.Sqrt(sum)
	}
}

// DistanceMatrix returns the symmetric pairwise distance matrix with zero
// diagonal for a set of points.
func DistanceMatrix(points [][]float64, metric DistanceMetric) ([][]float64, error) {
	switch metric {
	case Euclidean, Manhattan, Chebyshev:
	default:
		return nil, fmt.Errorf("distance matrix: unknown metric %q", metric)
	}

	n := len(points)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := Distance(points[i], points[j], metric)
			d[i][j] = v
			d[j][i] = v
		}
	}
	return d, nil
}

// NearestIndices returns the indices of the k nearest neighbors of point i
// given a precomputed distance matrix, excluding i itself.
func NearestIndices(dist [][]float64, i, k int) []int {
	n := len(dist)
	if k > n-1 {
		k = n - 1
	}
	idx := make([]int, 0, n-1)
	for j := 0; j < n; j++ {
		if j != i {
			idx = append(idx, j)
		}
	}
	// selection by partial sort; n stays small enough for insertion
	for a := 1; a < len(idx); a++ {
		for b := a; b > 0 && dist[i][idx[b]] < dist[i][idx[b-1]]; b-- {
			idx[b], idx[b-1] = idx[b-1], idx[b]
		}
	}
	return idx[:k]
}
