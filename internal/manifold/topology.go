package manifold

import (
	"fmt"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// analyzeTopology derives density, connectivity, and curvature metrics from
// an embedded point cloud.
func (a *Analyzer) analyzeTopology(embedding [][]float64) (*Topology, error) {
	n := len(embedding)
	if n < 3 {
		return nil, fmt.Errorf("too few points for topology: %d", n)
	}

	dist, err := foundation.DistanceMatrix(embedding, foundation.Euclidean)
	if err != nil {
		return nil, err
	}

	k := a.cfg.Neighbors
	if k > n-1 {
		k = n - 1
	}

	// Local density: inverse of each point's mean k-nearest-neighbor distance.
	densities := make([]float64, n)
	for i := 0; i < n; i++ {
		nbrs := foundation.NearestIndices(dist, i, k)
		sum := 0.0
		for _, j := range nbrs {
			sum += dist[i][j]
		}
		mean := sum / float64(len(nbrs))
		if mean == 0 {
			mean = 1e-10
		}
		densities[i] = 1.0 / mean
	}

	topo := &Topology{
		MeanLocalDensity: stat.Mean(densities, nil),
		DensityVariance:  stat.Variance(densities, nil),
	}

	topo.Connectivity = graphConnectivity(dist)

	curv := a.localCurvature(embedding, dist, k)
	if len(curv) > 0 {
		topo.MeanCurvature = stat.Mean(curv, nil)
		topo.CurvatureVariance = stat.Variance(curv, nil)
	}
	return topo, nil
}

// graphConnectivity links points whose distance falls under the 10th
// percentile of positive pairwise distances and returns the fraction of
// samples belonging to the largest connected component.
func graphConnectivity(dist [][]float64) float64 {
	n := len(dist)
	var positive []float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dist[i][j] > 0 {
				positive = append(positive, dist[i][j])
			}
		}
	}
	if len(positive) == 0 {
		return 1.0 // all points coincide
	}
	threshold, err := stats.Percentile(positive, 10)
	if err != nil {
		return 0
	}

	// Union-find over the neighborhood graph.
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dist[i][j] <= threshold {
				parent[find(i)] = find(j)
			}
		}
	}

	sizes := make(map[int]int)
	largest := 0
	for i := 0; i < n; i++ {
		r := find(i)
		sizes[r]++
		if sizes[r] > largest {
			largest = sizes[r]
		}
	}
	return float64(largest) / float64(n)
}

// localCurvature measures, per point, how much its neighborhood deviates from
// the best-fit tangent plane: the fraction of neighborhood variance not
// captured by the leading local principal direction.
func (a *Analyzer) localCurvature(embedding, dist [][]float64, k int) []float64 {
	if len(embedding[0]) < 2 {
		return nil
	}

	curv := make([]float64, 0, len(embedding))
	for i := range embedding {
		nbrs := foundation.NearestIndices(dist, i, k)
		if len(nbrs) < 3 {
			continue
		}
		local := make([][]float64, len(nbrs))
		for j, nb := range nbrs {
			row := make([]float64, len(embedding[nb]))
			for c := range row {
				row[c] = embedding[nb][c] - embedding[i][c]
			}
			local[j] = row
		}
		pca, _, err := foundation.FitPCA(local, 2)
		if err != nil || len(pca.ExplainedVariance) < 2 {
			continue
		}
		curv = append(curv, pca.ExplainedVariance[1]/(pca.ExplainedVariance[0]+1e-10))
	}
	return curv
}
