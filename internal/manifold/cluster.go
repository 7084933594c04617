package manifold

import (
	"sort"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

// clusterRegimes assigns a regime label to each embedded point via
// density-based clustering. The neighborhood radius is derived from the
// k-distance distribution, so the cluster count follows the data. Points in
// no dense region get label -1.
func clusterRegimes(embedding [][]float64) []int {
	n := len(embedding)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n < 5 {
		return labels
	}

	k := 10
	if k > n/10 && n/10 >= 2 {
		k = n / 10
	}
	if k < 2 {
		k = 2
	}

	dist, err := foundation.DistanceMatrix(embedding, foundation.Euclidean)
	if err != nil {
		return labels
	}

	// eps from the 90th percentile of each point's k-th neighbor distance.
	kDist := make([]float64, n)
	for i := 0; i < n; i++ {
		nbrs := foundation.NearestIndices(dist, i, k)
		kDist[i] = dist[i][nbrs[len(nbrs)-1]]
	}
	sorted := append([]float64{}, kDist...)
	sort.Float64s(sorted)
	eps := sorted[(n*90)/100]

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j != i && dist[i][j] <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != -1 {
			continue
		}
		nbrs := neighbors(i)
		if len(nbrs) < k {
			continue // not a core point
		}
		labels[i] = cluster
		queue := append([]int{}, nbrs...)
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			if labels[p] != -1 {
				continue
			}
			labels[p] = cluster
			pn := neighbors(p)
			if len(pn) >= k {
				queue = append(queue, pn...)
			}
		}
		cluster++
	}
	return labels
}
