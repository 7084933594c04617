package manifold

import (
	"fmt"
	"math"
	"sort"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"gonum.org/v1/gonum/mat"
)

// Embedder maps observations into a lower-dimensional coordinate system. The
// linear projection is the required baseline; other methods may preserve
// neighborhoods instead of global variance.
type Embedder interface {
	Name() string
	Embed(data [][]float64, dims int) ([][]float64, error)
}

var embedders = map[string]func() Embedder{
	"pca":          func() Embedder { return linearEmbedder{} },
	"mds":          func() Embedder { return mdsEmbedder{} },
	"neighborhood": func() Embedder { return mdsEmbedder{} }, // metric MDS preserves local structure well enough here
}

// GetEmbedder resolves a method name against the validated set of built-in
// strategies.
func GetEmbedder(name string) (Embedder, error) {
	fn, ok := embedders[name]
	if !ok {
		return nil, fmt.Errorf("unknown embedding method: %s", name)
	}
	return fn(), nil
}

func ListEmbedders() []string {
	names := make([]string, 0, len(embedders))
	for name := range embedders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type linearEmbedder struct{}

func (linearEmbedder) Name() string { return "pca" }

func (linearEmbedder) Embed(data [][]float64, dims int) ([][]float64, error) {
	pca, _, err := foundation.FitPCA(data, dims)
	if err != nil {
		return nil, err
	}
	return pca.Transform(data), nil
}

// mdsEmbedder implements classical multidimensional scaling: double-center
// the squared distance matrix and take the leading eigenvectors scaled by the
// square roots of their eigenvalues.
type mdsEmbedder struct{}

func (mdsEmbedder) Name() string { return "mds" }

func (mdsEmbedder) Embed(data [][]float64, dims int) ([][]float64, error) {
	n := len(data)
	if n < 3 {
		return nil, fmt.Errorf("mds: need at least 3 samples, got %d", n)
	}
	if dims > n-1 {
		dims = n - 1
	}

	dist, err := foundation.DistanceMatrix(data, foundation.Euclidean)
	if err != nil {
		return nil, err
	}

	// B = -1/2 J D^2 J with J = I - 11^T/n, computed directly from row,
	// column, and grand means of the squared distances.
	sq := make([][]float64, n)
	rowMean := make([]float64, n)
	grand := 0.0
	for i := range dist {
		sq[i] = make([]float64, n)
		for j := range dist[i] {
			v := dist[i][j] * dist[i][j]
			sq[i][j] = v
			rowMean[i] += v
			grand += v
		}
		rowMean[i] /= float64(n)
	}
	grand /= float64(n * n)

	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, -0.5*(sq[i][j]-rowMean[i]-rowMean[j]+grand))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(b, true); !ok {
		return nil, fmt.Errorf("mds: eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues ascend; take the top dims positive ones.
	order := make([]int, len(vals))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return vals[order[a]] > vals[order[b]] })

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dims)
	}
	for c := 0; c < dims; c++ {
		idx := order[c]
		ev := vals[idx]
		if ev <= 0 {
			continue // remaining coordinates stay zero
		}
		scale := math.Sqrt(ev)
		for i := 0; i < n; i++ {
			out[i][c] = vecs.At(i, idx) * scale
		}
	}
	return out, nil
}
