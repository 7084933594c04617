package manifold

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ckoons/Tekton-sub009/internal/config"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"github.com/montanaflynn/stats"
)

// Structure describes the recovered geometry of a cloud of system states.
type Structure struct {
	IntrinsicDimension  int         `json:"intrinsic_dimension"`
	PrincipalDirections [][]float64 `json:"principal_directions"`
	ExplainedVariance   []float64   `json:"explained_variance"`
	Embedding           [][]float64 `json:"embedding"`
	Topology            Topology    `json:"topology"`
	RegimeLabels        []int       `json:"regime_labels,omitempty"`
}

// Topology holds the stage-local derived metrics of the embedded cloud.
type Topology struct {
	MeanLocalDensity  float64 `json:"mean_local_density"`
	DensityVariance   float64 `json:"density_variance"`
	Connectivity      float64 `json:"connectivity"`
	MeanCurvature     float64 `json:"mean_curvature"`
	CurvatureVariance float64 `json:"curvature_variance"`
}

// Analyzer recovers the geometric structure of collective state observations:
// intrinsic dimension, embedding, topology, and trajectory shape.
type Analyzer struct {
	cfg config.ManifoldConfig
	log *slog.Logger
}

func New(cfg config.ManifoldConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.VarianceThreshold <= 0 || cfg.VarianceThreshold > 1 {
		cfg.VarianceThreshold = config.DefaultVarianceThreshold
	}
	if cfg.MinDimension < 1 {
		cfg.MinDimension = 1
	}
	if cfg.MaxDimension < cfg.MinDimension {
		cfg.MaxDimension = config.DefaultMaxDimension
	}
	if cfg.Neighbors < 2 {
		cfg.Neighbors = config.DefaultNeighbors
	}
	if cfg.DisagreementRatio <= 1 {
		cfg.DisagreementRatio = 2.0
	}
	if cfg.EmbeddingMethod == "" {
		cfg.EmbeddingMethod = "pca"
	}
	if cfg.Normalization == "" {
		cfg.Normalization = "standard"
	}
	return &Analyzer{cfg: cfg, log: logger}
}

// Options tune a single Analyze call without mutating the analyzer.
type Options struct {
	Components      int  // force embedding dimension; 0 means estimate
	IdentifyRegimes bool // cluster the embedding into regimes
}

// Analyze validates, normalizes, and reduces an observation matrix, returning
// the manifold structure inside a self-describing result record.
func (a *Analyzer) Analyze(data [][]float64, opts Options) (*foundation.Result, error) {
	result := foundation.NewResult("manifold_analysis")

	ok, warns := foundation.Validate(data)
	if !ok {
		return nil, fmt.Errorf("manifold: %s: %w", warns[0], foundation.ErrInvalidData)
	}
	for _, w := range warns {
		result.Warn(w, 0.1)
	}

	a.log.Info("analyzing manifold", "samples", len(data), "features", len(data[0]))

	normalized, _, normWarns, err := foundation.Normalize(foundation.CloneMatrix(data), foundation.NormMethod(a.cfg.Normalization))
	if err != nil {
		return nil, fmt.Errorf("manifold: %w", err)
	}
	for _, w := range normWarns {
		a.log.Warn("normalization fallback", "detail", w)
		result.Warn(w, 0.05)
	}

	structure, err := a.buildStructure(normalized, opts, result)
	if err != nil {
		return nil, err
	}

	result.Data["manifold_structure"] = structure
	result.Data["n_samples"] = len(data)
	result.Data["original_dimensions"] = len(data[0])
	result.Metadata["embedding_method"] = a.cfg.EmbeddingMethod
	result.Metadata["variance_threshold"] = a.cfg.VarianceThreshold
	result.Metadata["normalization"] = a.cfg.Normalization
	return result, nil
}

func (a *Analyzer) buildStructure(normalized [][]float64, opts Options, result *foundation.Result) (*Structure, error) {
	dim := opts.Components
	if dim <= 0 {
		var err error
		dim, err = a.intrinsicDimension(normalized, result)
		if err != nil {
			return nil, err
		}
	}
	if dim > a.cfg.MaxDimension {
		dim = a.cfg.MaxDimension
	}
	if dim > len(normalized[0]) {
		dim = len(normalized[0])
	}

	pca, pcaWarns, err := foundation.FitPCA(normalized, dim)
	if err != nil {
		return nil, fmt.Errorf("manifold: %w", err)
	}
	for _, w := range pcaWarns {
		result.Warn(w, 0.05)
	}

	embedder, err := GetEmbedder(a.cfg.EmbeddingMethod)
	if err != nil {
		return nil, fmt.Errorf("manifold: %w", err)
	}
	embedding, err := embedder.Embed(normalized, len(pca.Components))
	if err != nil {
		// Fall back to the linear baseline rather than failing the call.
		a.log.Warn("embedding failed, falling back to linear projection", "method", embedder.Name(), "err", err)
		result.Warn(fmt.Sprintf("%s embedding failed (%v), used linear projection", embedder.Name(), err), 0.1)
		embedding = pca.Transform(normalized)
	}

	topo, err := a.analyzeTopology(embedding)
	if err != nil {
		result.Warn(fmt.Sprintf("topology analysis degraded: %v", err), 0.1)
		topo = &Topology{}
	}

	structure := &Structure{
		IntrinsicDimension:  len(pca.Components),
		PrincipalDirections: pca.Components,
		ExplainedVariance:   pca.ExplainedVariance,
		Embedding:           embedding,
		Topology:            *topo,
	}

	if opts.IdentifyRegimes {
		labels := clusterRegimes(embedding)
		structure.RegimeLabels = labels
		result.Data["n_regimes"] = countClusters(labels)
	}
	return structure, nil
}

// intrinsicDimension reconciles the global explained-variance estimate with a
// local neighborhood-based one. When the two disagree by more than the
// configured factor, the local estimate wins and the result is flagged.
func (a *Analyzer) intrinsicDimension(data [][]float64, result *foundation.Result) (int, error) {
	globalDim, _, warns, err := foundation.EstimateDimensionality(data, a.cfg.VarianceThreshold)
	if err != nil {
		return 0, fmt.Errorf("manifold: %w", err)
	}
	for _, w := range warns {
		result.Warn(w, 0.05)
	}

	dim := globalDim
	if len(data) > 3*a.cfg.Neighbors {
		localDim, err := a.localDimension(data)
		if err != nil {
			result.Warn(fmt.Sprintf("local dimension estimate failed: %v", err), 0.05)
		} else {
			hi := math.Max(float64(globalDim), float64(localDim))
			lo := math.Min(float64(globalDim), float64(localDim))
			if lo > 0 && hi/lo > a.cfg.DisagreementRatio {
				result.Warn(fmt.Sprintf("dimension estimates disagree: global %d vs local %d, using local", globalDim, localDim), 0.15)
				dim = localDim
			}
		}
	}

	if dim < a.cfg.MinDimension {
		dim = a.cfg.MinDimension
	}
	a.log.Info("estimated intrinsic dimension", "global", globalDim, "chosen", dim)
	return dim, nil
}

// localDimension estimates intrinsic dimension as the median over per-point
// local PCA estimates on k-neighborhoods.
func (a *Analyzer) localDimension(data [][]float64) (int, error) {
	dist, err := foundation.DistanceMatrix(data, foundation.Euclidean)
	if err != nil {
		return 0, err
	}

	k := a.cfg.Neighbors
	step := 1
	if len(data) > 100 {
		step = len(data) / 100
	}

	var estimates []float64
	for i := 0; i < len(data); i += step {
		nbrs := foundation.NearestIndices(dist, i, k)
		local := make([][]float64, len(nbrs))
		for j, n := range nbrs {
			local[j] = data[n]
		}
		d, _, _, err := foundation.EstimateDimensionality(local, 0.9)
		if err != nil {
			continue
		}
		estimates = append(estimates, float64(d))
	}
	if len(estimates) == 0 {
		return 0, fmt.Errorf("no usable neighborhoods")
	}
	med, err := stats.Median(estimates)
	if err != nil {
		return 0, err
	}
	return int(math.Round(med)), nil
}

func countClusters(labels []int) int {
	seen := make(map[int]bool)
	for _, l := range labels {
		if l >= 0 {
			seen[l] = true
		}
	}
	return len(seen)
}
