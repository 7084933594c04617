package catastrophe

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ckoons/Tekton-sub009/internal/dynamics"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"github.com/ckoons/Tekton-sub009/internal/manifold"
)

// detectTrajectoryTransitions finds critical points from the trajectory alone:
// peaks in rolling variance and sudden jumps in step size.
func (a *Analyzer) detectTrajectoryTransitions(trajectory [][]float64) []*CriticalPoint {
	var points []*CriticalPoint
	w := a.cfg.WindowSize
	if len(trajectory) < 2*w {
		return points
	}

	variances := rollingVariance(trajectory, w)
	mean, sd := stat.MeanStdDev(variances, nil)
	if math.IsNaN(sd) {
		sd = 0
	}
	height := mean + a.cfg.WarningThreshold*sd
	maxVar := 0.0
	for _, v := range variances {
		if v > maxVar {
			maxVar = v
		}
	}

	for _, peak := range peaks(variances, height, w/2) {
		center := peak + w/2
		preLo := peak - 10
		if preLo < 0 {
			preLo = 0
		}
		postHi := peak + 10
		if postHi > len(variances) {
			postHi = len(variances)
		}
		preVar := stat.Mean(variances[preLo:peak+1], nil)
		postVar := stat.Mean(variances[peak:postHi], nil)

		points = append(points, &CriticalPoint{
			Location: trajectory[center],
			Type:     a.classify.Classify(trajectory, center, w),
			StabilityChange: map[string]float64{
				"variance_ratio":  postVar / (preVar + 1e-10),
				"variance_change": postVar - preVar,
			},
			WarningSignals: []string{"critical_slowing_down", "increased_variance"},
			ControlParams:  map[string]float64{},
			Confidence:     variances[peak] / (maxVar + 1e-10),
		})
	}

	steps := stepSizes(trajectory)
	stepMean, stepSD := stat.MeanStdDev(steps, nil)
	if math.IsNaN(stepSD) {
		stepSD = 0
	}
	jumpThreshold := stepMean + 3*stepSD
	for i, s := range steps {
		if s <= jumpThreshold {
			continue
		}
		points = append(points, &CriticalPoint{
			Location: trajectory[i],
			Type:     Fold,
			StabilityChange: map[string]float64{
				"jump_magnitude": s,
				"relative_jump":  s / (stepMean + 1e-10),
			},
			WarningSignals: []string{"sudden_jump"},
			ControlParams:  map[string]float64{},
			Confidence:     0.8,
		})
	}

	if len(points) > 0 {
		a.log.Info("trajectory transitions detected", "count", len(points))
	}
	return points
}

// detectDynamicsBifurcations inspects each regime's dynamics matrix for
// eigenvalue configurations near a bifurcation boundary.
func (a *Analyzer) detectDynamicsBifurcations(model *dynamics.SLDSModel) []*CriticalPoint {
	var points []*CriticalPoint

	for k, A := range model.Dynamics {
		eigs, ok := eigenvalues(A)
		if !ok {
			continue
		}

		location := []float64{0}
		if k < len(model.InitialMeans) {
			location = model.InitialMeans[k]
		}

		var oscFreq float64
		oscillatory := false
		for _, e := range eigs {
			if math.Abs(imag(e)) > 1e-6 && math.Abs(cmplx.Abs(e)-1) < 0.1 {
				oscillatory = true
				oscFreq += math.Abs(imag(e))
			}
		}
		if oscillatory {
			points = append(points, &CriticalPoint{
				Location: location,
				Type:     Hopf,
				StabilityChange: map[string]float64{
					"oscillation_frequency": oscFreq,
					"spectral_radius":       spectralRadius(eigs),
				},
				WarningSignals: []string{"eigenvalue_crossing", "oscillatory_behavior"},
				ControlParams:  map[string]float64{"regime": float64(k)},
				Confidence:     0.7,
			})
		}

		minMod := math.Inf(1)
		for _, e := range eigs {
			if m := cmplx.Abs(e); m < minMod {
				minMod = m
			}
		}
		radius := spectralRadius(eigs)
		if minMod < 0.1 || math.Abs(radius-1) < 0.05 {
			points = append(points, &CriticalPoint{
				Location: location,
				Type:     SaddleNode,
				StabilityChange: map[string]float64{
					"min_eigenvalue":   minMod,
					"stability_margin": 1 - radius,
				},
				WarningSignals: []string{"marginal_stability"},
				ControlParams:  map[string]float64{"regime": float64(k)},
				Confidence:     0.6,
			})
		}
	}
	return points
}

// detectManifoldSingularities flags fold-like geometry (high curvature
// variance) and isolated low-density points of the embedding.
func (a *Analyzer) detectManifoldSingularities(structure *manifold.Structure) []*CriticalPoint {
	var points []*CriticalPoint

	embedding := structure.Embedding
	if len(embedding) < 10 {
		return points
	}

	topo := structure.Topology
	if topo.CurvatureVariance > 0.5 {
		points = append(points, &CriticalPoint{
			Location: centroid(embedding),
			Type:     Fold,
			StabilityChange: map[string]float64{
				"curvature_mean":     topo.MeanCurvature,
				"curvature_variance": topo.CurvatureVariance,
			},
			WarningSignals: []string{"high_curvature_variance"},
			ControlParams:  map[string]float64{},
			Confidence:     0.5,
		})
	}

	if idx, density, meanDensity := sparsestPoint(embedding); idx >= 0 && density < 0.25*meanDensity {
		points = append(points, &CriticalPoint{
			Location: embedding[idx],
			Type:     Unclassified,
			StabilityChange: map[string]float64{
				"local_density": density,
				"mean_density":  meanDensity,
			},
			WarningSignals: []string{"low_density_singularity"},
			ControlParams:  map[string]float64{},
			Confidence:     0.4,
		})
	}
	return points
}

// sparsestPoint returns the index of the lowest-density sample, its density,
// and the mean density over all samples. Density is the inverse mean distance
// to the 5 nearest neighbors.
func sparsestPoint(embedding [][]float64) (int, float64, float64) {
	dist, err := foundation.DistanceMatrix(embedding, foundation.Euclidean)
	if err != nil {
		return -1, 0, 0
	}
	k := 5
	if k >= len(embedding) {
		k = len(embedding) - 1
	}

	minIdx, minDensity, total := -1, math.Inf(1), 0.0
	for i := range embedding {
		nbrs := foundation.NearestIndices(dist, i, k)
		sum := 0.0
		for _, n := range nbrs {
			sum += dist[i][n]
		}
		density := float64(k) / (sum + 1e-10)
		total += density
		if density < minDensity {
			minDensity = density
			minIdx = i
		}
	}
	return minIdx, minDensity, total / float64(len(embedding))
}

// rollingVariance is the mean per-feature variance over each sliding window.
func rollingVariance(trajectory [][]float64, window int) []float64 {
	n := len(trajectory) - window
	d := len(trajectory[0])
	out := make([]float64, n)
	col := make([]float64, window)
	for i := 0; i < n; i++ {
		total := 0.0
		for j := 0; j < d; j++ {
			for t := 0; t < window; t++ {
				col[t] = trajectory[i+t][j]
			}
			total += stat.Variance(col, nil)
		}
		out[i] = total / float64(d)
	}
	return out
}

// peaks finds local maxima above height, keeping only the larger of any two
// maxima closer than minDistance.
func peaks(series []float64, height float64, minDistance int) []int {
	var found []int
	for i := 1; i < len(series)-1; i++ {
		if series[i] < height || series[i] < series[i-1] || series[i] <= series[i+1] {
			continue
		}
		if n := len(found); n > 0 && i-found[n-1] < minDistance {
			if series[i] > series[found[n-1]] {
				found[n-1] = i
			}
			continue
		}
		found = append(found, i)
	}
	return found
}

func stepSizes(trajectory [][]float64) []float64 {
	out := make([]float64, len(trajectory)-1)
	for i := range out {
		out[i] = foundation.Distance(trajectory[i], trajectory[i+1], foundation.Euclidean)
	}
	return out
}

func centroid(points [][]float64) []float64 {
	c := make([]float64, len(points[0]))
	for _, p := range points {
		for d := range c {
			c[d] += p[d] / float64(len(points))
		}
	}
	return c
}

func eigenvalues(A [][]float64) ([]complex128, bool) {
	n := len(A)
	if n == 0 {
		return nil, false
	}
	m := mat.NewDense(n, n, nil)
	for i, row := range A {
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	var eig mat.Eigen
	if !eig.Factorize(m, mat.EigenNone) {
		return nil, false
	}
	return eig.Values(nil), true
}

func spectralRadius(eigs []complex128) float64 {
	r := 0.0
	for _, e := range eigs {
		if m := cmplx.Abs(e); m > r {
			r = m
		}
	}
	return r
}
