package dynamics

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// analyzeStability derives each regime's stability from the eigenstructure
// of its dynamics matrix: all eigenvalue moduli below 1 means the regime
// contracts perturbations. The Lyapunov exponent is the log of the leading
// modulus.
func (a *Analyzer) analyzeStability(model *SLDSModel, sequence []int) map[int]*Stability {
	out := make(map[int]*Stability, model.NumRegimes)

	for k := 0; k < model.NumRegimes; k++ {
		s := &Stability{ResidenceTime: averageResidence(sequence, k)}

		radius, ok := spectralRadius(model.Dynamics[k])
		if !ok {
			// Eigendecomposition failed; treat as marginally unstable.
			s.SpectralRadius = 1.0
			s.IsStable = false
			out[k] = s
			continue
		}
		s.SpectralRadius = radius
		s.IsStable = radius < 1.0
		s.Lyapunov = math.Log(radius + 1e-300)
		out[k] = s
	}
	return out
}

func spectralRadius(dynamics [][]float64) (float64, bool) {
	d := len(dynamics)
	dense := mat.NewDense(d, d, nil)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			dense.Set(i, j, dynamics[i][j])
		}
	}

	var eig mat.Eigen
	if ok := eig.Factorize(dense, mat.EigenNone); !ok {
		return 0, false
	}
	radius := 0.0
	for _, v := range eig.Values(nil) {
		if m := cmplx.Abs(v); m > radius {
			radius = m
		}
	}
	return radius, true
}

// averageResidence is the mean length of contiguous runs of a regime in the
// decoded sequence, zero if the regime never occurs.
func averageResidence(sequence []int, regime int) float64 {
	total, runs, run := 0, 0, 0
	for _, r := range sequence {
		if r == regime {
			run++
			continue
		}
		if run > 0 {
			total += run
			runs++
			run = 0
		}
	}
	if run > 0 {
		total += run
		runs++
	}
	if runs == 0 {
		return 0
	}
	return float64(total) / float64(runs)
}

// predictTransitions propagates the current posterior through the regime
// chain and reports every step at which the most probable regime switches
// with probability above the cutoff.
func (a *Analyzer) predictTransitions(model *SLDSModel, current int, probs []float64) []Prediction {
	p := append([]float64{}, probs...)
	next := make([]float64, len(p))
	var predictions []Prediction

	for h := 1; h <= a.cfg.PredictionHorizon; h++ {
		for j := range next {
			next[j] = 0
			for i := range p {
				next[j] += p[i] * model.RegimeTransitions[i][j]
			}
		}
		copy(p, next)

		top := argmax(p)
		if top != current && p[top] > a.cfg.TransitionCutoff {
			predictions = append(predictions, Prediction{
				Horizon:     h,
				FromRegime:  current,
				ToRegime:    top,
				Probability: p[top],
			})
			current = top
		}
	}
	return predictions
}

func argmax(v []float64) int {
	best, idx := math.Inf(-1), 0
	for i, x := range v {
		if x > best {
			best, idx = x, i
		}
	}
	return idx
}
