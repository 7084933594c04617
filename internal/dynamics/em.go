package dynamics

import (
	"context"
	"fmt"
	"math"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const ridge = 0.01 // regularizer for the least-squares dynamics estimates

// fit runs expectation-maximization until the data log-likelihood improves by
// less than the convergence threshold or the iteration budget runs out. The
// context is consulted only at iteration boundaries so cancellation never
// corrupts partial state.
func (a *Analyzer) fit(ctx context.Context, data [][]float64, regimes int, result *foundation.Result) (*SLDSModel, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("dynamics: need at least 3 timesteps, got %d: %w", len(data), foundation.ErrInvalidData)
	}

	model := a.initialize(data, regimes)
	prev := math.Inf(-1)

	for iter := 0; iter < a.cfg.EMIterations; iter++ {
		select {
		case <-ctx.Done():
			a.log.Warn("EM cancelled", "iteration", iter)
			model.Iterations = iter
			return model, nil
		default:
		}

		gamma, counts, ll := a.eStep(model, data)
		model.LogLikelihood = ll
		model.Iterations = iter + 1

		if math.Abs(ll-prev) < a.cfg.Convergence {
			a.log.Info("EM converged", "iterations", iter+1, "log_likelihood", ll)
			model.Converged = true
			return model, nil
		}
		prev = ll

		for _, warn := range a.mStep(model, data, gamma, counts) {
			result.Warn(warn, 0.05)
		}
	}
	return model, nil
}

// initialize seeds the model from contiguous temporal blocks: for a time
// series, equal-length spans are a far better starting partition than
// position-based clustering, and they keep the fit deterministic.
func (a *Analyzer) initialize(data [][]float64, regimes int) *SLDSModel {
	n := len(data)
	d := len(data[0])

	model := &SLDSModel{
		NumRegimes:        regimes,
		Dynamics:          make([][][]float64, regimes),
		Observation:       make([][][]float64, regimes),
		ProcessNoise:      make([][][]float64, regimes),
		ObservationNoise:  make([][][]float64, regimes),
		RegimeTransitions: make([][]float64, regimes),
		InitialMeans:      make([][]float64, regimes),
		InitialVariances:  make([][]float64, regimes),
	}

	for k := 0; k < regimes; k++ {
		lo := k * n / regimes
		hi := (k + 1) * n / regimes
		block := data[lo:hi]

		model.Dynamics[k] = fitLinearDynamics(block, d)
		model.Observation[k] = identity(d)
		model.ProcessNoise[k] = residualCovariance(block, model.Dynamics[k], nil)
		model.ObservationNoise[k] = scaledIdentity(d, 0.1)

		mean := make([]float64, d)
		variance := make([]float64, d)
		for j := 0; j < d; j++ {
			col := foundation.Column(block, j)
			mean[j] = stat.Mean(col, nil)
			variance[j] = stat.Variance(col, nil) + ridge
		}
		model.InitialMeans[k] = mean
		model.InitialVariances[k] = variance

		// Sticky prior on the regime chain: the switch penalty must outweigh
		// a few samples of per-step likelihood advantage, or the smoothing
		// contributes nothing and regimes separate on single samples only.
		row := make([]float64, regimes)
		for j := range row {
			if j == k {
				row[j] = 0.95
			} else if regimes > 1 {
				row[j] = 0.05 / float64(regimes-1)
			}
		}
		if regimes == 1 {
			row[0] = 1.0
		}
		model.RegimeTransitions[k] = row
	}
	return model
}

// eStep computes per-timestep posterior regime probabilities via the scaled
// forward-backward recursion. It returns the posteriors, the expected
// pairwise transition counts, and the data log-likelihood. The pairwise
// counts must come from the joint posterior xi, not a product of marginals:
// the marginal product loses the likelihood coupling between adjacent steps,
// which erodes the learned chain's stickiness and lets the per-regime noise
// covariances drift toward the global covariance.
func (a *Analyzer) eStep(model *SLDSModel, data [][]float64) ([][]float64, [][]float64, float64) {
	n := len(data)
	k := model.NumRegimes

	logLik := a.observationLogLikelihoods(model, data)

	alpha := make([][]float64, n)
	scaledLik := make([][]float64, n)
	maxLog := make([]float64, n)
	ll := 0.0

	for t := 0; t < n; t++ {
		m := math.Inf(-1)
		for r := 0; r < k; r++ {
			if logLik[t][r] > m {
				m = logLik[t][r]
			}
		}
		maxLog[t] = m
		scaledLik[t] = make([]float64, k)
		for r := 0; r < k; r++ {
			scaledLik[t][r] = math.Exp(logLik[t][r] - m)
		}
	}

	// Forward pass with per-step normalization.
	alpha[0] = make([]float64, k)
	sum := 0.0
	for r := 0; r < k; r++ {
		alpha[0][r] = scaledLik[0][r] / float64(k)
		sum += alpha[0][r]
	}
	ll += math.Log(sum+1e-300) + maxLog[0]
	normalize(alpha[0], sum)

	for t := 1; t < n; t++ {
		alpha[t] = make([]float64, k)
		sum = 0.0
		for r := 0; r < k; r++ {
			prior := 0.0
			for j := 0; j < k; j++ {
				prior += alpha[t-1][j] * model.RegimeTransitions[j][r]
			}
			alpha[t][r] = scaledLik[t][r] * prior
			sum += alpha[t][r]
		}
		ll += math.Log(sum+1e-300) + maxLog[t]
		normalize(alpha[t], sum)
	}

	// Backward pass, rescaled each step; the scale cancels in gamma.
	beta := make([][]float64, n)
	beta[n-1] = make([]float64, k)
	for r := 0; r < k; r++ {
		beta[n-1][r] = 1.0
	}
	for t := n - 2; t >= 0; t-- {
		beta[t] = make([]float64, k)
		sum = 0.0
		for r := 0; r < k; r++ {
			v := 0.0
			for j := 0; j < k; j++ {
				v += model.RegimeTransitions[r][j] * scaledLik[t+1][j] * beta[t+1][j]
			}
			beta[t][r] = v
			sum += v
		}
		normalize(beta[t], sum)
	}

	gamma := make([][]float64, n)
	for t := 0; t < n; t++ {
		gamma[t] = make([]float64, k)
		sum = 0.0
		for r := 0; r < k; r++ {
			gamma[t][r] = alpha[t][r] * beta[t][r]
			sum += gamma[t][r]
		}
		normalize(gamma[t], sum)
	}

	// Expected transition counts from the joint posterior
	// xi_t(i,j) ∝ alpha_t(i) P(i,j) p(x_{t+1}|j) beta_{t+1}(j).
	counts := make([][]float64, k)
	for i := range counts {
		counts[i] = make([]float64, k)
	}
	xi := make([][]float64, k)
	for i := range xi {
		xi[i] = make([]float64, k)
	}
	for t := 0; t < n-1; t++ {
		sum = 0.0
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				v := alpha[t][i] * model.RegimeTransitions[i][j] * scaledLik[t+1][j] * beta[t+1][j]
				xi[i][j] = v
				sum += v
			}
		}
		if sum <= 0 {
			continue
		}
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				counts[i][j] += xi[i][j] / sum
			}
		}
	}
	return gamma, counts, ll
}

// mStep re-estimates dynamics, noise, and the regime chain from the soft
// assignments and the expected transition counts. It returns a warning for
// every regime whose update had to fall back to the previous parameters.
func (a *Analyzer) mStep(model *SLDSModel, data [][]float64, gamma, counts [][]float64) []string {
	n := len(data)
	var warns []string

	for k := 0; k < model.NumRegimes; k++ {
		weights := make([]float64, n-1)
		total := 0.0
		for t := 0; t < n-1; t++ {
			weights[t] = gamma[t+1][k]
			total += weights[t]
		}
		if total < 1e-6 {
			warns = append(warns, fmt.Sprintf("regime %d collapsed to zero weight, keeping previous parameters", k))
			continue
		}

		dyn, ok := weightedLinearDynamics(data, weights)
		if !ok {
			warns = append(warns, fmt.Sprintf("ill-conditioned regression for regime %d, keeping previous dynamics", k))
			continue
		}
		model.Dynamics[k] = dyn
		model.ProcessNoise[k] = residualCovariance(data, dyn, weights)

		// Soft update of the initial state toward the first observation.
		w := gamma[0][k]
		for j := range model.InitialMeans[k] {
			model.InitialMeans[k][j] = w*data[0][j] + (1-w)*model.InitialMeans[k][j]
		}
	}

	k := model.NumRegimes
	for i := 0; i < k; i++ {
		rowSum := 0.0
		for j := 0; j < k; j++ {
			rowSum += counts[i][j]
		}
		if rowSum <= 0 {
			continue
		}
		for j := 0; j < k; j++ {
			model.RegimeTransitions[i][j] = counts[i][j] / rowSum
		}
	}
	return warns
}

// observationLogLikelihoods evaluates log p(x_t | regime k) for every step:
// the initial-state Gaussian at t=0 and the one-step dynamics residual
// afterwards.
func (a *Analyzer) observationLogLikelihoods(model *SLDSModel, data [][]float64) [][]float64 {
	n := len(data)
	d := len(data[0])
	k := model.NumRegimes

	likes := make([]*gaussian, k)
	for r := 0; r < k; r++ {
		likes[r] = newGaussian(model.ProcessNoise[r])
	}

	out := make([][]float64, n)
	resid := make([]float64, d)
	for t := 0; t < n; t++ {
		out[t] = make([]float64, k)
		for r := 0; r < k; r++ {
			if t == 0 {
				lp := 0.0
				for j := 0; j < d; j++ {
					diff := data[0][j] - model.InitialMeans[r][j]
					v := model.InitialVariances[r][j]
					lp += -0.5 * (math.Log(2*math.Pi*v) + diff*diff/v)
				}
				out[t][r] = lp
				continue
			}
			predictInto(resid, model.Dynamics[r], data[t-1], data[t])
			out[t][r] = likes[r].logProb(resid)
		}
	}
	return out
}

// predictInto stores target - A*source into resid.
func predictInto(resid []float64, a [][]float64, source, target []float64) {
	for i := range resid {
		pred := 0.0
		for j := range source {
			pred += a[i][j] * source[j]
		}
		resid[i] = target[i] - pred
	}
}

func normalize(v []float64, sum float64) {
	if sum <= 0 {
		u := 1.0 / float64(len(v))
		for i := range v {
			v[i] = u
		}
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

// fitLinearDynamics estimates A with Y = X A^T by ridge least squares over a
// contiguous block. Blocks too short to regress fall back to damped identity.
func fitLinearDynamics(block [][]float64, d int) [][]float64 {
	if len(block) < d+2 {
		return scaledIdentity(d, 0.9)
	}
	weights := make([]float64, len(block)-1)
	for i := range weights {
		weights[i] = 1
	}
	if dyn, ok := weightedLinearDynamics(block, weights); ok {
		return dyn
	}
	return scaledIdentity(d, 0.9)
}

// weightedLinearDynamics solves the weighted normal equations
// (X^T W X + ridge I) B = X^T W Y and returns A = B^T.
func weightedLinearDynamics(series [][]float64, weights []float64) ([][]float64, bool) {
	n := len(series)
	d := len(series[0])
	if n < 2 {
		return nil, false
	}

	xwx := mat.NewDense(d, d, nil)
	xwy := mat.NewDense(d, d, nil)
	for t := 0; t < n-1; t++ {
		w := weights[t]
		if w == 0 {
			continue
		}
		x, y := series[t], series[t+1]
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				xwx.Set(i, j, xwx.At(i, j)+w*x[i]*x[j])
				xwy.Set(i, j, xwy.At(i, j)+w*x[i]*y[j])
			}
		}
	}
	for i := 0; i < d; i++ {
		xwx.Set(i, i, xwx.At(i, i)+ridge)
	}

	var b mat.Dense
	if err := b.Solve(xwx, xwy); err != nil {
		return nil, false
	}

	a := make([][]float64, d)
	for i := 0; i < d; i++ {
		a[i] = make([]float64, d)
		for j := 0; j < d; j++ {
			a[i][j] = b.At(j, i) // A = B^T
		}
	}
	return a, true
}

// residualCovariance computes the (weighted) covariance of one-step
// prediction residuals, diagonally regularized so it stays invertible.
func residualCovariance(series [][]float64, dynamics [][]float64, weights []float64) [][]float64 {
	n := len(series)
	d := len(series[0])
	cov := make([][]float64, d)
	for i := range cov {
		cov[i] = make([]float64, d)
	}
	if n < 2 {
		for i := 0; i < d; i++ {
			cov[i][i] = 0.1
		}
		return cov
	}

	total := 0.0
	resid := make([]float64, d)
	for t := 0; t < n-1; t++ {
		w := 1.0
		if weights != nil {
			w = weights[t]
		}
		if w == 0 {
			continue
		}
		for i := 0; i < d; i++ {
			pred := 0.0
			for j := 0; j < d; j++ {
				pred += dynamics[i][j] * series[t][j]
			}
			resid[i] = series[t+1][i] - pred
		}
		for i := 0; i < d; i++ {
			for j := 0; j < d; j++ {
				cov[i][j] += w * resid[i] * resid[j]
			}
		}
		total += w
	}
	if total <= 0 {
		total = 1
	}
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			cov[i][j] /= total
		}
		cov[i][i] += 1e-6
	}
	return cov
}

func identity(d int) [][]float64 {
	return scaledIdentity(d, 1.0)
}

func scaledIdentity(d int, s float64) [][]float64 {
	m := make([][]float64, d)
	for i := range m {
		m[i] = make([]float64, d)
		m[i][i] = s
	}
	return m
}
