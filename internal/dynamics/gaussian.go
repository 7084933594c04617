package dynamics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// gaussian evaluates zero-mean multivariate normal log-densities for the
// residual likelihoods. A non-positive-definite covariance falls back to its
// diagonal, which can never fail.
type gaussian struct {
	chol    *mat.Cholesky
	logNorm float64
	diag    []distuv.Normal // fallback, one per dimension
	dim     int
}

func newGaussian(cov [][]float64) *gaussian {
	d := len(cov)
	g := &gaussian{dim: d}

	sym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			sym.SetSym(i, j, 0.5*(cov[i][j]+cov[j][i]))
		}
	}

	var chol mat.Cholesky
	if chol.Factorize(sym) {
		g.chol = &chol
		g.logNorm = -0.5 * (float64(d)*math.Log(2*math.Pi) + chol.LogDet())
		return g
	}

	g.diag = make([]distuv.Normal, d)
	for i := 0; i < d; i++ {
		v := cov[i][i]
		if v <= 0 {
			v = 1e-6
		}
		g.diag[i] = distuv.Normal{Mu: 0, Sigma: math.Sqrt(v)}
	}
	return g
}

// degraded reports whether the full covariance could not be used.
func (g *gaussian) degraded() bool { return g.chol == nil }

func (g *gaussian) logProb(resid []float64) float64 {
	if g.chol == nil {
		lp := 0.0
		for i, n := range g.diag {
			lp += n.LogProb(resid[i])
		}
		return lp
	}

	v := mat.NewVecDense(g.dim, resid)
	var solved mat.VecDense
	if err := g.chol.SolveVecTo(&solved, v); err != nil {
		// Treat an unexpected solve failure like a near-singular matrix.
		return math.Inf(-1)
	}
	quad := mat.Dot(v, &solved)
	return g.logNorm - 0.5*quad
}
