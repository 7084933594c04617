package dynamics

import "math"

// viterbi decodes the globally most likely regime sequence under the fitted
// model, in log space.
func (a *Analyzer) viterbi(model *SLDSModel, data [][]float64) []int {
	n := len(data)
	k := model.NumRegimes
	logLik := a.observationLogLikelihoods(model, data)

	logTrans := make([][]float64, k)
	for i := 0; i < k; i++ {
		logTrans[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			logTrans[i][j] = math.Log(model.RegimeTransitions[i][j] + 1e-300)
		}
	}

	delta := make([][]float64, n)
	psi := make([][]int, n)
	delta[0] = make([]float64, k)
	psi[0] = make([]int, k)
	logPrior := -math.Log(float64(k))
	for r := 0; r < k; r++ {
		delta[0][r] = logPrior + logLik[0][r]
	}

	for t := 1; t < n; t++ {
		delta[t] = make([]float64, k)
		psi[t] = make([]int, k)
		for j := 0; j < k; j++ {
			best, bestPrev := math.Inf(-1), 0
			for i := 0; i < k; i++ {
				s := delta[t-1][i] + logTrans[i][j]
				if s > best {
					best, bestPrev = s, i
				}
			}
			delta[t][j] = best + logLik[t][j]
			psi[t][j] = bestPrev
		}
	}

	path := make([]int, n)
	best := math.Inf(-1)
	for r := 0; r < k; r++ {
		if delta[n-1][r] > best {
			best = delta[n-1][r]
			path[n-1] = r
		}
	}
	for t := n - 2; t >= 0; t-- {
		path[t] = psi[t+1][path[t+1]]
	}
	return path
}

type segment struct {
	start, end int // [start, end)
	regime     int
}

// enforceMinDuration removes regime segments shorter than the configured
// minimum by merging each into the neighboring segment whose regime carries
// the higher posterior mass over the short span.
func (a *Analyzer) enforceMinDuration(sequence []int, gamma [][]float64) []int {
	seq := append([]int{}, sequence...)
	minDur := a.cfg.MinRegimeDuration

	for pass := 0; pass < len(seq); pass++ {
		segs := segments(seq)
		if len(segs) <= 1 {
			break
		}

		merged := false
		for i, s := range segs {
			if s.end-s.start >= minDur {
				continue
			}

			target := -1
			switch {
			case i == 0:
				target = segs[1].regime
			case i == len(segs)-1:
				target = segs[i-1].regime
			default:
				left, right := segs[i-1].regime, segs[i+1].regime
				if posteriorMass(gamma, s, left) >= posteriorMass(gamma, s, right) {
					target = left
				} else {
					target = right
				}
			}
			for t := s.start; t < s.end; t++ {
				seq[t] = target
			}
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return seq
}

func segments(seq []int) []segment {
	var segs []segment
	start := 0
	for t := 1; t <= len(seq); t++ {
		if t == len(seq) || seq[t] != seq[start] {
			segs = append(segs, segment{start: start, end: t, regime: seq[start]})
			start = t
		}
	}
	return segs
}

func posteriorMass(gamma [][]float64, s segment, regime int) float64 {
	sum := 0.0
	for t := s.start; t < s.end; t++ {
		sum += gamma[t][regime]
	}
	return sum
}
