package dynamics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ckoons/Tekton-sub009/internal/config"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

// SLDSModel is a fitted switching linear dynamical system: per-regime linear
// dynamics plus a Markov chain over regimes.
type SLDSModel struct {
	NumRegimes        int           `json:"n_regimes"`
	Dynamics          [][][]float64 `json:"dynamics"`           // per-regime state-transition matrix A (d x d)
	Observation       [][][]float64 `json:"observation"`        // per-regime observation matrix C (identity, kept fixed)
	ProcessNoise      [][][]float64 `json:"process_noise"`      // per-regime Q
	ObservationNoise  [][][]float64 `json:"observation_noise"`  // per-regime R
	RegimeTransitions [][]float64   `json:"regime_transitions"` // K x K row-stochastic Markov matrix
	InitialMeans      [][]float64   `json:"initial_means"`
	InitialVariances  [][]float64   `json:"initial_variances"` // diagonal of initial state covariance
	LogLikelihood     float64       `json:"log_likelihood"`
	Converged         bool          `json:"converged"`
	Iterations        int           `json:"iterations"`
}

// RegimeIdentification is the decoded regime structure of a time series.
type RegimeIdentification struct {
	CurrentRegime        int                `json:"current_regime"`
	RegimeProbabilities  []float64          `json:"regime_probabilities"` // posterior at the final sample, sums to 1
	RegimeSequence       []int              `json:"regime_sequence"`      // one label per input sample
	TransitionPoints     []int              `json:"transition_points"`    // sorted sample indices where the label changes
	StabilityScores      map[int]float64    `json:"stability_scores"`
	PredictedTransitions []Prediction       `json:"predicted_transitions"`
	RegimeStability      map[int]*Stability `json:"regime_stability"`
}

// Prediction is a forecast regime switch obtained by propagating the current
// posterior through the Markov chain.
type Prediction struct {
	Horizon     int     `json:"horizon"`
	FromRegime  int     `json:"from_regime"`
	ToRegime    int     `json:"to_regime"`
	Probability float64 `json:"probability"`
}

// Stability summarizes the eigenstructure of one regime's dynamics matrix.
type Stability struct {
	SpectralRadius float64 `json:"spectral_radius"`
	IsStable       bool    `json:"is_stable"`
	Lyapunov       float64 `json:"lyapunov_exponent"`
	ResidenceTime  float64 `json:"average_residence_time"`
}

// Analyzer fits an SLDS to a time-ordered observation matrix and decodes its
// regime structure.
type Analyzer struct {
	cfg config.DynamicsConfig
	log *slog.Logger
}

func New(cfg config.DynamicsConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Regimes < 1 {
		cfg.Regimes = config.DefaultRegimes
	}
	if cfg.EMIterations < 1 {
		cfg.EMIterations = config.DefaultEMIterations
	}
	if cfg.Convergence <= 0 {
		cfg.Convergence = config.DefaultConvergence
	}
	if cfg.MinRegimeDuration < 1 {
		cfg.MinRegimeDuration = config.DefaultMinRegimeDuration
	}
	if cfg.PredictionHorizon < 1 {
		cfg.PredictionHorizon = 10
	}
	if cfg.TransitionCutoff <= 0 || cfg.TransitionCutoff >= 1 {
		cfg.TransitionCutoff = 0.7
	}
	return &Analyzer{cfg: cfg, log: logger}
}

// Analyze fits the regime-switching model and identifies the regime sequence.
// The context is checked between EM iterations; on cancellation the best
// model found so far is still returned, with a warning and reduced
// confidence.
func (a *Analyzer) Analyze(ctx context.Context, data [][]float64) (*foundation.Result, error) {
	result := foundation.NewResult("dynamics_analysis")

	ok, warns := foundation.Validate(data)
	if !ok {
		return nil, fmt.Errorf("dynamics: %s: %w", warns[0], foundation.ErrInvalidData)
	}
	for _, w := range warns {
		result.Warn(w, 0.1)
	}

	regimes := a.cfg.Regimes
	if max := len(data) / (2 * a.cfg.MinRegimeDuration); regimes > max && max >= 1 {
		// An upper bound, not exact: cap so every regime could in principle
		// hold two minimum-length segments.
		result.Warn(fmt.Sprintf("reduced regime count from %d to %d for %d samples", regimes, max, len(data)), 0.05)
		regimes = max
	}

	a.log.Info("fitting slds", "samples", len(data), "features", len(data[0]), "regimes", regimes)

	model, err := a.fit(ctx, data, regimes, result)
	if err != nil {
		return nil, err
	}

	for k := 0; k < model.NumRegimes; k++ {
		if newGaussian(model.ProcessNoise[k]).degraded() {
			result.Warn(fmt.Sprintf("regime %d noise covariance is not positive definite, using diagonal", k), 0.05)
		}
	}

	ident := a.identifyRegimes(model, data)
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Warn("fitting terminated early by caller, model is best-effort", 0.2)
	} else if !model.Converged {
		result.Warn(fmt.Sprintf("EM did not converge within %d iterations", a.cfg.EMIterations), 0.15)
	}

	for regime, s := range ident.RegimeStability {
		if !s.IsStable {
			result.Warn(fmt.Sprintf("regime %d has spectral radius %.3f >= 1, low stability", regime, s.SpectralRadius), 0.05)
		}
	}

	result.Data["slds_model"] = model
	result.Data["regime_identification"] = ident
	result.Data["n_timesteps"] = len(data)
	result.Data["n_features"] = len(data[0])
	result.Metadata["n_regimes"] = regimes
	result.Metadata["em_iterations"] = a.cfg.EMIterations
	result.Metadata["min_regime_duration"] = a.cfg.MinRegimeDuration
	return result, nil
}

// identifyRegimes decodes the most likely regime sequence and derives the
// transition structure from the fitted model.
func (a *Analyzer) identifyRegimes(model *SLDSModel, data [][]float64) *RegimeIdentification {
	gamma, _, _ := a.eStep(model, data)
	sequence := a.viterbi(model, data)
	sequence = a.enforceMinDuration(sequence, gamma)

	var transitions []int
	for t := 1; t < len(sequence); t++ {
		if sequence[t] != sequence[t-1] {
			transitions = append(transitions, t)
		}
	}

	current := sequence[len(sequence)-1]
	currentProbs := append([]float64{}, gamma[len(gamma)-1]...)

	stability := a.analyzeStability(model, sequence)
	scores := make(map[int]float64, model.NumRegimes)
	for k, s := range stability {
		scores[k] = stabilityScore(s.SpectralRadius)
	}

	return &RegimeIdentification{
		CurrentRegime:        current,
		RegimeProbabilities:  currentProbs,
		RegimeSequence:       sequence,
		TransitionPoints:     transitions,
		StabilityScores:      scores,
		PredictedTransitions: a.predictTransitions(model, current, currentProbs),
		RegimeStability:      stability,
	}
}

// stabilityScore maps a spectral radius into (0,1]: contracting dynamics
// (radius < 1) score above 0.5, non-contracting at or below.
func stabilityScore(radius float64) float64 {
	if radius > 2 {
		radius = 2
	}
	return 1 - radius/2
}
