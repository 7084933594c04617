package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ckoons/Tekton-sub009/internal/catastrophe"
	"github.com/ckoons/Tekton-sub009/internal/config"
	"github.com/ckoons/Tekton-sub009/internal/dynamics"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"github.com/ckoons/Tekton-sub009/internal/manifold"
	"github.com/ckoons/Tekton-sub009/internal/synthesis"
)

// ScaleInput is one scale's observations: a label, a system-size indicator,
// and a time-ordered observation matrix.
type ScaleInput struct {
	Name         string
	Size         float64
	Observations [][]float64
}

// ScaleResult bundles the per-stage results for one scale.
type ScaleResult struct {
	Name        string
	Size        float64
	Manifold    *foundation.Result
	Dynamics    *foundation.Result
	Catastrophe *foundation.Result
}

// Runner executes the full analysis chain over several scales in parallel and
// synthesizes the per-scale findings. The stages themselves are pure, so the
// only coordination needed is the fan-out.
type Runner struct {
	cfg *config.Config
	log *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, log: logger}
}

// RunScale runs manifold, dynamics, and catastrophe analysis over one scale's
// observations.
func (r *Runner) RunScale(ctx context.Context, in ScaleInput) (*ScaleResult, error) {
	r.log.Info("analyzing scale", "scale", in.Name, "size", in.Size, "samples", len(in.Observations))

	manifoldResult, err := manifold.New(r.cfg.Manifold, r.log).Analyze(in.Observations, manifold.Options{IdentifyRegimes: true})
	if err != nil {
		return nil, fmt.Errorf("pipeline: scale %s: %w", in.Name, err)
	}
	structure := manifoldResult.Data["manifold_structure"].(*manifold.Structure)

	dynamicsResult, err := dynamics.New(r.cfg.Dynamics, r.log).Analyze(ctx, in.Observations)
	if err != nil {
		return nil, fmt.Errorf("pipeline: scale %s: %w", in.Name, err)
	}
	model := dynamicsResult.Data["slds_model"].(*dynamics.SLDSModel)

	catAnalyzer, err := catastrophe.New(r.cfg.Catastrophe, r.log)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	catastropheResult, err := catAnalyzer.Analyze(catastrophe.Input{
		Trajectory: in.Observations,
		Manifold:   structure,
		Dynamics:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: scale %s: %w", in.Name, err)
	}

	return &ScaleResult{
		Name:        in.Name,
		Size:        in.Size,
		Manifold:    manifoldResult,
		Dynamics:    dynamicsResult,
		Catastrophe: catastropheResult,
	}, nil
}

// Run analyzes every scale concurrently and synthesizes the results. The
// returned synthesis result carries each stage's warnings forward.
func (r *Runner) Run(ctx context.Context, scales []ScaleInput) (*foundation.Result, []*ScaleResult, error) {
	results := make([]*ScaleResult, len(scales))
	errs := make([]error, len(scales))

	var wg sync.WaitGroup
	for i := range scales {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = r.RunScale(ctx, scales[idx])
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	summaries := make(map[string]synthesis.ScaleSummary, len(results))
	for _, sr := range results {
		summaries[sr.Name] = summarize(sr)
	}

	synthResult, err := synthesis.New(r.cfg.Synthesis, r.log).Analyze(summaries)
	if err != nil {
		return nil, nil, err
	}
	for _, sr := range results {
		synthResult.CarryWarnings(sr.Manifold)
		synthResult.CarryWarnings(sr.Dynamics)
		synthResult.CarryWarnings(sr.Catastrophe)
	}
	return synthResult, results, nil
}

// summarize reduces one scale's stage results to the scalar metrics the
// synthesis stage consumes.
func summarize(sr *ScaleResult) synthesis.ScaleSummary {
	metrics := make(map[string]float64)

	if structure, ok := sr.Manifold.Data["manifold_structure"].(*manifold.Structure); ok {
		metrics["intrinsic_dimension"] = float64(structure.IntrinsicDimension)
		metrics["connectivity"] = structure.Topology.Connectivity
		metrics["mean_local_density"] = structure.Topology.MeanLocalDensity
		metrics["mean_curvature"] = structure.Topology.MeanCurvature
	}

	if model, ok := sr.Dynamics.Data["slds_model"].(*dynamics.SLDSModel); ok {
		metrics["n_regimes"] = float64(model.NumRegimes)
	}
	if ident, ok := sr.Dynamics.Data["regime_identification"].(*dynamics.RegimeIdentification); ok {
		total := 0.0
		for _, s := range ident.StabilityScores {
			total += s
		}
		if len(ident.StabilityScores) > 0 {
			metrics["mean_stability"] = total / float64(len(ident.StabilityScores))
		}
	}

	if n, ok := sr.Catastrophe.Data["n_critical_points"].(int); ok {
		metrics["n_critical_points"] = float64(n)
	}
	if signals, ok := sr.Catastrophe.Data["early_warning_signals"].(*catastrophe.EarlyWarning); ok {
		metrics["warning_score"] = signals.CompositeScore
	}

	return synthesis.ScaleSummary{Size: sr.Size, Metrics: metrics}
}
