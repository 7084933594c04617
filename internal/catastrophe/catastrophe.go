package catastrophe

import (
	"fmt"
	"log/slog"

	"github.com/ckoons/Tekton-sub009/internal/config"
	"github.com/ckoons/Tekton-sub009/internal/dynamics"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"github.com/ckoons/Tekton-sub009/internal/manifold"
)

// BifurcationType labels a critical point with the qualitative change it
// corresponds to. The set is closed; anything the heuristics cannot place
// stays Unclassified rather than getting an invented label.
type BifurcationType string

const (
	Fold         BifurcationType = "fold"
	Cusp         BifurcationType = "cusp"
	Hopf         BifurcationType = "hopf"
	Pitchfork    BifurcationType = "pitchfork"
	SaddleNode   BifurcationType = "saddle_node"
	Unclassified BifurcationType = "unclassified"
)

// CriticalPoint is one detected critical transition.
type CriticalPoint struct {
	Location        []float64          `json:"location"`
	Type            BifurcationType    `json:"transition_type"`
	StabilityChange map[string]float64 `json:"stability_change"`
	WarningSignals  []string           `json:"warning_signals"`
	ControlParams   map[string]float64 `json:"control_parameters"`
	Confidence      float64            `json:"confidence"`
}

// Input bundles the upstream evidence. At least one source must be set;
// detectors for missing sources are simply skipped.
type Input struct {
	Trajectory [][]float64
	Manifold   *manifold.Structure
	Dynamics   *dynamics.SLDSModel
}

// Analyzer detects critical transitions from trajectory shape, fitted
// dynamics, and manifold geometry, and computes statistical early-warning
// signals over a sliding window.
type Analyzer struct {
	cfg      config.CatastropheConfig
	log      *slog.Logger
	classify Classifier
}

func New(cfg config.CatastropheConfig, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WindowSize < 4 {
		cfg.WindowSize = config.DefaultWindowSize
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = config.DefaultWarningThreshold
	}
	if cfg.MergeDistance <= 0 {
		cfg.MergeDistance = config.DefaultMergeDistance
	}
	if cfg.Resolution < 10 {
		cfg.Resolution = config.DefaultResolution
	}
	if cfg.Classifier == "" {
		cfg.Classifier = "shape"
	}
	classifier, err := GetClassifier(cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("catastrophe: %w", err)
	}
	return &Analyzer{cfg: cfg, log: logger, classify: classifier}, nil
}

// Analyze detects and merges critical points across the available sources.
// Only malformed trajectory data fails the call; every other anomaly degrades
// into warnings on a still-returned result.
func (a *Analyzer) Analyze(in Input) (*foundation.Result, error) {
	result := foundation.NewResult("catastrophe_analysis")

	if in.Trajectory == nil && in.Manifold == nil && in.Dynamics == nil {
		return nil, fmt.Errorf("catastrophe: no input source supplied: %w", foundation.ErrInvalidData)
	}
	if in.Trajectory != nil {
		ok, warns := foundation.Validate(in.Trajectory)
		if !ok {
			return nil, fmt.Errorf("catastrophe: %s: %w", warns[0], foundation.ErrInvalidData)
		}
		for _, w := range warns {
			result.Warn(w, 0.1)
		}
	}

	a.log.Info("analyzing critical transitions",
		"trajectory", in.Trajectory != nil, "manifold", in.Manifold != nil, "dynamics", in.Dynamics != nil)

	var points []*CriticalPoint
	if in.Trajectory != nil {
		points = append(points, a.detectTrajectoryTransitions(in.Trajectory)...)
	}
	if in.Dynamics != nil {
		points = append(points, a.detectDynamicsBifurcations(in.Dynamics)...)
	}
	if in.Manifold != nil {
		points = append(points, a.detectManifoldSingularities(in.Manifold)...)
	}
	points = a.mergeNearby(points)

	result.Data["critical_points"] = points
	result.Data["n_critical_points"] = len(points)

	if in.Trajectory != nil {
		if signals := a.earlyWarnings(in.Trajectory); signals != nil {
			result.Data["early_warning_signals"] = signals
		} else {
			result.Warn(fmt.Sprintf("trajectory shorter than two windows (%d), early-warning signals skipped", 2*a.cfg.WindowSize), 0.1)
		}
	}

	if in.Manifold != nil && len(in.Manifold.Embedding) >= 10 && len(in.Manifold.Embedding[0]) >= 2 {
		landscape, err := a.analyzeLandscape(in.Manifold.Embedding)
		if err != nil {
			result.Warn(fmt.Sprintf("stability landscape degraded: %v", err), 0.05)
		} else {
			result.Data["stability_landscape"] = landscape
		}
	}

	result.Metadata["window_size"] = a.cfg.WindowSize
	result.Metadata["classifier"] = a.classify.Name()
	result.Metadata["merge_distance"] = a.cfg.MergeDistance
	return result, nil
}

// mergeNearby collapses critical points closer than the merge distance into
// one point: averaged location, the maximum confidence of the group, and the
// union of their warning signals.
func (a *Analyzer) mergeNearby(points []*CriticalPoint) []*CriticalPoint {
	if len(points) <= 1 {
		return points
	}

	merged := make([]*CriticalPoint, 0, len(points))
	used := make([]bool, len(points))

	for i, p := range points {
		if used[i] {
			continue
		}
		group := []*CriticalPoint{p}
		for j := i + 1; j < len(points); j++ {
			if used[j] || len(points[j].Location) != len(p.Location) {
				continue
			}
			d := foundation.Distance(p.Location, points[j].Location, foundation.Euclidean)
			if d < a.cfg.MergeDistance {
				group = append(group, points[j])
				used[j] = true
			}
		}
		if len(group) == 1 {
			merged = append(merged, p)
			continue
		}
		merged = append(merged, mergeGroup(group))
	}
	return merged
}

func mergeGroup(group []*CriticalPoint) *CriticalPoint {
	best := group[0]
	location := make([]float64, len(best.Location))
	seen := make(map[string]bool)
	var signals []string

	for _, p := range group {
		if p.Confidence > best.Confidence {
			best = p
		}
		for d := range location {
			location[d] += p.Location[d] / float64(len(group))
		}
		for _, s := range p.WarningSignals {
			if !seen[s] {
				seen[s] = true
				signals = append(signals, s)
			}
		}
	}

	return &CriticalPoint{
		Location:        location,
		Type:            best.Type,
		StabilityChange: best.StabilityChange,
		WarningSignals:  signals,
		ControlParams:   best.ControlParams,
		Confidence:      best.Confidence,
	}
}
