package synthesis

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ckoons/Tekton-sub009/internal/config"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

// ScaleSummary is one scale's worth of evidence: a system-size indicator and
// the scalar metrics measured at that scale.
type ScaleSummary struct {
	Size    float64            `json:"size"`
	Metrics map[string]float64 `json:"metrics"`
}

// Principle is a pattern that holds across scales.
type Principle struct {
	Type          string             `json:"principle_type"`
	Metric        string             `json:"metric"`
	Description   string             `json:"description"`
	Form          string             `json:"mathematical_form"`
	Parameters    map[string]float64 `json:"parameters"`
	ValidityRange map[string]float64 `json:"validity_range"`
	Confidence    float64            `json:"confidence"`
	Evidence      []Evidence         `json:"evidence"`
}

// Evidence ties a principle back to one observed scale.
type Evidence struct {
	Scale string  `json:"scale"`
	Size  float64 `json:"size"`
	Value float64 `json:"value"`
}

// EmergentProperty is a metric absent below some scale and present above it.
type EmergentProperty struct {
	Property string  `json:"property"`
	Scale    string  `json:"emerges_at_scale"`
	Size     float64 `json:"emergence_size"`
	Value    float64 `json:"value"`
}

// CrossScalePattern relates a pair of scales far enough apart to compare.
type CrossScalePattern struct {
	Type           string   `json:"type"`
	Scales         []string `json:"scales"`
	SizeRatio      float64  `json:"size_ratio"`
	DimensionRatio float64  `json:"dimension_ratio"`
	Relationship   string   `json:"relationship"` // nested or reduced
}

// Analyzer extracts universal principles from per-scale summaries: scaling
// laws, scale-invariant patterns, conservation laws, and emergent properties.
type Analyzer struct {
	cfg config.SynthesisConfig
	log *slog.Logger
}

func New(cfg config.SynthesisConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinScaleRatio <= 1 {
		cfg.MinScaleRatio = config.DefaultMinScaleRatio
	}
	if cfg.FitConfidence <= 0 || cfg.FitConfidence >= 1 {
		cfg.FitConfidence = config.DefaultFitConfidence
	}
	if cfg.ConservedBand <= 0 {
		cfg.ConservedBand = 0.1
	}
	if cfg.FractalScales < 3 {
		cfg.FractalScales = 3
	}
	if cfg.InvarianceBand <= 0 {
		cfg.InvarianceBand = 0.2
	}
	return &Analyzer{cfg: cfg, log: logger}
}

// Analyze synthesizes principles from the supplied scales. Too few or too
// similar scales is a legitimate "no principle found" outcome: the result
// comes back with zero principles and confidence 0, not an error.
func (a *Analyzer) Analyze(scales map[string]ScaleSummary) (*foundation.Result, error) {
	result := foundation.NewResult("synthesis_analysis")

	names, err := validateScales(scales)
	if err != nil {
		return nil, err
	}

	a.log.Info("synthesizing principles", "scales", len(scales))

	if reason := a.insufficientEvidence(scales); reason != "" {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", reason, foundation.ErrInsufficientEvidence))
		result.Confidence = 0
		result.Data["universal_principles"] = []*Principle{}
		result.Data["n_principles"] = 0
		result.Metadata["scales_analyzed"] = names
		return result, nil
	}

	var principles []*Principle
	principles = append(principles, a.findScalingLaws(scales)...)
	principles = append(principles, a.findFractalPatterns(scales)...)
	principles = append(principles, a.findConservationLaws(scales)...)
	principles = append(principles, a.findDimensionalScaling(scales)...)

	emergent := a.identifyEmergentProperties(scales)
	principles = append(principles, a.matchKnownPatterns(scales, emergent)...)

	result.Data["universal_principles"] = principles
	result.Data["n_principles"] = len(principles)
	result.Data["emergent_properties"] = emergent
	result.Data["cross_scale_patterns"] = a.findCrossScalePatterns(scales)
	result.Data["scale_invariant_features"] = scaleInvariantFeatures(scales)
	result.Metadata["scales_analyzed"] = names
	result.Metadata["min_scale_ratio"] = a.cfg.MinScaleRatio
	return result, nil
}

func validateScales(scales map[string]ScaleSummary) ([]string, error) {
	names := make([]string, 0, len(scales))
	for name, s := range scales {
		if s.Size <= 0 || math.IsNaN(s.Size) || math.IsInf(s.Size, 0) {
			return nil, fmt.Errorf("synthesis: scale %q has invalid size %v: %w", name, s.Size, foundation.ErrInvalidData)
		}
		if len(s.Metrics) == 0 {
			return nil, fmt.Errorf("synthesis: scale %q has no metrics: %w", name, foundation.ErrInvalidData)
		}
		for metric, v := range s.Metrics {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("synthesis: scale %q metric %q is non-finite: %w", name, metric, foundation.ErrInvalidData)
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// insufficientEvidence returns a reason string when no principle extraction
// should be attempted, or "" when the scales qualify.
func (a *Analyzer) insufficientEvidence(scales map[string]ScaleSummary) string {
	if len(scales) < 2 {
		return fmt.Sprintf("need at least 2 scales, have %d", len(scales))
	}
	minSize, maxSize := math.Inf(1), math.Inf(-1)
	for _, s := range scales {
		minSize = math.Min(minSize, s.Size)
		maxSize = math.Max(maxSize, s.Size)
	}
	if ratio := maxSize / minSize; ratio < a.cfg.MinScaleRatio {
		return fmt.Sprintf("scale ratio %.1f below required %.1f", ratio, a.cfg.MinScaleRatio)
	}
	return ""
}

// metricSeries collects (scale, size, value) triples for one metric, ordered
// by size.
func metricSeries(scales map[string]ScaleSummary, metric string) []Evidence {
	var series []Evidence
	for name, s := range scales {
		if v, ok := s.Metrics[metric]; ok {
			series = append(series, Evidence{Scale: name, Size: s.Size, Value: v})
		}
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Size != series[j].Size {
			return series[i].Size < series[j].Size
		}
		return series[i].Scale < series[j].Scale
	})
	return series
}

// metricNames returns every metric key observed at any scale, sorted.
func metricNames(scales map[string]ScaleSummary) []string {
	seen := make(map[string]bool)
	for _, s := range scales {
		for m := range s.Metrics {
			seen[m] = true
		}
	}
	names := make([]string, 0, len(seen))
	for m := range seen {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// scaleInvariantFeatures lists metrics observed at 80% or more of the scales.
func scaleInvariantFeatures(scales map[string]ScaleSummary) []string {
	counts := make(map[string]int)
	for _, s := range scales {
		for m := range s.Metrics {
			counts[m]++
		}
	}
	var features []string
	for m, c := range counts {
		if float64(c) >= 0.8*float64(len(scales)) {
			features = append(features, m)
		}
	}
	sort.Strings(features)
	return features
}
