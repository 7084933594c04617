package synthesis

import (
	"fmt"
	"math"
	"sort"
)

// identifyEmergentProperties finds metrics absent (missing or near zero) at
// the smallest scale but present at a larger one, recording the smallest
// scale where each appears.
func (a *Analyzer) identifyEmergentProperties(scales map[string]ScaleSummary) []EmergentProperty {
	ordered := orderedScales(scales)
	if len(ordered) < 2 {
		return nil
	}

	var emergent []EmergentProperty
	for _, metric := range metricNames(scales) {
		if present(scales[ordered[0]], metric) {
			continue
		}
		for _, name := range ordered[1:] {
			if present(scales[name], metric) {
				emergent = append(emergent, EmergentProperty{
					Property: metric,
					Scale:    name,
					Size:     scales[name].Size,
					Value:    scales[name].Metrics[metric],
				})
				break
			}
		}
	}
	return emergent
}

func present(s ScaleSummary, metric string) bool {
	v, ok := s.Metrics[metric]
	return ok && math.Abs(v) > 1e-9
}

// matchKnownPatterns compares emergent properties against the configured
// table of known critical sizes. A property emerging near a known threshold
// is evidence of a collective phase transition.
func (a *Analyzer) matchKnownPatterns(scales map[string]ScaleSummary, emergent []EmergentProperty) []*Principle {
	var principles []*Principle

	for _, pattern := range a.cfg.KnownCritical {
		var evidence []Evidence
		for _, e := range emergent {
			if e.Property != pattern.Property {
				continue
			}
			// The property must appear within a factor of two of the known
			// critical size, and be absent at every scale below half of it.
			if e.Size < 0.5*pattern.Size || e.Size > 2*pattern.Size {
				continue
			}
			belowAbsent := true
			for _, s := range scales {
				if s.Size < 0.5*pattern.Size && present(s, pattern.Property) {
					belowAbsent = false
				}
			}
			if belowAbsent {
				evidence = append(evidence, Evidence{Scale: e.Scale, Size: e.Size, Value: e.Value})
			}
		}
		if len(evidence) == 0 {
			continue
		}

		sort.Slice(evidence, func(i, j int) bool { return evidence[i].Size < evidence[j].Size })
		principles = append(principles, &Principle{
			Type:        "collective_phase_transition",
			Metric:      pattern.Property,
			Description: fmt.Sprintf("%s emerges near the known critical size %.0f", pattern.Property, pattern.Size),
			Form:        fmt.Sprintf("%s(N) = theta(N - %.0f)", pattern.Property, pattern.Size),
			Parameters: map[string]float64{
				"critical_size":  pattern.Size,
				"observed_size":  evidence[0].Size,
				"size_proximity": evidence[0].Size / pattern.Size,
			},
			ValidityRange: map[string]float64{
				"n_scales": float64(len(evidence)),
			},
			Confidence: math.Min(0.9, 0.45*float64(len(evidence))),
			Evidence:   evidence,
		})
	}
	return principles
}

// findCrossScalePatterns relates scale pairs far enough apart, currently
// through their intrinsic dimensions.
func (a *Analyzer) findCrossScalePatterns(scales map[string]ScaleSummary) []CrossScalePattern {
	ordered := orderedScales(scales)
	var patterns []CrossScalePattern

	for i, small := range ordered {
		for _, large := range ordered[i+1:] {
			lo, hi := scales[small], scales[large]
			ratio := hi.Size / lo.Size
			if ratio < a.cfg.MinScaleRatio {
				continue
			}
			d1, ok1 := lo.Metrics["intrinsic_dimension"]
			d2, ok2 := hi.Metrics["intrinsic_dimension"]
			if !ok1 || !ok2 || d1 <= 0 || d2 <= 0 {
				continue
			}

			relationship := "reduced"
			if d2 > d1 {
				relationship = "nested"
			}
			patterns = append(patterns, CrossScalePattern{
				Type:           "dimensional_hierarchy",
				Scales:         []string{small, large},
				SizeRatio:      ratio,
				DimensionRatio: math.Max(d1, d2) / math.Min(d1, d2),
				Relationship:   relationship,
			})
		}
	}
	return patterns
}

// orderedScales returns scale names sorted by size, then name.
func orderedScales(scales map[string]ScaleSummary) []string {
	names := make([]string, 0, len(scales))
	for name := range scales {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if scales[names[i]].Size != scales[names[j]].Size {
			return scales[names[i]].Size < scales[names[j]].Size
		}
		return names[i] < names[j]
	})
	return names
}
