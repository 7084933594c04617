package synthesis

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/ckoons/Tekton-sub009/internal/config"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

func defaultAnalyzer() *Analyzer {
	return New(config.DefaultConfig().Synthesis, nil)
}

func principlesOf(t *testing.T, result *foundation.Result) []*Principle {
	t.Helper()
	principles, ok := result.Data["universal_principles"].([]*Principle)
	if !ok {
		t.Fatal("missing universal_principles")
	}
	return principles
}

func findPrinciple(principles []*Principle, kind, metric string) *Principle {
	for _, p := range principles {
		if p.Type == kind && p.Metric == metric {
			return p
		}
	}
	return nil
}

func TestPowerLawScalingRecovered(t *testing.T) {
	scales := map[string]ScaleSummary{}
	for name, size := range map[string]float64{"individual": 10, "team": 100, "collective": 1000} {
		scales[name] = ScaleSummary{
			Size:    size,
			Metrics: map[string]float64{"coordination": 2 * math.Sqrt(size)},
		}
	}

	result, err := defaultAnalyzer().Analyze(scales)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	p := findPrinciple(principlesOf(t, result), "scaling_law", "coordination")
	if p == nil {
		t.Fatal("no scaling law found for coordination")
	}
	if got := p.Parameters["exponent"]; math.Abs(got-0.5) > 0.05 {
		t.Errorf("exponent %v, want 0.5 within 0.05", got)
	}
	if p.Confidence <= 0.8 {
		t.Errorf("confidence %v, want > 0.8", p.Confidence)
	}
	if p.ValidityRange["min_size"] != 10 || p.ValidityRange["max_size"] != 1000 {
		t.Errorf("validity range %v should span observed scales", p.ValidityRange)
	}
}

func TestSingleScaleAbstains(t *testing.T) {
	scales := map[string]ScaleSummary{
		"only": {Size: 100, Metrics: map[string]float64{"dim": 3}},
	}

	result, err := defaultAnalyzer().Analyze(scales)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if n := len(principlesOf(t, result)); n != 0 {
		t.Errorf("got %d principles, want 0", n)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence %v, want 0", result.Confidence)
	}
	if len(result.Warnings) == 0 {
		t.Error("abstention should carry a warning")
	}
}

func TestTooSimilarScalesAbstain(t *testing.T) {
	scales := map[string]ScaleSummary{
		"a": {Size: 10, Metrics: map[string]float64{"dim": 3}},
		"b": {Size: 50, Metrics: map[string]float64{"dim": 4}},
	}

	result, err := defaultAnalyzer().Analyze(scales)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if n := len(principlesOf(t, result)); n != 0 {
		t.Errorf("got %d principles, want 0 for a 5x scale ratio", n)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence %v, want 0", result.Confidence)
	}
}

func TestConservationLawDetected(t *testing.T) {
	scales := map[string]ScaleSummary{
		"a": {Size: 10, Metrics: map[string]float64{"entropy_density": 5.0, "dim": 2}},
		"b": {Size: 200, Metrics: map[string]float64{"entropy_density": 5.1, "dim": 5}},
		"c": {Size: 4000, Metrics: map[string]float64{"entropy_density": 4.95, "dim": 9}},
	}

	result, err := defaultAnalyzer().Analyze(scales)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	p := findPrinciple(principlesOf(t, result), "conservation_law", "entropy_density")
	if p == nil {
		t.Fatal("no conservation law for entropy_density")
	}
	if math.Abs(p.Parameters["conserved_value"]-5.0) > 0.1 {
		t.Errorf("conserved value %v, want near 5.0", p.Parameters["conserved_value"])
	}
	if findPrinciple(principlesOf(t, result), "scaling_law", "entropy_density") != nil {
		t.Error("a conserved metric must not also report a scaling law")
	}
}

func TestDimensionalScalingDetected(t *testing.T) {
	scales := map[string]ScaleSummary{}
	for name, size := range map[string]float64{"s": 10, "m": 100, "l": 1000, "xl": 10000} {
		scales[name] = ScaleSummary{
			Size:    size,
			Metrics: map[string]float64{"intrinsic_dimension": 1.5*math.Log(size) + 2},
		}
	}

	result, err := defaultAnalyzer().Analyze(scales)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	p := findPrinciple(principlesOf(t, result), "dimensional_scaling", "intrinsic_dimension")
	if p == nil {
		t.Fatal("no dimensional scaling principle")
	}
	if math.Abs(p.Parameters["log_coefficient"]-1.5) > 0.05 {
		t.Errorf("log coefficient %v, want 1.5", p.Parameters["log_coefficient"])
	}
}

func TestEmergentPropertyAndKnownPattern(t *testing.T) {
	cfg := config.DefaultConfig().Synthesis
	cfg.KnownCritical = []config.KnownPattern{{Size: 150, Property: "hierarchy"}}

	scales := map[string]ScaleSummary{
		"small": {Size: 10, Metrics: map[string]float64{"dim": 2}},
		"mid":   {Size: 200, Metrics: map[string]float64{"dim": 4, "hierarchy": 1}},
		"large": {Size: 5000, Metrics: map[string]float64{"dim": 7, "hierarchy": 3}},
	}

	result, err := New(cfg, nil).Analyze(scales)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	emergent := result.Data["emergent_properties"].([]EmergentProperty)
	found := false
	for _, e := range emergent {
		if e.Property == "hierarchy" && e.Size == 200 {
			found = true
		}
	}
	if !found {
		t.Errorf("hierarchy should emerge at size 200, got %v", emergent)
	}

	if findPrinciple(principlesOf(t, result), "collective_phase_transition", "hierarchy") == nil {
		t.Error("emergence near the known critical size should match the pattern table")
	}
}

func TestCrossScalePatterns(t *testing.T) {
	scales := map[string]ScaleSummary{
		"small": {Size: 10, Metrics: map[string]float64{"intrinsic_dimension": 3}},
		"large": {Size: 1000, Metrics: map[string]float64{"intrinsic_dimension": 6}},
	}

	result, err := defaultAnalyzer().Analyze(scales)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	patterns := result.Data["cross_scale_patterns"].([]CrossScalePattern)
	if len(patterns) != 1 {
		t.Fatalf("got %d patterns, want 1", len(patterns))
	}
	p := patterns[0]
	if p.Relationship != "nested" || p.DimensionRatio != 2 {
		t.Errorf("unexpected pattern %+v", p)
	}
}

func TestInvalidScaleRejected(t *testing.T) {
	cases := map[string]map[string]ScaleSummary{
		"zero size": {
			"a": {Size: 0, Metrics: map[string]float64{"dim": 1}},
		},
		"no metrics": {
			"a": {Size: 10, Metrics: nil},
		},
		"non-finite metric": {
			"a": {Size: 10, Metrics: map[string]float64{"dim": math.NaN()}},
		},
	}
	for name, scales := range cases {
		if _, err := defaultAnalyzer().Analyze(scales); !errors.Is(err, foundation.ErrInvalidData) {
			t.Errorf("%s: got %v, want invalid data error", name, err)
		}
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	scales := map[string]ScaleSummary{
		"a": {Size: 10, Metrics: map[string]float64{"coordination": 2 * math.Sqrt(10), "dim": 2}},
		"b": {Size: 100, Metrics: map[string]float64{"coordination": 20, "dim": 4}},
		"c": {Size: 1000, Metrics: map[string]float64{"coordination": 2 * math.Sqrt(1000), "dim": 6}},
	}
	a := defaultAnalyzer()

	r1, err := a.Analyze(scales)
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	r2, err := a.Analyze(scales)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if !reflect.DeepEqual(r1.Data, r2.Data) {
		t.Error("identical input must yield identical data")
	}
}
