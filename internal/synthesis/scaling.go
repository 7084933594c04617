package synthesis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// findScalingLaws fits metric = a * size^beta in log space for every metric
// observed at two or more scales, keeping fits above the confidence cutoff.
func (a *Analyzer) findScalingLaws(scales map[string]ScaleSummary) []*Principle {
	var principles []*Principle

	for _, metric := range metricNames(scales) {
		series := metricSeries(scales, metric)
		if len(series) < 2 {
			continue
		}

		fit, ok := powerLawFit(series)
		if !ok || fit.rSquared <= a.cfg.FitConfidence {
			continue
		}
		// A flat metric is a conservation law, not a scaling law.
		if math.Abs(fit.exponent) < 0.05 {
			continue
		}

		principles = append(principles, &Principle{
			Type:        "scaling_law",
			Metric:      metric,
			Description: fmt.Sprintf("%s follows power-law scaling with system size", metric),
			Form:        fmt.Sprintf("%s = a * N^beta", metric),
			Parameters: map[string]float64{
				"exponent":  fit.exponent,
				"amplitude": fit.amplitude,
				"r_squared": fit.rSquared,
			},
			ValidityRange: map[string]float64{
				"min_size": series[0].Size,
				"max_size": series[len(series)-1].Size,
				"n_scales": float64(len(series)),
			},
			Confidence: fit.rSquared,
			Evidence:   series,
		})
	}
	return principles
}

type powerLaw struct {
	exponent  float64
	amplitude float64
	rSquared  float64
}

// powerLawFit regresses log(value) on log(size). Metrics with non-positive
// values cannot be fit this way and report ok = false.
func powerLawFit(series []Evidence) (powerLaw, bool) {
	logX := make([]float64, len(series))
	logY := make([]float64, len(series))
	for i, e := range series {
		if e.Size <= 0 || e.Value <= 0 {
			return powerLaw{}, false
		}
		logX[i] = math.Log(e.Size)
		logY[i] = math.Log(e.Value)
	}

	intercept, slope := stat.LinearRegression(logX, logY, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return powerLaw{}, false
	}

	r := stat.Correlation(logX, logY, nil)
	r2 := r * r
	if math.IsNaN(r2) {
		// Perfectly flat metric: regression is exact but correlation is
		// undefined. Treat as a clean zero-exponent fit.
		r2 = 1
	}
	return powerLaw{exponent: slope, amplitude: math.Exp(intercept), rSquared: r2}, true
}

// findFractalPatterns flags metrics whose ratio to a fitted power of size
// stays inside the invariance band across enough scales, suggesting
// self-similar structure.
func (a *Analyzer) findFractalPatterns(scales map[string]ScaleSummary) []*Principle {
	var principles []*Principle

	for _, metric := range metricNames(scales) {
		series := metricSeries(scales, metric)
		if len(series) < a.cfg.FractalScales {
			continue
		}

		fit, ok := powerLawFit(series)
		if !ok || math.Abs(fit.exponent) < 0.05 {
			continue
		}

		maxDeviation := 0.0
		for _, e := range series {
			expected := fit.amplitude * math.Pow(e.Size, fit.exponent)
			dev := math.Abs(e.Value-expected) / (math.Abs(expected) + 1e-10)
			maxDeviation = math.Max(maxDeviation, dev)
		}
		if maxDeviation > a.cfg.InvarianceBand {
			continue
		}

		principles = append(principles, &Principle{
			Type:        "fractal_pattern",
			Metric:      metric,
			Description: fmt.Sprintf("%s is scale-invariant under rescaling by N^%.2f", metric, fit.exponent),
			Form:        fmt.Sprintf("%s / N^%.2f = constant", metric, fit.exponent),
			Parameters: map[string]float64{
				"scaling_dimension": fit.exponent,
				"max_deviation":     maxDeviation,
			},
			ValidityRange: map[string]float64{
				"min_size": series[0].Size,
				"max_size": series[len(series)-1].Size,
				"n_scales": float64(len(series)),
			},
			Confidence: 1 - maxDeviation,
			Evidence:   series,
		})
	}
	return principles
}

// findConservationLaws flags metrics whose relative variation across all
// scales stays inside the conserved band while the sizes themselves vary.
func (a *Analyzer) findConservationLaws(scales map[string]ScaleSummary) []*Principle {
	var principles []*Principle

	for _, metric := range metricNames(scales) {
		series := metricSeries(scales, metric)
		if len(series) < 3 || len(series) < len(scales) {
			continue
		}

		values := make([]float64, len(series))
		for i, e := range series {
			values[i] = e.Value
		}
		mean, sd := stat.MeanStdDev(values, nil)
		variation := sd / (math.Abs(mean) + 1e-10)
		if variation >= a.cfg.ConservedBand {
			continue
		}

		principles = append(principles, &Principle{
			Type:        "conservation_law",
			Metric:      metric,
			Description: fmt.Sprintf("%s is approximately conserved across scales", metric),
			Form:        fmt.Sprintf("%s = constant", metric),
			Parameters: map[string]float64{
				"conserved_value":    mean,
				"relative_variation": variation,
			},
			ValidityRange: map[string]float64{
				"min_size": series[0].Size,
				"max_size": series[len(series)-1].Size,
				"n_scales": float64(len(series)),
			},
			Confidence: 1 - variation,
			Evidence:   series,
		})
	}
	return principles
}

// findDimensionalScaling tests the intrinsic dimension for logarithmic growth
// with system size, D(N) = a * log(N) + b.
func (a *Analyzer) findDimensionalScaling(scales map[string]ScaleSummary) []*Principle {
	series := metricSeries(scales, "intrinsic_dimension")
	if len(series) < 3 {
		return nil
	}

	logX := make([]float64, len(series))
	dims := make([]float64, len(series))
	for i, e := range series {
		logX[i] = math.Log(e.Size)
		dims[i] = e.Value
	}

	intercept, slope := stat.LinearRegression(logX, dims, nil, false)
	r := stat.Correlation(logX, dims, nil)
	if math.IsNaN(r) || math.Abs(r) <= 0.7 {
		return nil
	}

	return []*Principle{{
		Type:        "dimensional_scaling",
		Metric:      "intrinsic_dimension",
		Description: "intrinsic dimension scales logarithmically with system size",
		Form:        "D(N) = a * log(N) + b",
		Parameters: map[string]float64{
			"log_coefficient": slope,
			"intercept":       intercept,
			"correlation":     r,
		},
		ValidityRange: map[string]float64{
			"min_size": series[0].Size,
			"max_size": series[len(series)-1].Size,
			"n_scales": float64(len(series)),
		},
		Confidence: math.Abs(r),
		Evidence:   series,
	}}
}
