package catastrophe

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

// EarlyWarning holds the statistical precursors of a critical transition
// computed over a sliding window: rising variance, critical slowing down
// (rising lag-1 autocorrelation), and skew.
type EarlyWarning struct {
	VarianceTrend        float64 `json:"variance_trend"`
	VarianceIncreasing   bool    `json:"variance_increasing"`
	AutocorrelationTrend float64 `json:"autocorrelation_trend"`
	CriticalSlowingDown  bool    `json:"critical_slowing_down"`
	MeanSkewness         float64 `json:"mean_skewness"`
	SkewnessVariance     float64 `json:"skewness_variance"`
	CompositeScore       float64 `json:"composite_warning_score"`
	WarningLevel         string  `json:"warning_level"` // low, medium, high
}

// earlyWarnings computes the signal set, or nil when the trajectory is too
// short for two full windows.
func (a *Analyzer) earlyWarnings(trajectory [][]float64) *EarlyWarning {
	w := a.cfg.WindowSize
	if len(trajectory) < 2*w {
		return nil
	}

	n := len(trajectory) - w + 1
	variances := make([]float64, n)
	autocorrs := make([]float64, n)
	skews := make([]float64, n)

	for i := 0; i < n; i++ {
		segment := trajectory[i : i+w]
		variances[i] = meanVariance(segment)

		lead := foundation.Column(segment, 0)
		r := stat.Correlation(lead[:len(lead)-1], lead[1:], nil)
		if math.IsNaN(r) {
			r = 0
		}
		autocorrs[i] = r

		s := stat.Skew(lead, nil)
		if math.IsNaN(s) {
			s = 0
		}
		skews[i] = s
	}

	time := make([]float64, n)
	for i := range time {
		time[i] = float64(i)
	}
	_, varTrend := stat.LinearRegression(time, variances, nil, false)
	_, acTrend := stat.LinearRegression(time, autocorrs, nil, false)

	signals := &EarlyWarning{
		VarianceTrend:        varTrend,
		VarianceIncreasing:   varTrend > 0,
		AutocorrelationTrend: acTrend,
		CriticalSlowingDown:  acTrend > 0,
		MeanSkewness:         stat.Mean(skews, nil),
		SkewnessVariance:     stat.Variance(skews, nil),
	}

	score := 0.0
	if signals.VarianceIncreasing {
		score += 0.4
	}
	if signals.CriticalSlowingDown {
		score += 0.4
	}
	if math.Abs(signals.MeanSkewness) > 0.5 {
		score += 0.2
	}
	signals.CompositeScore = score

	switch {
	case score > 0.7:
		signals.WarningLevel = "high"
	case score >= 0.4:
		signals.WarningLevel = "medium"
	default:
		signals.WarningLevel = "low"
	}
	return signals
}
