package foundation

import (
	"time"

	"github.com/google/uuid"
)

// Result is the uniform output record of every analysis stage. Once returned
// by an analyzer it is treated as immutable; downstream stages may read it but
// never modify it.
type Result struct {
	ID           string         `json:"id"`
	AnalysisType string         `json:"analysis_type"`
	Timestamp    time.Time      `json:"timestamp"`
	Data         map[string]any `json:"data"`
	Metadata     map[string]any `json:"metadata"`
	Confidence   float64        `json:"confidence"`
	Warnings     []string       `json:"warnings"`
}

// NewResult creates an empty result for the given stage with full confidence.
func NewResult(analysisType string) *Result {
	return &Result{
		ID:           uuid.NewString(),
		AnalysisType: analysisType,
		Timestamp:    time.Now(),
		Data:         make(map[string]any),
		Metadata:     make(map[string]any),
		Confidence:   1.0,
		Warnings:     make([]string, 0),
	}
}

// Warn appends a caveat and reduces confidence by penalty. Confidence never
// drops below zero. A result keeps confidence 1.0 only if Warn was never
// called on it.
func (r *Result) Warn(msg string, penalty float64) {
	r.Warnings = append(r.Warnings, msg)
	r.Confidence -= penalty
	if r.Confidence < 0 {
		r.Confidence = 0
	}
}

// CarryWarnings copies upstream warnings into this result so they are never
// silently dropped. Confidence is not re-penalized; the upstream result
// already paid for them.
func (r *Result) CarryWarnings(upstream *Result) {
	if upstream == nil {
		return
	}
	for _, w := range upstream.Warnings {
		r.Warnings = append(r.Warnings, upstream.AnalysisType+": "+w)
	}
}
