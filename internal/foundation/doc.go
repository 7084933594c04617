// Package foundation provides the shared numerical utilities every analysis
// stage builds on:
//
//   - [Validate]: structural checks on observation matrices
//   - [Normalize] / [Denormalize]: invertible column scaling
//   - [DistanceMatrix]: symmetric pairwise distances
//   - [FitPCA] / [EstimateDimensionality]: ranked variance decomposition
//   - [Result]: the uniform record returned by every analyzer
//
// # Failure policy
//
// Only structurally invalid input produces an error. Numerical trouble (rank
// deficiency, degenerate columns) degrades into warnings and reduced
// confidence on a still-usable value:
//
//	dim, explained, warns, err := foundation.EstimateDimensionality(obs, 0.95)
//	if err != nil {
//	    // input was malformed, nothing to salvage
//	}
package foundation
