package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultVarianceThreshold = 0.95
	DefaultMinDimension      = 1
	DefaultMaxDimension      = 50
	DefaultNeighbors         = 15
	DefaultRegimes           = 4
	DefaultEMIterations      = 50
	DefaultConvergence       = 1e-4
	DefaultMinRegimeDuration = 10
	DefaultWindowSize        = 50
	DefaultWarningThreshold  = 2.0
	DefaultMergeDistance     = 0.1
	DefaultResolution        = 50
	DefaultMinScaleRatio     = 10.0
	DefaultFitConfidence     = 0.8
)

type Config struct {
	Manifold    ManifoldConfig    `yaml:"manifold"`
	Dynamics    DynamicsConfig    `yaml:"dynamics"`
	Catastrophe CatastropheConfig `yaml:"catastrophe"`
	Synthesis   SynthesisConfig   `yaml:"synthesis"`
}

type ManifoldConfig struct {
	VarianceThreshold float64 `yaml:"variance_threshold"`
	MinDimension      int     `yaml:"min_dimension"`
	MaxDimension      int     `yaml:"max_dimension"`
	EmbeddingMethod   string  `yaml:"embedding_method"` // pca, neighborhood
	Normalization     string  `yaml:"normalization"`    // standard, minmax, robust
	Neighbors         int     `yaml:"neighbors"`
	DisagreementRatio float64 `yaml:"disagreement_ratio"` // local vs global estimate tolerance
}

type DynamicsConfig struct {
	Regimes           int     `yaml:"regimes"` // upper bound, not exact
	EMIterations      int     `yaml:"em_iterations"`
	Convergence       float64 `yaml:"convergence"`
	MinRegimeDuration int     `yaml:"min_regime_duration"`
	PredictionHorizon int     `yaml:"prediction_horizon"`
	TransitionCutoff  float64 `yaml:"transition_cutoff"` // probability to report a predicted switch
}

type CatastropheConfig struct {
	WindowSize       int     `yaml:"window_size"`
	WarningThreshold float64 `yaml:"warning_threshold"` // sigma multiplier for variance peaks
	MergeDistance    float64 `yaml:"merge_distance"`
	Resolution       int     `yaml:"resolution"` // potential surface grid
	Classifier       string  `yaml:"classifier"` // bifurcation classification strategy
}

type SynthesisConfig struct {
	MinScaleRatio  float64        `yaml:"min_scale_ratio"`
	FitConfidence  float64        `yaml:"fit_confidence"`
	ConservedBand  float64        `yaml:"conserved_band"` // max relative variation for conservation laws
	KnownCritical  []KnownPattern `yaml:"known_critical"` // injectable, never hardcoded in the analyzer
	FractalScales  int            `yaml:"fractal_scales"` // minimum scales for self-similarity tests
	InvarianceBand float64        `yaml:"invariance_band"`
}

// KnownPattern is a previously observed critical system size and the emergent
// property it gates. Supplied through configuration so the synthesis stage
// carries no global state of its own.
type KnownPattern struct {
	Size     float64 `yaml:"size"`
	Property string  `yaml:"property"`
}

func DefaultConfig() *Config {
	return &Config{
		Manifold: ManifoldConfig{
			VarianceThreshold: DefaultVarianceThreshold,
			MinDimension:      DefaultMinDimension,
			MaxDimension:      DefaultMaxDimension,
			EmbeddingMethod:   "pca",
			Normalization:     "standard",
			Neighbors:         DefaultNeighbors,
			DisagreementRatio: 2.0,
		},
		Dynamics: DynamicsConfig{
			Regimes:           DefaultRegimes,
			EMIterations:      DefaultEMIterations,
			Convergence:       DefaultConvergence,
			MinRegimeDuration: DefaultMinRegimeDuration,
			PredictionHorizon: 10,
			TransitionCutoff:  0.7,
		},
		Catastrophe: CatastropheConfig{
			WindowSize:       DefaultWindowSize,
			WarningThreshold: DefaultWarningThreshold,
			MergeDistance:    DefaultMergeDistance,
			Resolution:       DefaultResolution,
			Classifier:       "shape",
		},
		Synthesis: SynthesisConfig{
			MinScaleRatio:  DefaultMinScaleRatio,
			FitConfidence:  DefaultFitConfidence,
			ConservedBand:  0.1,
			FractalScales:  3,
			InvarianceBand: 0.2,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
