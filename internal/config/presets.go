package config

// Presets are named starting points per analysis stage. "fast" trades
// accuracy for iteration count, "thorough" the opposite, "noisy" hardens the
// defaults against heavy-tailed observations.
var Presets = map[string]func() *Config{
	"fast": func() *Config {
		cfg := DefaultConfig()
		cfg.Dynamics.EMIterations = 15
		cfg.Dynamics.Regimes = 3
		cfg.Catastrophe.Resolution = 25
		cfg.Manifold.MaxDimension = 10
		return cfg
	},
	"thorough": func() *Config {
		cfg := DefaultConfig()
		cfg.Dynamics.EMIterations = 200
		cfg.Dynamics.Convergence = 1e-6
		cfg.Catastrophe.Resolution = 100
		cfg.Manifold.VarianceThreshold = 0.99
		return cfg
	},
	"noisy": func() *Config {
		cfg := DefaultConfig()
		cfg.Manifold.Normalization = "robust"
		cfg.Catastrophe.WarningThreshold = 3.0
		cfg.Dynamics.MinRegimeDuration = 20
		return cfg
	},
}

func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
