package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Manifold.VarianceThreshold != 0.95 {
		t.Errorf("expected variance threshold 0.95, got %f", cfg.Manifold.VarianceThreshold)
	}
	if cfg.Dynamics.Regimes < 1 {
		t.Error("regime count should be at least 1")
	}
	if cfg.Synthesis.MinScaleRatio != 10.0 {
		t.Errorf("expected min scale ratio 10, got %f", cfg.Synthesis.MinScaleRatio)
	}
	if cfg.Catastrophe.WindowSize <= 0 {
		t.Error("window size should be positive")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("noisy")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Manifold.Normalization != "robust" {
		t.Errorf("expected robust normalization, got %s", cfg.Manifold.Normalization)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noesis.yaml")

	cfg := DefaultConfig()
	cfg.Dynamics.Regimes = 7
	cfg.Synthesis.KnownCritical = []KnownPattern{{Size: 12, Property: "clustering"}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Dynamics.Regimes != 7 {
		t.Errorf("expected 7 regimes, got %d", loaded.Dynamics.Regimes)
	}
	if len(loaded.Synthesis.KnownCritical) != 1 || loaded.Synthesis.KnownCritical[0].Property != "clustering" {
		t.Errorf("known patterns not preserved: %+v", loaded.Synthesis.KnownCritical)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(os.TempDir(), "does-not-exist-noesis.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
