package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

func TestStoreSaveLoadResult(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	result := foundation.NewResult("manifold_analysis")
	result.Data["intrinsic_dimension"] = 3
	result.Warn("small sample", 0.1)

	name, err := st.SaveResult(result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if name == "" {
		t.Error("expected non-empty result name")
	}

	loaded, err := st.LoadResult(name)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.ID != result.ID {
		t.Errorf("expected id %q, got %q", result.ID, loaded.ID)
	}
	if loaded.AnalysisType != "manifold_analysis" {
		t.Errorf("expected manifold_analysis, got %q", loaded.AnalysisType)
	}
	if loaded.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", loaded.Confidence)
	}
	if len(loaded.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(loaded.Warnings))
	}

	if _, err := os.Stat(filepath.Join(tmpDir, name, "result.json")); os.IsNotExist(err) {
		t.Error("result.json not created")
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	entries, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(entries))
	}

	if _, err := st.SaveResult(foundation.NewResult("synthesis_analysis")); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	entries, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].AnalysisType != "synthesis_analysis" {
		t.Errorf("unexpected entry %+v", entries[0])
	}
}

func TestShortID(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"0f93b1a2-4c55-4e2b-9a01-2b7d8c3e4f5a", "0f93b1a2"},
		{"abc", "abc"},
		{"", ""},
		{"12345678", "12345678"},
	}
	for _, c := range cases {
		if got := ShortID(c.id); got != c.want {
			t.Errorf("ShortID(%q) = %q, want %q", c.id, got, c.want)
		}
	}
}

func TestStoreHandlesShortResultID(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	result := foundation.NewResult("dynamics_analysis")
	result.ID = "abc"

	name, err := st.SaveResult(result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if name != "dynamics_analysis_abc" {
		t.Errorf("unexpected result name %q", name)
	}

	entries, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "abc" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observations.csv")
	matrix := [][]float64{
		{1.0, 2.5, -0.5},
		{0.25, 0.0, 3.0},
	}

	if err := SaveMatrix(path, matrix); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadMatrix(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 2 || len(loaded[0]) != 3 {
		t.Fatalf("got %dx%d matrix, want 2x3", len(loaded), len(loaded[0]))
	}
	for i := range matrix {
		for j := range matrix[i] {
			if loaded[i][j] != matrix[i][j] {
				t.Errorf("value [%d][%d] = %v, want %v", i, j, loaded[i][j], matrix[i][j])
			}
		}
	}
}

func TestLoadMatrixRejectsRagged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("x0,x1\n1,2\n3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMatrix(path); err == nil {
		t.Fatal("expected error for ragged rows")
	}
}
