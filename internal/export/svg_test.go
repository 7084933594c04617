package export

import (
	"strings"
	"testing"

	"github.com/ckoons/Tekton-sub009/internal/catastrophe"
)

func TestEmbeddingToSVG(t *testing.T) {
	embedding := [][]float64{{0, 0}, {1, 1}, {2, 0}, {1, -1}}
	labels := []int{0, 0, 1, -1}
	points := []*catastrophe.CriticalPoint{
		{Location: []float64{1, 0}, Type: catastrophe.Fold},
	}

	svg := EmbeddingToSVG(embedding, labels, points, 400, 300)
	if !strings.HasPrefix(svg, `<?xml version="1.0"`) {
		t.Fatal("missing XML header")
	}
	if strings.Count(svg, "<circle") != 4 {
		t.Errorf("expected 4 scatter points, got %d", strings.Count(svg, "<circle"))
	}
	if !strings.Contains(svg, "fold") {
		t.Error("critical point marker should carry its type label")
	}
	if !strings.Contains(svg, "#555555") {
		t.Error("noise label should use the muted color")
	}
}

func TestEmbeddingToSVGRejectsLowDimension(t *testing.T) {
	if svg := EmbeddingToSVG([][]float64{{1}, {2}}, nil, nil, 100, 100); svg != "" {
		t.Error("1-dimensional embedding should return empty output")
	}
}

func TestTrajectoryToSVG(t *testing.T) {
	embedding := [][]float64{{0, 0}, {1, 1}, {2, 0}}
	svg := TrajectoryToSVG(embedding, 400, 300, "#00ff00")
	if !strings.Contains(svg, "<path") {
		t.Fatal("missing path element")
	}
	if strings.Count(svg, " L") != 2 {
		t.Errorf("expected 2 line segments, got %d", strings.Count(svg, " L"))
	}
}
