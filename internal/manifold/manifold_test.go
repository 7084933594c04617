package manifold

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ckoons/Tekton-sub009/internal/config"
	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

// rank3Matrix builds a 300x20 observation matrix from 3 independent signals
// linearly mixed into 20 columns plus small noise.
func rank3Matrix(seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))

	mix := make([][]float64, 3)
	for s := range mix {
		mix[s] = make([]float64, 20)
		for j := range mix[s] {
			mix[s][j] = rng.NormFloat64()
		}
	}

	m := make([][]float64, 300)
	for i := range m {
		signals := []float64{
			math.Sin(float64(i) * 0.05),
			rng.NormFloat64(),
			math.Cos(float64(i) * 0.11),
		}
		m[i] = make([]float64, 20)
		for j := 0; j < 20; j++ {
			v := 0.0
			for s := 0; s < 3; s++ {
				v += signals[s] * mix[s][j]
			}
			m[i][j] = v + 0.01*rng.NormFloat64()
		}
	}
	return m
}

func TestIntrinsicDimensionRank3(t *testing.T) {
	a := New(config.DefaultConfig().Manifold, nil)

	result, err := a.Analyze(rank3Matrix(42), Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	structure := result.Data["manifold_structure"].(*Structure)
	if structure.IntrinsicDimension < 2 || structure.IntrinsicDimension > 4 {
		t.Errorf("expected intrinsic dimension 3 (+-1), got %d", structure.IntrinsicDimension)
	}
	if len(structure.Embedding) != 300 {
		t.Errorf("expected 300 embedding rows, got %d", len(structure.Embedding))
	}
	if len(structure.Embedding[0]) != structure.IntrinsicDimension {
		t.Errorf("embedding width %d != intrinsic dimension %d", len(structure.Embedding[0]), structure.IntrinsicDimension)
	}

	sum := 0.0
	prev := math.Inf(1)
	for _, f := range structure.ExplainedVariance {
		if f < 0 || f > prev+1e-12 {
			t.Error("explained variance must be non-negative and descending")
		}
		prev = f
		sum += f
	}
	if sum > 1+1e-9 {
		t.Errorf("explained variance sums to %v", sum)
	}
}

func TestAnalyzeRejectsInvalid(t *testing.T) {
	a := New(config.DefaultConfig().Manifold, nil)
	if _, err := a.Analyze([][]float64{{1, math.NaN()}}, Options{}); err == nil {
		t.Fatal("expected error for non-finite input")
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	a := New(config.DefaultConfig().Manifold, nil)
	data := rank3Matrix(7)

	r1, err := a.Analyze(data, Options{})
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	r2, err := a.Analyze(data, Options{})
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}

	if !reflect.DeepEqual(r1.Data, r2.Data) {
		t.Error("identical input and configuration must yield identical data")
	}
	if r1.Confidence != r2.Confidence {
		t.Errorf("confidence differs: %v vs %v", r1.Confidence, r2.Confidence)
	}
}

func TestAnalyzeDoesNotMutateInput(t *testing.T) {
	a := New(config.DefaultConfig().Manifold, nil)
	data := rank3Matrix(3)
	snapshot := foundation.CloneMatrix(data)

	if _, err := a.Analyze(data, Options{}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !reflect.DeepEqual(data, snapshot) {
		t.Error("analyze mutated its input matrix")
	}
}

func TestEmbedderRegistry(t *testing.T) {
	for _, name := range ListEmbedders() {
		if _, err := GetEmbedder(name); err != nil {
			t.Errorf("registered embedder %s not resolvable: %v", name, err)
		}
	}
	if _, err := GetEmbedder("tsne"); err == nil {
		t.Error("expected error for unknown embedder")
	}
}

func TestMDSRecoversPlanarDistances(t *testing.T) {
	// Points on a plane in 5D: MDS into 2D should preserve pairwise distances.
	rng := rand.New(rand.NewSource(11))
	data := make([][]float64, 40)
	for i := range data {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		data[i] = []float64{a, b, a + b, a - b, 2 * a}
	}

	emb, err := mdsEmbedder{}.Embed(data, 2)
	if err != nil {
		t.Fatalf("mds: %v", err)
	}

	orig, _ := foundation.DistanceMatrix(data, foundation.Euclidean)
	proj, _ := foundation.DistanceMatrix(emb, foundation.Euclidean)
	for i := 0; i < 10; i++ {
		for j := i + 1; j < 10; j++ {
			if orig[i][j] == 0 {
				continue
			}
			ratio := proj[i][j] / orig[i][j]
			if math.Abs(ratio-1) > 0.05 {
				t.Fatalf("distance [%d,%d] distorted by ratio %v", i, j, ratio)
			}
		}
	}
}

func TestTrajectoryStraightLine(t *testing.T) {
	a := New(config.DefaultConfig().Manifold, nil)

	traj := make([][]float64, 50)
	for i := range traj {
		traj[i] = []float64{float64(i), 0}
	}

	res, err := a.AnalyzeTrajectory(traj)
	if err != nil {
		t.Fatalf("trajectory: %v", err)
	}
	if math.Abs(res.Length-49) > 1e-9 {
		t.Errorf("expected length 49, got %v", res.Length)
	}
	if len(res.Velocity) != 50 || len(res.Curvature) != 50 {
		t.Errorf("series must align with samples: vel %d curv %d", len(res.Velocity), len(res.Curvature))
	}
	for i := 1; i < 49; i++ {
		if res.Curvature[i] > 1e-6 {
			t.Fatalf("straight line has nonzero curvature %v at %d", res.Curvature[i], i)
		}
	}
}

func TestTrajectoryStationarySegments(t *testing.T) {
	a := New(config.DefaultConfig().Manifold, nil)

	// The path pauses at samples 10-19; zero-length steps carry no direction
	// and must not register as turns.
	traj := make([][]float64, 40)
	for i := range traj {
		x := float64(i)
		if i >= 10 && i < 20 {
			x = 10
		} else if i >= 20 {
			x = float64(i) - 10
		}
		traj[i] = []float64{x, 0}
	}

	res, err := a.AnalyzeTrajectory(traj)
	if err != nil {
		t.Fatalf("trajectory: %v", err)
	}
	for i := 1; i < len(traj)-1; i++ {
		if res.Curvature[i] > 1e-6 {
			t.Fatalf("pause on a straight path has nonzero curvature %v at %d", res.Curvature[i], i)
		}
	}
}

func TestTrajectoryDetectsCycle(t *testing.T) {
	a := New(config.DefaultConfig().Manifold, nil)

	// Circle with period 20.
	traj := make([][]float64, 100)
	for i := range traj {
		angle := 2 * math.Pi * float64(i) / 20
		traj[i] = []float64{math.Cos(angle), math.Sin(angle)}
	}

	res, err := a.AnalyzeTrajectory(traj)
	if err != nil {
		t.Fatalf("trajectory: %v", err)
	}
	if len(res.Cycles) == 0 {
		t.Fatal("expected a detected cycle on a circular trajectory")
	}
	if res.Cycles[0].Period != 20 {
		t.Errorf("expected period 20, got %d", res.Cycles[0].Period)
	}
}

func TestTrajectoryTurningPoint(t *testing.T) {
	a := New(config.DefaultConfig().Manifold, nil)

	// Out along x, sharp turn at sample 25, back along y.
	traj := make([][]float64, 50)
	for i := range traj {
		if i <= 25 {
			traj[i] = []float64{float64(i), 0}
		} else {
			traj[i] = []float64{25, float64(i - 25)}
		}
	}

	res, err := a.AnalyzeTrajectory(traj)
	if err != nil {
		t.Fatalf("trajectory: %v", err)
	}
	found := false
	for _, tp := range res.TurningPoints {
		if tp >= 24 && tp <= 26 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected turning point near 25, got %v", res.TurningPoints)
	}
}

func TestClusterRegimesSeparatesBlobs(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	var emb [][]float64
	for i := 0; i < 60; i++ {
		emb = append(emb, []float64{rng.NormFloat64() * 0.1, rng.NormFloat64() * 0.1})
	}
	for i := 0; i < 60; i++ {
		emb = append(emb, []float64{10 + rng.NormFloat64()*0.1, 10 + rng.NormFloat64()*0.1})
	}

	labels := clusterRegimes(emb)
	if n := countClusters(labels); n != 2 {
		t.Errorf("expected 2 clusters, got %d", n)
	}
	if labels[0] == labels[60] && labels[0] != -1 {
		t.Error("points from different blobs share a cluster")
	}
}
