package manifold

import (
	"fmt"
	"math"
	"sort"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
	"github.com/montanaflynn/stats"
)

// Trajectory describes the shape of an ordered path through state space.
// Velocity, acceleration, and curvature are aligned one-to-one with the input
// samples.
type Trajectory struct {
	Length        float64   `json:"length"`
	Velocity      []float64 `json:"velocity"`
	Acceleration  []float64 `json:"acceleration"`
	Curvature     []float64 `json:"curvature"`
	TurningPoints []int     `json:"turning_points"`
	Cycles        []Cycle   `json:"cycles"`
}

// Cycle is a detected recurrence: the state returns within tolerance of an
// earlier state after period steps.
type Cycle struct {
	Period     int     `json:"period"`
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeTrajectory computes path length, per-step velocity and curvature,
// turning points, and cyclic recurrences for a time-ordered sequence of
// states.
func (a *Analyzer) AnalyzeTrajectory(trajectory [][]float64) (*Trajectory, error) {
	ok, warns := foundation.Validate(trajectory)
	if !ok {
		return nil, fmt.Errorf("trajectory: %s: %w", warns[0], foundation.ErrInvalidData)
	}
	n := len(trajectory)
	if n < 3 {
		return nil, fmt.Errorf("trajectory: need at least 3 samples, got %d: %w", n, foundation.ErrInvalidData)
	}

	steps := make([][]float64, n-1)
	stepNorms := make([]float64, n-1)
	length := 0.0
	for i := 0; i < n-1; i++ {
		d := make([]float64, len(trajectory[i]))
		for j := range d {
			d[j] = trajectory[i+1][j] - trajectory[i][j]
		}
		steps[i] = d
		stepNorms[i] = norm(d)
		length += stepNorms[i]
	}

	// Velocity padded with its last value, acceleration with first and last,
	// so both align with the sample index.
	velocity := append(append([]float64{}, stepNorms...), stepNorms[n-2])
	accel := make([]float64, n)
	for i := 1; i < n-1; i++ {
		accel[i] = math.Abs(stepNorms[i] - stepNorms[i-1])
	}
	accel[0] = accel[1]
	accel[n-1] = accel[n-2]

	curvature := make([]float64, n)
	for i := 1; i < n-1; i++ {
		curvature[i] = turnAngle(steps[i-1], steps[i])
	}

	return &Trajectory{
		Length:        length,
		Velocity:      velocity,
		Acceleration:  accel,
		Curvature:     curvature,
		TurningPoints: turningPoints(curvature),
		Cycles:        detectCycles(trajectory, stepNorms),
	}, nil
}

// turnAngle is the angle between consecutive trajectory segments. A zero-norm
// segment has no direction, so the angle is zero rather than undefined.
func turnAngle(v1, v2 []float64) float64 {
	n1, n2 := norm(v1), norm(v2)
	if n1 == 0 || n2 == 0 {
		return 0
	}
	dot := 0.0
	for i := range v1 {
		dot += v1[i] * v2[i]
	}
	cos := dot / (n1 * n2)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

// turningPoints marks local maxima of direction change above the 90th
// percentile of all turn angles.
func turningPoints(curvature []float64) []int {
	interior := curvature[1 : len(curvature)-1]
	if len(interior) == 0 {
		return nil
	}
	threshold, err := stats.Percentile(append([]float64{}, interior...), 90)
	if err != nil {
		return nil
	}

	var points []int
	for i := 1; i < len(curvature)-1; i++ {
		if curvature[i] <= threshold {
			continue
		}
		if curvature[i] >= curvature[i-1] && curvature[i] >= curvature[i+1] {
			points = append(points, i)
		}
	}
	return points
}

// detectCycles finds recurrences: states that return within tolerance of an
// earlier state. Immediate repeats (lag < 3) are trivial and excluded. The
// tolerance scales with the typical step size so slow and fast trajectories
// are treated alike.
func detectCycles(trajectory [][]float64, stepNorms []float64) []Cycle {
	n := len(trajectory)
	if n < 10 {
		return nil
	}

	meanStep := 0.0
	for _, s := range stepNorms {
		meanStep += s
	}
	meanStep /= float64(len(stepNorms))
	if meanStep == 0 {
		return nil // static trajectory, every state recurs trivially
	}
	tolerance := 0.5 * meanStep

	maxLag := n / 2
	if maxLag > 100 {
		maxLag = 100
	}

	hits := make(map[int]int)
	for t := 3; t < n; t++ {
		for lag := 3; lag <= maxLag && lag <= t; lag++ {
			d := 0.0
			for j := range trajectory[t] {
				diff := trajectory[t][j] - trajectory[t-lag][j]
				d += diff * diff
			}
			if math.Sqrt(d) < tolerance {
				hits[lag]++
				break // count the shortest recurrence lag only
			}
		}
	}

	var cycles []Cycle
	for period, count := range hits {
		strength := float64(count) / float64(n-period)
		if strength < 0.1 {
			continue
		}
		cycles = append(cycles, Cycle{
			Period:     period,
			Strength:   strength,
			Confidence: strength * strength,
		})
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Strength > cycles[j].Strength })
	if len(cycles) > 3 {
		cycles = cycles[:3]
	}
	return cycles
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
