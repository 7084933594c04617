package catastrophe

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Landscape is an estimated scalar potential over the first two embedding
// coordinates, partitioned into stable basins and unstable saddle regions.
type Landscape struct {
	Potential       [][]float64 `json:"potential"` // row index follows GridY
	GridX           []float64   `json:"grid_x"`
	GridY           []float64   `json:"grid_y"`
	GradientX       [][]float64 `json:"-"`
	GradientY       [][]float64 `json:"-"`
	StableRegions   []Region    `json:"stable_regions"`
	UnstableRegions []Region    `json:"unstable_regions"`
	Separatrices    [][]float64 `json:"separatrices"` // high-gradient ridge points
}

// Region is one connected patch of the potential surface.
type Region struct {
	Center []float64 `json:"center"`
	Size   int       `json:"size"` // grid cells
	Depth  float64   `json:"depth"`
	Kind   string    `json:"type"` // local_minimum or saddle_point
}

// analyzeLandscape estimates the potential as the negative log of a kernel
// density over the leading two embedding coordinates.
func (a *Analyzer) analyzeLandscape(embedding [][]float64) (*Landscape, error) {
	if len(embedding) < 10 || len(embedding[0]) < 2 {
		return nil, fmt.Errorf("need at least 10 samples in 2 dimensions")
	}

	xs := make([]float64, len(embedding))
	ys := make([]float64, len(embedding))
	for i, p := range embedding {
		xs[i] = p[0]
		ys[i] = p[1]
	}

	res := a.cfg.Resolution
	gridX := paddedGrid(xs, res)
	gridY := paddedGrid(ys, res)

	potential := potentialSurface(xs, ys, gridX, gridY)
	gx, gy := gradient(potential)

	landscape := &Landscape{
		Potential: potential,
		GridX:     gridX,
		GridY:     gridY,
		GradientX: gx,
		GradientY: gy,
	}
	landscape.StableRegions, landscape.UnstableRegions = stabilityRegions(potential, gridX, gridY)
	landscape.Separatrices = separatrices(gx, gy, gridX, gridY)
	return landscape, nil
}

func paddedGrid(values []float64, resolution int) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	lo -= 0.1 * span
	hi += 0.1 * span

	grid := make([]float64, resolution)
	for i := range grid {
		grid[i] = lo + (hi-lo)*float64(i)/float64(resolution-1)
	}
	return grid
}

// potentialSurface evaluates a Gaussian kernel density on the grid and
// returns its negative log, scaled into [0, 1].
func potentialSurface(xs, ys, gridX, gridY []float64) [][]float64 {
	n := float64(len(xs))
	// Scott's bandwidth for a 2D kernel.
	hx := stat.StdDev(xs, nil) * math.Pow(n, -1.0/6.0)
	hy := stat.StdDev(ys, nil) * math.Pow(n, -1.0/6.0)
	if hx == 0 || math.IsNaN(hx) {
		hx = 1
	}
	if hy == 0 || math.IsNaN(hy) {
		hy = 1
	}

	potential := make([][]float64, len(gridY))
	minP, maxP := math.Inf(1), math.Inf(-1)
	for yi, y := range gridY {
		row := make([]float64, len(gridX))
		for xi, x := range gridX {
			density := 0.0
			for i := range xs {
				dx := (x - xs[i]) / hx
				dy := (y - ys[i]) / hy
				density += math.Exp(-0.5 * (dx*dx + dy*dy))
			}
			density /= n * 2 * math.Pi * hx * hy
			p := -math.Log(density + 1e-10)
			row[xi] = p
			minP = math.Min(minP, p)
			maxP = math.Max(maxP, p)
		}
		potential[yi] = row
	}

	span := maxP - minP
	if span == 0 {
		span = 1
	}
	for _, row := range potential {
		for i := range row {
			row[i] = (row[i] - minP) / span
		}
	}
	return potential
}

// gradient computes central-difference partials of a grid surface, one-sided
// at the edges.
func gradient(surface [][]float64) (gx, gy [][]float64) {
	rows := len(surface)
	cols := len(surface[0])
	gx = make([][]float64, rows)
	gy = make([][]float64, rows)

	diff := func(prev, next, spacing float64) float64 { return (next - prev) / spacing }

	for i := 0; i < rows; i++ {
		gx[i] = make([]float64, cols)
		gy[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			switch j {
			case 0:
				gx[i][j] = diff(surface[i][0], surface[i][1], 1)
			case cols - 1:
				gx[i][j] = diff(surface[i][cols-2], surface[i][cols-1], 1)
			default:
				gx[i][j] = diff(surface[i][j-1], surface[i][j+1], 2)
			}
			switch i {
			case 0:
				gy[i][j] = diff(surface[0][j], surface[1][j], 1)
			case rows - 1:
				gy[i][j] = diff(surface[rows-2][j], surface[rows-1][j], 1)
			default:
				gy[i][j] = diff(surface[i-1][j], surface[i+1][j], 2)
			}
		}
	}
	return gx, gy
}

// stabilityRegions partitions the surface by Hessian sign tests: positive
// determinant with positive trace marks a basin, negative determinant marks a
// saddle. Connected cells of each kind form one region.
func stabilityRegions(potential [][]float64, gridX, gridY []float64) (stable, unstable []Region) {
	gx, gy := gradient(potential)
	gxx, gxy := gradient(gx)
	gyx, gyy := gradient(gy)

	rows := len(potential)
	cols := len(potential[0])
	kind := make([][]int, rows) // 0 none, 1 minimum, -1 saddle
	for i := range kind {
		kind[i] = make([]int, cols)
		for j := range kind[i] {
			det := gxx[i][j]*gyy[i][j] - gxy[i][j]*gyx[i][j]
			trace := gxx[i][j] + gyy[i][j]
			switch {
			case det > 0 && trace > 0:
				kind[i][j] = 1
			case det < 0:
				kind[i][j] = -1
			}
		}
	}

	for _, want := range []int{1, -1} {
		visited := make([][]bool, rows)
		for i := range visited {
			visited[i] = make([]bool, cols)
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				if visited[i][j] || kind[i][j] != want {
					continue
				}
				cells := floodFill(kind, visited, i, j, want)
				if len(cells) <= 5 {
					continue
				}
				region := summarizeRegion(cells, potential, gridX, gridY)
				if want == 1 {
					region.Kind = "local_minimum"
					stable = append(stable, region)
				} else {
					region.Kind = "saddle_point"
					unstable = append(unstable, region)
				}
			}
		}
	}
	return stable, unstable
}

func floodFill(kind [][]int, visited [][]bool, i, j, want int) [][2]int {
	stack := [][2]int{{i, j}}
	visited[i][j] = true
	var cells [][2]int

	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cells = append(cells, c)
		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			ni, nj := c[0]+d[0], c[1]+d[1]
			if ni < 0 || nj < 0 || ni >= len(kind) || nj >= len(kind[0]) {
				continue
			}
			if !visited[ni][nj] && kind[ni][nj] == want {
				visited[ni][nj] = true
				stack = append(stack, [2]int{ni, nj})
			}
		}
	}
	return cells
}

func summarizeRegion(cells [][2]int, potential [][]float64, gridX, gridY []float64) Region {
	var cx, cy, depth float64
	for _, c := range cells {
		cy += gridY[c[0]]
		cx += gridX[c[1]]
		depth += potential[c[0]][c[1]]
	}
	n := float64(len(cells))
	return Region{
		Center: []float64{cx / n, cy / n},
		Size:   len(cells),
		Depth:  depth / n,
	}
}

// separatrices returns grid points whose gradient magnitude exceeds the 90th
// percentile, a cheap stand-in for basin boundary curves.
func separatrices(gx, gy [][]float64, gridX, gridY []float64) [][]float64 {
	var mags []float64
	for i := range gx {
		for j := range gx[i] {
			mags = append(mags, math.Hypot(gx[i][j], gy[i][j]))
		}
	}
	threshold, err := stats.Percentile(mags, 90)
	if err != nil {
		return nil
	}

	var points [][]float64
	for i := range gx {
		for j := range gx[i] {
			if math.Hypot(gx[i][j], gy[i][j]) > threshold {
				points = append(points, []float64{gridX[j], gridY[i]})
			}
		}
	}
	return points
}
