package export

import (
	"fmt"
	"strings"

	"github.com/ckoons/Tekton-sub009/internal/catastrophe"
)

var regimePalette = []string{
	"#00ff00", "#00bfff", "#ffcc00", "#ff66cc", "#66ffcc", "#cc66ff",
}

// EmbeddingToSVG renders the first two embedding coordinates as a scatter
// plot, colored by regime label when labels are given, with critical points
// overlaid as markers.
func EmbeddingToSVG(embedding [][]float64, labels []int, points []*catastrophe.CriticalPoint, width, height int) string {
	if len(embedding) == 0 || len(embedding[0]) < 2 {
		return ""
	}

	minX, maxX := embedding[0][0], embedding[0][0]
	minY, maxY := embedding[0][1], embedding[0][1]
	for _, p := range embedding {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	toPixel := func(p []float64) (float64, float64) {
		x := (p[0] - minX) / rangeX * float64(width)
		y := float64(height) - (p[1]-minY)/rangeY*float64(height)
		return x, y
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, p := range embedding {
		color := regimePalette[0]
		if i < len(labels) {
			if labels[i] < 0 {
				color = "#555555" // noise points
			} else {
				color = regimePalette[labels[i]%len(regimePalette)]
			}
		}
		x, y := toPixel(p)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2" fill="%s"/>
`, x, y, color))
	}

	for _, cp := range points {
		if len(cp.Location) < 2 {
			continue
		}
		x, y := toPixel(cp.Location)
		sb.WriteString(fmt.Sprintf(`<g stroke="#ff3333" stroke-width="2"><line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/><line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/></g>
<text x="%.1f" y="%.1f" fill="#ff3333" font-size="10">%s</text>
`, x-5, y-5, x+5, y+5, x-5, y+5, x+5, y-5, x+7, y-7, cp.Type))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// TrajectoryToSVG draws the embedding in sample order as a path, for
// inspecting how the system moves through its state space.
func TrajectoryToSVG(embedding [][]float64, width, height int, strokeColor string) string {
	if len(embedding) < 2 || len(embedding[0]) < 2 {
		return ""
	}

	minX, maxX := embedding[0][0], embedding[0][0]
	minY, maxY := embedding[0][1], embedding[0][1]
	for _, p := range embedding {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	for i, p := range embedding {
		x := (p[0] - minX) / rangeX * float64(width)
		y := float64(height) - (p[1]-minY)/rangeY*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
