package analysis

import (
	"fmt"
	"strings"

	"github.com/san-kum/odestep/internal/handlers"
)

type Point struct{ X, Y float64 }

// Phase holds the projection of a trajectory on two state components.
type Phase struct {
	XIndex, YIndex int
	Points         []Point
}

func NewPhase(tr *handlers.Trajectory, x, y int) (*Phase, error) {
	if tr.Len() == 0 {
		return nil, fmt.Errorf("analysis: empty trajectory")
	}
	dim := len(tr.States[0])
	if x < 0 || x >= dim || y < 0 || y >= dim {
		return nil, fmt.Errorf("analysis: components (%d, %d) outside dimension %d", x, y, dim)
	}
	p := &Phase{
		XIndex: x,
		YIndex: y,
		Points: make([]Point, 0, tr.Len()),
	}
	for _, s := range tr.States {
		p.Points = append(p.Points, Point{X: s[x], Y: s[y]})
	}
	return p, nil
}

// ASCII draws the points on a width x height character grid, with the axes
// where they cross the visible area.
func (p *Phase) ASCII(width, height int) string {
	return scatter(p.Points, width, height)
}

func scatter(points []Point, width, height int) string {
	if len(points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	// 10% padding on each side
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

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := range canvas {
			canvas[row][col] = '│'
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := range canvas[row] {
			if canvas[row][col] == '│' {
				canvas[row][col] = '┼'
			} else {
				canvas[row][col] = '─'
			}
		}
	}

	for _, p := range points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))
		canvas[row][col] = '•'
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
