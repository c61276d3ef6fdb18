// Package export writes trajectory views in formats read by other tools.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/san-kum/odestep/internal/analysis"
)

type SVGOptions struct {
	Width, Height int
	Background    string
	Stroke        string
	// Markers draws one dot per point instead of a connected path.
	Markers bool
}

func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		Width:      640,
		Height:     480,
		Background: "#0a0a0a",
		Stroke:     "#00ffcc",
	}
}

// SVG draws points scaled to the canvas with 10% padding on each side.
func SVG(w io.Writer, points []analysis.Point, opts SVGOptions) error {
	if len(points) == 0 {
		return errors.New("export: no points")
	}
	if !opts.Markers && len(points) < 2 {
		return errors.New("export: a path needs two points")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("export: invalid canvas %dx%d", opts.Width, opts.Height)
	}

	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
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
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	width, height := float64(opts.Width), float64(opts.Height)
	project := func(p analysis.Point) (float64, float64) {
		return (p.X - minX) / rangeX * width, height - (p.Y-minY)/rangeY*height
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, opts.Width, opts.Height, opts.Width, opts.Height, opts.Background)

	if opts.Markers {
		fmt.Fprintf(bw, "<g fill=\"%s\">\n", opts.Stroke)
		for _, p := range points {
			x, y := project(p)
			fmt.Fprintf(bw, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"2\"/>\n", x, y)
		}
		bw.WriteString("</g>\n")
	} else {
		fmt.Fprintf(bw, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, opts.Stroke)
		for i, p := range points {
			x, y := project(p)
			if i == 0 {
				fmt.Fprintf(bw, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(bw, " L%.1f,%.1f", x, y)
			}
		}
		bw.WriteString("\"/>\n")
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}
