// Package plot draws a function's points as a line chart on a character grid.
package plot

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/byuoitav/functions"
)

const (
	DefaultWidth  = 60
	DefaultHeight = 15

	markPoint = '*'
	markLine  = '.'
)

// Options controls the size of the plotting area, in characters
type Options struct {
	Width  int
	Height int
}

type grid struct {
	cells         [][]rune
	width, height int
}

func newGrid(width, height int) *grid {
	g := &grid{width: width, height: height, cells: make([][]rune, height)}
	for i := range g.cells {
		g.cells[i] = []rune(strings.Repeat(" ", width))
	}

	return g
}

func (g *grid) set(col, row int, r rune) {
	if row < 0 || row >= g.height || col < 0 || col >= g.width {
		return
	}

	// points win over line segments
	if g.cells[row][col] == markPoint {
		return
	}

	g.cells[row][col] = r
}

// line draws a segment with Bresenham's algorithm
func (g *grid) line(c0, r0, c1, r1 int) {
	dc := abs(c1 - c0)
	dr := -abs(r1 - r0)
	sc, sr := 1, 1
	if c0 > c1 {
		sc = -1
	}
	if r0 > r1 {
		sr = -1
	}

	e := dc + dr
	for {
		g.set(c0, r0, markLine)
		if c0 == c1 && r0 == r1 {
			return
		}

		e2 := 2 * e
		if e2 >= dr {
			e += dr
			c0 += sc
		}
		if e2 <= dc {
			e += dc
			r0 += sr
		}
	}
}

type scale struct {
	min, span float64
	cells     int
}

func newScale(min, max float64, cells int) scale {
	return scale{min: min, span: max - min, cells: cells}
}

// cell maps v onto [0, cells-1]; a zero span maps everything to the middle
func (s scale) cell(v float64) int {
	if s.span == 0 {
		return (s.cells - 1) / 2
	}

	return int(math.Round((v - s.min) / s.span * float64(s.cells-1)))
}

// Render writes the chart of points to w. Points are drawn in order of x and
// joined by line segments.
func Render(w io.Writer, points []functions.Point, opts Options) error {
	if opts.Width < 2 {
		opts.Width = DefaultWidth
	}
	if opts.Height < 2 {
		opts.Height = DefaultHeight
	}

	out := bufio.NewWriter(w)

	if len(points) == 0 {
		fmt.Fprintln(out, "no points")
		return out.Flush()
	}

	sorted := make([]functions.Point, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	minX, maxX := sorted[0].X, sorted[len(sorted)-1].X
	minY, maxY := sorted[0].Y, sorted[0].Y
	for _, p := range sorted {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	xs := newScale(minX, maxX, opts.Width)
	ys := newScale(minY, maxY, opts.Height)
	row := func(y float64) int { return opts.Height - 1 - ys.cell(y) }

	g := newGrid(opts.Width, opts.Height)
	for i := 1; i < len(sorted); i++ {
		a, b := sorted[i-1], sorted[i]
		g.line(xs.cell(a.X), row(a.Y), xs.cell(b.X), row(b.Y))
	}

	for _, p := range sorted {
		g.cells[row(p.Y)][xs.cell(p.X)] = markPoint
	}

	labels := make([]string, opts.Height)
	labels[0] = format(maxY)
	labels[opts.Height-1] = format(minY)
	if opts.Height > 2 && maxY != minY {
		labels[(opts.Height-1)/2] = format(minY + (maxY-minY)*float64(opts.Height-1-(opts.Height-1)/2)/float64(opts.Height-1))
	}

	labelWidth := 0
	for _, l := range labels {
		labelWidth = max(labelWidth, len(l))
	}

	for i, cells := range g.cells {
		fmt.Fprintf(out, "%*s |%s\n", labelWidth, labels[i], strings.TrimRight(string(cells), " "))
	}

	fmt.Fprintf(out, "%*s +%s\n", labelWidth, "", strings.Repeat("-", opts.Width))

	left, right := format(minX), format(maxX)
	gap := opts.Width - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}

	if minX == maxX {
		fmt.Fprintf(out, "%*s  %s\n", labelWidth, "", left)
	} else {
		fmt.Fprintf(out, "%*s  %s%s%s\n", labelWidth, "", left, strings.Repeat(" ", gap), right)
	}

	return out.Flush()
}

func format(f float64) string {
	return strconv.FormatFloat(f, 'g', 4, 64)
}

func abs(i int) int {
	if i < 0 {
		return -i
	}

	return i
}
