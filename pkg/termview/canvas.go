// Package termview draws the orb on a terminal. Scenes are rasterized into
// a character grid and written to a tcell screen.
package termview

import (
	"math"

	"github.com/gdamore/tcell/v2"
)

// Cell is one character of a canvas.
type Cell struct {
	Rune  rune
	Color tcell.Color
}

// Canvas is a fixed-size character grid. Unset cells hold the zero Cell.
type Canvas struct {
	Cols  int
	Rows  int
	cells []Cell
}

// NewCanvas returns an empty canvas. Negative sizes are treated as zero.
func NewCanvas(cols, rows int) *Canvas {
	cols, rows = max(cols, 0), max(rows, 0)
	return &Canvas{Cols: cols, Rows: rows, cells: make([]Cell, cols*rows)}
}

func (c *Canvas) inside(col, row int) bool {
	return col >= 0 && row >= 0 && col < c.Cols && row < c.Rows
}

// At returns the cell at col, row. Out of range positions are empty.
func (c *Canvas) At(col, row int) Cell {
	if !c.inside(col, row) {
		return Cell{}
	}
	return c.cells[row*c.Cols+col]
}

// Set writes a cell, ignoring out of range positions.
func (c *Canvas) Set(col, row int, r rune, color tcell.Color) {
	if !c.inside(col, row) {
		return
	}
	c.cells[row*c.Cols+col] = Cell{Rune: r, Color: color}
}

// Filled returns the number of set cells.
func (c *Canvas) Filled() int {
	n := 0
	for _, cell := range c.cells {
		if cell.Rune != 0 {
			n++
		}
	}
	return n
}

// Line plots a straight line between two cells.
func (c *Canvas) Line(c0, r0, c1, r1 int, r rune, color tcell.Color) {
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
		c.Set(c0, r0, r, color)
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

// Draw writes every set cell to screen with its top-left corner at x, y.
func (c *Canvas) Draw(screen tcell.Screen, x, y int) {
	for row := 0; row < c.Rows; row++ {
		for col := 0; col < c.Cols; col++ {
			cell := c.cells[row*c.Cols+col]
			if cell.Rune == 0 {
				continue
			}
			screen.SetContent(x+col, y+row, cell.Rune, nil, tcell.StyleDefault.Foreground(cell.Color))
		}
	}
}

// Blend mixes fg over bg at alpha in [0, 1]. Colors without an RGB value
// are treated as black.
func Blend(bg, fg tcell.Color, alpha float64) tcell.Color {
	alpha = math.Max(0, math.Min(alpha, 1))
	br, bgg, bb := rgb(bg)
	fr, fgg, fb := rgb(fg)
	mix := func(a, b int32) int32 {
		return int32(math.Round(float64(a) + (float64(b)-float64(a))*alpha))
	}
	return tcell.NewRGBColor(mix(br, fr), mix(bgg, fgg), mix(bb, fb))
}

func rgb(c tcell.Color) (int32, int32, int32) {
	r, g, b := c.RGB()
	if r < 0 || g < 0 || b < 0 {
		return 0, 0, 0
	}
	return r, g, b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
