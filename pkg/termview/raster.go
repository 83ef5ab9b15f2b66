package termview

import (
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/teslashibe/go-grace/pkg/orb"
)

// Runes used for each layer of the orb.
const (
	GlowRune      = '░'
	DiscRune      = '▒'
	DiscCoreRune  = '▓'
	WaveRune      = '∙'
	OuterRingRune = '●'
	InnerRingRune = '•'
)

// Terminal cells are roughly twice as tall as they are wide, so a round orb
// needs twice as many columns as rows.
const CellAspect = 2

// Option configures Rasterize.
type Option func(*raster)

// WithBackground sets the color translucent layers are blended against.
func WithBackground(c tcell.Color) Option {
	return func(r *raster) {
		r.bg = c
	}
}

type raster struct {
	scene  *orb.Scene
	canvas *Canvas
	bg     tcell.Color

	min, span float64
}

// Rasterize draws the scene on a cols x rows canvas. The scene is fitted to
// the canvas the same way the SVG view box fits it, glow included.
func Rasterize(scene *orb.Scene, cols, rows int, opts ...Option) *Canvas {
	r := &raster{scene: scene, canvas: NewCanvas(cols, rows), bg: tcell.ColorBlack}
	for _, opt := range opts {
		opt(r)
	}
	if cols == 0 || rows == 0 || scene.Size <= 0 {
		return r.canvas
	}

	scale := scene.Scale
	if scale <= 0 {
		scale = 1
	}
	pad := math.Max(scene.Glow.R*scale-scene.Size/2, 0)
	r.min = -pad
	r.span = scene.Size + 2*pad

	r.fill()
	for _, sh := range scene.Shapes {
		r.stroke(sh, scene.Opacity)
	}
	return r.canvas
}

// project maps an unscaled scene point to a cell.
func (r *raster) project(x, y float64) (int, int) {
	s, c := r.scale(), r.scene.Center
	wx := c + (x-c)*s
	wy := c + (y-c)*s
	col := int(math.Floor((wx - r.min) / r.span * float64(r.canvas.Cols)))
	row := int(math.Floor((wy - r.min) / r.span * float64(r.canvas.Rows)))
	return col, row
}

// unproject maps the center of a cell back to an unscaled scene point.
func (r *raster) unproject(col, row int) (float64, float64) {
	s, c := r.scale(), r.scene.Center
	wx := r.min + (float64(col)+0.5)/float64(r.canvas.Cols)*r.span
	wy := r.min + (float64(row)+0.5)/float64(r.canvas.Rows)*r.span
	return c + (wx-c)/s, c + (wy-c)/s
}

func (r *raster) scale() float64 {
	if r.scene.Scale <= 0 {
		return 1
	}
	return r.scene.Scale
}

// fill paints the glow and the gradient disc cell by cell.
func (r *raster) fill() {
	glow := r.scene.Glow
	glowColor := Blend(r.bg, tcell.GetColor(glow.Fill), glow.Opacity*2)

	disc, hasDisc := r.scene.Find("disc")

	for row := 0; row < r.canvas.Rows; row++ {
		for col := 0; col < r.canvas.Cols; col++ {
			x, y := r.unproject(col, row)
			d := math.Hypot(x-r.scene.Center, y-r.scene.Center)

			if hasDisc && d <= disc.R {
				pct := d / disc.R * 100
				color, alpha := gradientAt(r.scene.Gradient, pct)
				alpha *= disc.Opacity * r.scene.Opacity
				ch := DiscRune
				if pct < 70 {
					ch = DiscCoreRune
				}
				r.canvas.Set(col, row, ch, Blend(r.bg, color, alpha*2.5))
				continue
			}
			if d <= glow.R {
				r.canvas.Set(col, row, GlowRune, glowColor)
			}
		}
	}
}

// stroke outlines rings and waves, recursing into groups.
func (r *raster) stroke(sh orb.Shape, opacity float64) {
	opacity *= sh.Opacity
	switch sh.Kind {
	case orb.KindGroup:
		for _, child := range sh.Children {
			r.stroke(child, opacity)
		}
	case orb.KindPath:
		pts, err := orb.ParsePath(sh.D)
		if err != nil || len(pts) == 0 {
			return
		}
		color := Blend(r.bg, tcell.GetColor(sh.Stroke), opacity)
		pc, pr := r.project(pts[0].X, pts[0].Y)
		for _, p := range pts[1:] {
			c, rw := r.project(p.X, p.Y)
			r.canvas.Line(pc, pr, c, rw, WaveRune, color)
			pc, pr = c, rw
		}
	case orb.KindCircle:
		if sh.Stroke == "" || sh.Stroke == "none" {
			return
		}
		ch := InnerRingRune
		if sh.Name == "outer_ring" {
			ch = OuterRingRune
		}
		color := Blend(r.bg, tcell.GetColor(sh.Stroke), opacity)
		steps := 4 * (r.canvas.Cols + r.canvas.Rows)
		for i := 0; i < steps; i++ {
			a := float64(i) / float64(steps) * 2 * math.Pi
			c, rw := r.project(sh.CX+math.Cos(a)*sh.R, sh.CY+math.Sin(a)*sh.R)
			r.canvas.Set(c, rw, ch, color)
		}
	}
}

// gradientAt interpolates the gradient at pct percent of the radius.
func gradientAt(g orb.Gradient, pct float64) (tcell.Color, float64) {
	stops := g.Stops
	if len(stops) == 0 {
		return tcell.ColorWhite, 1
	}
	if pct <= stops[0].Offset {
		return tcell.GetColor(stops[0].Color), stops[0].Opacity
	}
	for i := 1; i < len(stops); i++ {
		a, b := stops[i-1], stops[i]
		if pct > b.Offset {
			continue
		}
		t := 0.0
		if b.Offset > a.Offset {
			t = (pct - a.Offset) / (b.Offset - a.Offset)
		}
		color := Blend(tcell.GetColor(a.Color), tcell.GetColor(b.Color), t)
		return color, a.Opacity + (b.Opacity-a.Opacity)*t
	}
	last := stops[len(stops)-1]
	return tcell.GetColor(last.Color), last.Opacity
}
