package orb

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Steps is the number of segments in one wave outline.
const Steps = 100

// CacheSize is the number of precomputed phases per wave layer.
const CacheSize = 20

// Point is a 2D coordinate in orb space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layer describes one wave outline.
type Layer struct {
	Amplitude   float64 `json:"amplitude"`
	Frequency   int     `json:"frequency"`
	PhaseOffset float64 `json:"phase_offset"`
	Opacity     float64 `json:"opacity"`
}

// The two wave layers drawn inside the orb.
var (
	Layer1 = Layer{Amplitude: 5, Frequency: 4, PhaseOffset: 0, Opacity: 0.7}
	Layer2 = Layer{Amplitude: 6, Frequency: 5, PhaseOffset: math.Pi / 2, Opacity: 0.4}
)

// WavePoints samples Steps+1 points of a closed wave around the base radius.
func WavePoints(g Geometry, phase, amplitude float64, frequency int) []Point {
	pts := make([]Point, 0, Steps+1)
	f := float64(frequency)
	for i := 0; i <= Steps; i++ {
		angle := float64(i) / Steps * math.Pi * 2
		r := g.BaseRadius + math.Sin(angle*f+phase)*amplitude
		pts = append(pts, Point{
			X: g.Center + math.Cos(angle)*r,
			Y: g.Center + math.Sin(angle)*r,
		})
	}
	return pts
}

// WavePath returns the closed SVG path of a wave. It is a pure function of
// its arguments.
func WavePath(g Geometry, phase, amplitude float64, frequency int) string {
	return FormatPath(WavePoints(g, phase, amplitude, frequency))
}

// FormatPath encodes points as "M x y L x y ... Z".
func FormatPath(pts []Point) string {
	if len(pts) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(pts) * 24)
	for i, p := range pts {
		if i == 0 {
			b.WriteString("M ")
		} else {
			b.WriteString(" L ")
		}
		b.WriteString(formatFloat(p.X))
		b.WriteByte(' ')
		b.WriteString(formatFloat(p.Y))
	}
	b.WriteString(" Z")
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WaveCache holds the precomputed phase sweep of one layer. It is immutable
// after construction and safe for concurrent use.
type WaveCache struct {
	layer    Layer
	geometry Geometry
	points   [][]Point
	paths    []string
}

// NewWaveCache sweeps the layer's phase across one revolution in
// CacheSize steps.
func NewWaveCache(g Geometry, layer Layer) *WaveCache {
	c := &WaveCache{
		layer:    layer,
		geometry: g,
		points:   make([][]Point, CacheSize),
		paths:    make([]string, CacheSize),
	}
	for k := 0; k < CacheSize; k++ {
		phase := float64(k)/CacheSize*math.Pi*2 + layer.PhaseOffset
		c.points[k] = WavePoints(g, phase, layer.Amplitude, layer.Frequency)
		c.paths[k] = FormatPath(c.points[k])
	}
	return c
}

// Len returns the number of cached entries.
func (c *WaveCache) Len() int {
	return len(c.paths)
}

// Path returns cache entry k.
func (c *WaveCache) Path(k int) string {
	return c.paths[k]
}

// Paths returns a copy of every cached path.
func (c *WaveCache) Paths() []string {
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}

// Layer returns the layer the cache was built for.
func (c *WaveCache) Layer() Layer {
	return c.layer
}

// Geometry returns the geometry the cache was built for.
func (c *WaveCache) Geometry() Geometry {
	return c.geometry
}

// Index maps a phase fraction in [0, 1] to a position in [0, Len()-1].
func (c *WaveCache) Index(fraction float64) float64 {
	if math.IsNaN(fraction) {
		fraction = 0
	}
	idx := fraction * float64(c.Len()-1)
	return math.Max(0, math.Min(idx, float64(c.Len()-1)))
}

// At interpolates between the first and last cached entries. At(0) is
// entry 0 and At(1) is the last entry.
func (c *WaveCache) At(fraction float64) string {
	last := c.Len() - 1
	t := c.Index(fraction) / float64(last)
	return c.blend(0, last, t)
}

// Sweep steps through every cached entry as fraction goes from 0 to 1,
// interpolating between neighbours.
func (c *WaveCache) Sweep(fraction float64) string {
	idx := c.Index(fraction)
	if k := math.Round(idx); math.Abs(idx-k) < 1e-9 {
		return c.paths[int(k)]
	}
	lo := int(math.Floor(idx))
	if lo >= c.Len()-1 {
		return c.paths[c.Len()-1]
	}
	return c.blend(lo, lo+1, idx-float64(lo))
}

func (c *WaveCache) blend(a, b int, t float64) string {
	switch {
	case t <= 0:
		return c.paths[a]
	case t >= 1:
		return c.paths[b]
	}
	pa, pb := c.points[a], c.points[b]
	out := make([]Point, len(pa))
	for i := range pa {
		out[i] = Point{
			X: pa[i].X + t*(pb[i].X-pa[i].X),
			Y: pa[i].Y + t*(pb[i].Y-pa[i].Y),
		}
	}
	return FormatPath(out)
}

// ParsePath decodes a path written by FormatPath. Commands other than
// M, L and Z are rejected.
func ParsePath(d string) ([]Point, error) {
	fields := strings.Fields(d)
	var pts []Point
	for i := 0; i < len(fields); {
		switch fields[i] {
		case "M", "L":
			if i+2 >= len(fields) {
				return nil, fmt.Errorf("orb: truncated path at %q", fields[i])
			}
			x, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("orb: bad x coordinate: %w", err)
			}
			y, err := strconv.ParseFloat(fields[i+2], 64)
			if err != nil {
				return nil, fmt.Errorf("orb: bad y coordinate: %w", err)
			}
			pts = append(pts, Point{X: x, Y: y})
			i += 3
		case "Z":
			i++
		default:
			return nil, fmt.Errorf("orb: unsupported path command %q", fields[i])
		}
	}
	return pts, nil
}
