package orb

import "github.com/teslashibe/go-grace/pkg/voice"

// ShapeKind is the type of a scene shape.
type ShapeKind string

const (
	KindCircle ShapeKind = "circle"
	KindPath   ShapeKind = "path"
	KindGroup  ShapeKind = "group"
)

// Fixed opacities layered over the animated geometry.
const (
	GlowOpacity      = 0.2
	WaveGroupOpacity = 0.7
	OuterRingOpacity = 0.9
	InnerRingOpacity = 0.7
)

// GradientID is the id the disc fill refers to.
const GradientID = "orbGradient"

// Shape is one drawable record. Unused attributes are zero.
type Shape struct {
	Kind        ShapeKind `json:"kind"`
	Name        string    `json:"name,omitempty"`
	CX          float64   `json:"cx,omitempty"`
	CY          float64   `json:"cy,omitempty"`
	R           float64   `json:"r,omitempty"`
	D           string    `json:"d,omitempty"`
	Fill        string    `json:"fill,omitempty"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"stroke_width,omitempty"`
	Opacity     float64   `json:"opacity"`
	Children    []Shape   `json:"children,omitempty"`
}

// GradientStop is one stop of the disc gradient. Offset is a percentage.
type GradientStop struct {
	Offset  float64 `json:"offset"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

// Gradient is the radial gradient filling the orb disc.
type Gradient struct {
	ID    string         `json:"id"`
	Stops []GradientStop `json:"stops"`
}

// Scene is the renderable description of one orb frame.
type Scene struct {
	State    voice.State  `json:"state"`
	Size     float64      `json:"size"`
	Center   float64      `json:"center"`
	Opacity  float64      `json:"opacity"`
	Scale    float64      `json:"scale"`
	Rotation float64      `json:"rotation"`
	Colors   ColorProfile `json:"colors"`
	Glow     Shape        `json:"glow"`
	Gradient Gradient     `json:"gradient"`
	Shapes   []Shape      `json:"shapes"`
}

// Walk calls fn for the glow and every shape, depth first.
func (s *Scene) Walk(fn func(Shape)) {
	fn(s.Glow)
	var walk func([]Shape)
	walk = func(shapes []Shape) {
		for _, sh := range shapes {
			fn(sh)
			walk(sh.Children)
		}
	}
	walk(s.Shapes)
}

// Find returns the first shape with the given name.
func (s *Scene) Find(name string) (Shape, bool) {
	var found Shape
	ok := false
	s.Walk(func(sh Shape) {
		if !ok && sh.Name == name {
			found, ok = sh, true
		}
	})
	return found, ok
}

func newGradient(c ColorProfile) Gradient {
	return Gradient{
		ID: GradientID,
		Stops: []GradientStop{
			{Offset: 0, Color: c.Primary, Opacity: 0.4},
			{Offset: 70, Color: c.Secondary, Opacity: 0.2},
			{Offset: 100, Color: Background, Opacity: 0.1},
		},
	}
}
