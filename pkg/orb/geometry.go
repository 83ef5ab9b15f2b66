package orb

import "math"

// RingThickness is the stroke width of the orb rings.
const RingThickness = 2.0

// MinSize is the smallest orb size; smaller or invalid sizes are clamped to
// it. At MinSize the inner ring collapses to a point.
const MinSize = 6 * RingThickness

// Geometry holds the scalars derived from the orb size.
type Geometry struct {
	Size          float64 `json:"size"`
	InnerSize     float64 `json:"inner_size"`
	Center        float64 `json:"center"`
	RingThickness float64 `json:"ring_thickness"`
	BaseRadius    float64 `json:"base_radius"`
}

// NewGeometry derives the orb geometry for size.
func NewGeometry(size float64) Geometry {
	size, _ = ClampSize(size)
	inner := size * 0.8
	return Geometry{
		Size:          size,
		InnerSize:     inner,
		Center:        size / 2,
		RingThickness: RingThickness,
		BaseRadius:    inner / 2 * 0.9,
	}
}

// ClampSize returns a usable size and whether the input had to be changed.
func ClampSize(size float64) (float64, bool) {
	if math.IsNaN(size) || math.IsInf(size, 0) || size < MinSize {
		return MinSize, true
	}
	return size, false
}

// OuterRingRadius is the radius of the outer ring.
func (g Geometry) OuterRingRadius() float64 {
	return g.Size/2 - g.RingThickness/2
}

// InnerRingRadius is the radius of the inner ring.
func (g Geometry) InnerRingRadius() float64 {
	return g.Size/2 - g.RingThickness*3
}

// DiscRadius is the radius of the gradient disc.
func (g Geometry) DiscRadius() float64 {
	return g.InnerSize / 2
}

// GlowRadius is the radius of the glow behind the orb before scaling.
func (g Geometry) GlowRadius() float64 {
	return g.Size * 0.6
}
