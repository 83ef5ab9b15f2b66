package orb

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/go-grace/pkg/anim"
)

// DefaultSize is the orb size used when none is configured.
const DefaultSize = 200.0

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithFullSweep makes the waves step through every cached phase instead of
// blending only the first and last entries.
func WithFullSweep() RendererOption {
	return func(r *Renderer) {
		r.fullSweep = true
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Renderer turns animation frames into scenes for a given size.
type Renderer struct {
	mu        sync.RWMutex
	geometry  Geometry
	wave1     *WaveCache
	wave2     *WaveCache
	fullSweep bool
	logger    *slog.Logger
}

// NewRenderer creates a renderer and precomputes its wave caches.
func NewRenderer(size float64, opts ...RendererOption) *Renderer {
	r := &Renderer{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "orb.renderer")
	r.rebuild(size)
	return r
}

// Resize rebuilds the wave caches when size differs from the current one.
// It reports whether a rebuild happened.
func (r *Renderer) Resize(size float64) bool {
	clamped, _ := ClampSize(size)

	r.mu.RLock()
	same := clamped == r.geometry.Size
	r.mu.RUnlock()
	if same {
		return false
	}
	r.rebuild(size)
	return true
}

func (r *Renderer) rebuild(size float64) {
	clamped, changed := ClampSize(size)
	if changed {
		r.logger.Debug("orb size clamped", "requested", size, "size", clamped)
	}
	g := NewGeometry(clamped)
	w1 := NewWaveCache(g, Layer1)
	w2 := NewWaveCache(g, Layer2)

	r.mu.Lock()
	r.geometry = g
	r.wave1 = w1
	r.wave2 = w2
	r.mu.Unlock()
}

// Geometry returns the current geometry.
func (r *Renderer) Geometry() Geometry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.geometry
}

// FullSweep reports whether full-cache wave interpolation is enabled.
func (r *Renderer) FullSweep() bool {
	return r.fullSweep
}

// Render builds the scene for one frame.
func (r *Renderer) Render(f anim.Frame) Scene {
	r.mu.RLock()
	g, w1, w2 := r.geometry, r.wave1, r.wave2
	r.mu.RUnlock()

	state := f.State.Normalize()
	colors := Colors(state)

	sample := (*WaveCache).At
	if r.fullSweep {
		sample = (*WaveCache).Sweep
	}

	glow := Shape{
		Kind:    KindCircle,
		Name:    "glow",
		CX:      g.Center,
		CY:      g.Center,
		R:       g.GlowRadius(),
		Fill:    colors.Primary,
		Opacity: GlowOpacity,
	}

	disc := Shape{
		Kind:    KindCircle,
		Name:    "disc",
		CX:      g.Center,
		CY:      g.Center,
		R:       g.DiscRadius(),
		Fill:    "url(#" + GradientID + ")",
		Opacity: 1,
	}

	waves := Shape{
		Kind:    KindGroup,
		Name:    "waves",
		Opacity: WaveGroupOpacity,
		Children: []Shape{
			waveShape("wave1", sample(w1, f.WavePhase), colors.Ring, Layer1.Opacity),
			waveShape("wave2", sample(w2, f.WavePhase), colors.Ring, Layer2.Opacity),
		},
	}

	outer := ringShape("outer_ring", g, g.OuterRingRadius(), colors.Ring, OuterRingOpacity)
	inner := ringShape("inner_ring", g, g.InnerRingRadius(), colors.Ring, InnerRingOpacity)

	return Scene{
		State:    state,
		Size:     g.Size,
		Center:   g.Center,
		Opacity:  f.Opacity,
		Scale:    Scale(state, f.Pulse),
		Rotation: f.Rotation * 360,
		Colors:   colors,
		Glow:     glow,
		Gradient: newGradient(colors),
		Shapes:   []Shape{disc, waves, outer, inner},
	}
}

func waveShape(name, d, stroke string, opacity float64) Shape {
	return Shape{
		Kind:        KindPath,
		Name:        name,
		D:           d,
		Fill:        "none",
		Stroke:      stroke,
		StrokeWidth: 1,
		Opacity:     opacity,
	}
}

func ringShape(name string, g Geometry, r float64, stroke string, opacity float64) Shape {
	return Shape{
		Kind:        KindCircle,
		Name:        name,
		CX:          g.Center,
		CY:          g.Center,
		R:           r,
		Fill:        "none",
		Stroke:      stroke,
		StrokeWidth: g.RingThickness,
		Opacity:     opacity,
	}
}
