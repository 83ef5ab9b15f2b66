package anim

import "math"

// Easing maps linear progress t in [0, 1] to eased progress.
type Easing func(t float64) float64

// Linear is the identity easing.
func Linear(t float64) float64 {
	return clamp(t, 0, 1)
}

// Ease is the standard cubic-bezier(0.42, 0, 1, 1) ease curve.
var Ease = CubicBezier(0.42, 0, 1, 1)

// EaseInOut runs Ease forwards for the first half and mirrored for the
// second half. Timing animations use it unless told otherwise.
var EaseInOut = InOut(Ease)

// InOut makes any easing symmetric around t = 0.5.
func InOut(e Easing) Easing {
	return func(t float64) float64 {
		t = clamp(t, 0, 1)
		if t < 0.5 {
			return e(t*2) / 2
		}
		return 1 - e((1-t)*2)/2
	}
}

// CubicBezier returns an easing for the curve through (0,0), (x1,y1),
// (x2,y2), (1,1). x1 and x2 must lie in [0, 1].
func CubicBezier(x1, y1, x2, y2 float64) Easing {
	cx := 3 * x1
	bx := 3*(x2-x1) - cx
	ax := 1 - cx - bx

	cy := 3 * y1
	by := 3*(y2-y1) - cy
	ay := 1 - cy - by

	sampleX := func(t float64) float64 { return ((ax*t+bx)*t + cx) * t }
	sampleY := func(t float64) float64 { return ((ay*t+by)*t + cy) * t }
	slopeX := func(t float64) float64 { return (3*ax*t+2*bx)*t + cx }

	const epsilon = 1e-7

	return func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		if x >= 1 {
			return 1
		}

		// Newton-Raphson first, it converges in a handful of steps for
		// well-behaved curves.
		t := x
		for i := 0; i < 8; i++ {
			dx := sampleX(t) - x
			if math.Abs(dx) < epsilon {
				return sampleY(t)
			}
			d := slopeX(t)
			if math.Abs(d) < 1e-6 {
				break
			}
			t -= dx / d
		}

		// Bisection fallback.
		lo, hi := 0.0, 1.0
		t = x
		for i := 0; i < 64; i++ {
			v := sampleX(t)
			if math.Abs(v-x) < epsilon {
				break
			}
			if x > v {
				lo = t
			} else {
				hi = t
			}
			t = (lo + hi) / 2
		}
		return sampleY(t)
	}
}
