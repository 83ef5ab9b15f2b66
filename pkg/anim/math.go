package anim

import "time"

// lerp performs linear interpolation between two values.
func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// clamp restricts a value to a range.
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// progress returns elapsed/d clamped to [0, 1]. A non-positive d is complete.
func progress(elapsed, d time.Duration) float64 {
	if d <= 0 {
		return 1
	}
	return clamp(float64(elapsed)/float64(d), 0, 1)
}
