// Package orb renders the Grace orb as a plain scene description.
//
// The orb is a radial-gradient disc with two oscillating wave outlines and
// two concentric rings, behind a soft glow. Its colors and pulse scale are
// chosen from the voice state and its motion comes from the signals in an
// [anim.Frame]. Wave outlines are sampled once per size into a [WaveCache]
// and only interpolated per frame.
//
// A [Scene] is plain data. It encodes to JSON for remote renderers and to
// SVG with [Scene.SVG].
package orb
