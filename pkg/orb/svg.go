package orb

import (
	"bytes"
	"fmt"
	"io"
)

// SVG encodes the scene as a standalone SVG document.
func (s *Scene) SVG() []byte {
	var buf bytes.Buffer
	_ = s.WriteSVG(&buf)
	return buf.Bytes()
}

// WriteSVG writes the scene as a standalone SVG document. The canvas is
// padded so the scaled glow is not clipped.
func (s *Scene) WriteSVG(w io.Writer) error {
	sw := &svgWriter{w: w}

	pad := s.Glow.R*s.Scale - s.Size/2
	if pad < 0 {
		pad = 0
	}
	full := s.Size + 2*pad
	transform := fmt.Sprintf("translate(%s %s) scale(%s) translate(%s %s)",
		formatFloat(s.Center), formatFloat(s.Center), formatFloat(s.Scale),
		formatFloat(-s.Center), formatFloat(-s.Center))

	sw.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="%s %s %s %s">`,
		formatFloat(full), formatFloat(full), formatFloat(-pad), formatFloat(-pad), formatFloat(full), formatFloat(full))
	sw.printf(`<defs><radialGradient id="%s" cx="50%%" cy="50%%" r="50%%" fx="50%%" fy="50%%">`, s.Gradient.ID)
	for _, stop := range s.Gradient.Stops {
		sw.printf(`<stop offset="%s%%" stop-color="%s" stop-opacity="%s"/>`,
			formatFloat(stop.Offset), stop.Color, formatFloat(stop.Opacity))
	}
	sw.printf(`</radialGradient></defs>`)

	sw.printf(`<g transform="%s">`, transform)
	sw.shape(s.Glow)
	sw.printf(`</g>`)

	sw.printf(`<g opacity="%s" transform="%s">`, formatFloat(s.Opacity), transform)
	for _, sh := range s.Shapes {
		sw.shape(sh)
	}
	sw.printf(`</g></svg>`)
	return sw.err
}

type svgWriter struct {
	w   io.Writer
	err error
}

func (sw *svgWriter) printf(format string, args ...any) {
	if sw.err != nil {
		return
	}
	_, sw.err = fmt.Fprintf(sw.w, format, args...)
}

func (sw *svgWriter) shape(sh Shape) {
	switch sh.Kind {
	case KindCircle:
		sw.printf(`<circle cx="%s" cy="%s" r="%s"%s/>`,
			formatFloat(sh.CX), formatFloat(sh.CY), formatFloat(sh.R), paint(sh))
	case KindPath:
		sw.printf(`<path d="%s"%s/>`, sh.D, paint(sh))
	case KindGroup:
		sw.printf(`<g opacity="%s">`, formatFloat(sh.Opacity))
		for _, child := range sh.Children {
			sw.shape(child)
		}
		sw.printf(`</g>`)
	}
}

func paint(sh Shape) string {
	var b bytes.Buffer
	if sh.Fill != "" {
		fmt.Fprintf(&b, ` fill="%s"`, sh.Fill)
	}
	if sh.Stroke != "" {
		fmt.Fprintf(&b, ` stroke="%s" stroke-width="%s"`, sh.Stroke, formatFloat(sh.StrokeWidth))
	}
	fmt.Fprintf(&b, ` opacity="%s"`, formatFloat(sh.Opacity))
	return b.String()
}
