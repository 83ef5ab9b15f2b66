package termview

import (
	"github.com/gdamore/tcell/v2"

	"github.com/teslashibe/go-grace/pkg/anim"
	"github.com/teslashibe/go-grace/pkg/assistant"
	"github.com/teslashibe/go-grace/pkg/orb"
	"github.com/teslashibe/go-grace/pkg/voice"
)

// Help lists the key bindings shown under the orb.
const Help = "[i]nactive [c]onnecting [l]istening [s]peaking [q]uit"

// View draws animation frames on a terminal screen.
type View struct {
	screen   tcell.Screen
	renderer *orb.Renderer
	opts     []Option
}

// NewView creates a view. opts are passed to Rasterize on every frame.
func NewView(screen tcell.Screen, renderer *orb.Renderer, opts ...Option) *View {
	return &View{screen: screen, renderer: renderer, opts: opts}
}

// Layout returns the orb's position and size for a w x h screen. The last
// two rows are kept for the status and help lines.
func Layout(w, h int) (x, y, cols, rows int) {
	rows = max(h-2, 0)
	if w/CellAspect < rows {
		rows = w / CellAspect
	}
	cols = rows * CellAspect
	return (w - cols) / 2, (h - 2 - rows) / 2, cols, rows
}

// Draw renders f, draws it with the status lines and shows the screen.
func (v *View) Draw(f anim.Frame) *Canvas {
	scene := v.renderer.Render(f)

	w, h := v.screen.Size()
	x, y, cols, rows := Layout(w, h)
	canvas := Rasterize(&scene, cols, rows, v.opts...)

	v.screen.Clear()
	canvas.Draw(v.screen, x, y)
	drawText(v.screen, h-2, assistant.StatusText(scene.State), tcell.StyleDefault.Bold(true))
	drawText(v.screen, h-1, Help, tcell.StyleDefault.Dim(true))
	v.screen.Show()
	return canvas
}

// drawText centers s on row.
func drawText(screen tcell.Screen, row int, s string, style tcell.Style) {
	w, _ := screen.Size()
	runes := []rune(s)
	x := max((w-len(runes))/2, 0)
	for i, r := range runes {
		screen.SetContent(x+i, row, r, nil, style)
	}
}

// StateForKey maps the i, c, l and s keys to voice states.
func StateForKey(ev *tcell.EventKey) (voice.State, bool) {
	if ev.Key() != tcell.KeyRune {
		return voice.Inactive, false
	}
	switch ev.Rune() {
	case 'i':
		return voice.Inactive, true
	case 'c':
		return voice.Connecting, true
	case 'l':
		return voice.Listening, true
	case 's':
		return voice.Speaking, true
	}
	return voice.Inactive, false
}

// IsQuit reports whether ev asks to leave the view.
func IsQuit(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == 'q'
	}
	return false
}
