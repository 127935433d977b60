package tui

import (
	"github.com/gdamore/tcell/v2"
)

// Canvas is the drawing surface used by Draw. tcell.Screen satisfies it.
type Canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
}

// Styles used when drawing.
var (
	StyleEnabled  = tcell.StyleDefault.Reverse(true)
	StyleDisabled = tcell.StyleDefault.Dim(true)
	StyleText     = tcell.StyleDefault
)

// DrawText writes text at (x, y) and returns the column after it.
func DrawText(c Canvas, x, y int, text string, style tcell.Style) int {
	for _, r := range text {
		c.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

// DrawButtons renders buttons left to right on row y starting at column x,
// one space apart, and returns the column after the last one.
func DrawButtons(c Canvas, x, y int, buttons []*Button) int {
	for i, b := range buttons {
		if i > 0 {
			x = DrawText(c, x, y, " ", StyleText)
		}
		style := StyleDisabled
		if b.Enabled() {
			style = StyleEnabled
		}
		text := "[" + b.Label()
		if sc := b.Shortcut(); sc != "" {
			text += " " + sc
		}
		text += "]"
		x = DrawText(c, x, y, text, style)
	}
	return x
}
