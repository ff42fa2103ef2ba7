package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Fixed-width part of an element row:
//
//	mark(2) pct(6) " ["(2) bar "] "(2) name " "(1) size(10) " "(1) mtime(16)
const rowOverhead = 40

// Chrome rows around the element list: header, tab bar and status bar.
const chromeRows = 3

// Layout splits a terminal of Width x Height cells between the browser's
// panes and the columns of an element row.
type Layout struct {
	Width  int
	Height int
}

func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight is the number of element rows that fit, at least one.
func (l Layout) ContentHeight() int {
	return max(l.Height-chromeRows, 1)
}

// ContentWidth is the row width, never below 20 cells.
func (l Layout) ContentWidth() int {
	return max(l.Width, 20)
}

// BarWidth is the size-bar width of a row, between 5 and 20 cells.
func (l Layout) BarWidth() int {
	return min(max(l.ContentWidth()-rowOverhead, 5), 20)
}

// NameWidth is what is left of a row for the relative path.
func (l Layout) NameWidth() int {
	return max(l.ContentWidth()-rowOverhead-l.BarWidth(), 8)
}

// FullWidth right-pads s to width visible cells. Longer strings are left
// alone.
func FullWidth(s string, width int) string {
	if pad := width - lipgloss.Width(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}
