package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/treecache/internal/model"
	"github.com/sadopc/treecache/internal/ui/style"
	"github.com/sadopc/treecache/internal/util"
)

// ElementList renders the elements of a result as a scrollable list.
type ElementList struct {
	Theme  style.Theme
	Layout style.Layout
	Items  []model.Element
	Cursor int
	Offset int
	// TotalBytes is the size of every file in the result.
	TotalBytes int64
	// DirBytes maps a directory's relative path to the size of the files
	// below it.
	DirBytes map[string]int64
}

// Render renders the visible window of the list.
func (el *ElementList) Render() string {
	width := el.Layout.ContentWidth()

	if len(el.Items) == 0 {
		empty := lipgloss.NewStyle().Foreground(el.Theme.TextMuted).Render("  (no elements)")
		return style.FullWidth(empty, width)
	}

	contentHeight := el.Layout.ContentHeight()
	barWidth := el.Layout.BarWidth()
	nameWidth := el.Layout.NameWidth()

	start := el.Offset
	end := min(start+contentHeight, len(el.Items))

	lines := make([]string, 0, contentHeight)
	for i := start; i < end; i++ {
		lines = append(lines, el.renderRow(el.Items[i], i == el.Cursor, barWidth, nameWidth, width))
	}

	for len(lines) < contentHeight {
		lines = append(lines, strings.Repeat(" ", width))
	}

	return strings.Join(lines, "\n")
}

// SizeOf returns the size shown for e: its own size for files, the size of
// everything below it for directories.
func (el *ElementList) SizeOf(e model.Element) int64 {
	if e.IsDir() {
		return el.DirBytes[e.RelPath]
	}
	return e.Size
}

func (el *ElementList) renderRow(e model.Element, selected bool, barWidth, nameWidth, totalWidth int) string {
	size := el.SizeOf(e)

	var pct float64
	if el.TotalBytes > 0 {
		pct = float64(size) / float64(el.TotalBytes) * 100
	}
	pctStyled := el.Theme.PercentText.Render(fmt.Sprintf("%5.1f%%", pct))
	bar := el.Theme.BarGradient(barWidth, pct/100)

	name := e.RelPath
	if e.IsDir() {
		name += "/"
	}
	name = style.FullWidth(util.TruncateString(name, nameWidth), nameWidth)

	var nameStyled string
	if e.IsDir() {
		nameStyled = el.Theme.DirName.Render(name)
	} else {
		nameStyled = el.Theme.FileName.Render(name)
	}

	indicator := "  "
	if selected {
		indicator = el.Theme.CursorIndicator.Render(" >")
	}

	sizeStyled := el.Theme.SizeText.Width(10).Render(util.FormatSize(size))

	mtime := strings.Repeat(" ", 16)
	if !e.ModTime.IsZero() {
		mtime = e.ModTime.Local().Format("2006-01-02 15:04")
	}
	mtimeStyled := el.Theme.TimeText.Render(mtime)

	row := fmt.Sprintf("%s%s [%s] %s %s %s",
		indicator, pctStyled, bar, nameStyled, sizeStyled, mtimeStyled,
	)
	row = style.FullWidth(row, totalWidth)

	if selected {
		return el.Theme.SelectedRow.Width(totalWidth).Render(row)
	}
	return row
}

// EnsureVisible adjusts the offset to keep the cursor on screen.
func (el *ElementList) EnsureVisible() {
	contentHeight := el.Layout.ContentHeight()
	if el.Cursor < el.Offset {
		el.Offset = el.Cursor
	}
	if el.Cursor >= el.Offset+contentHeight {
		el.Offset = el.Cursor - contentHeight + 1
	}
	if el.Offset < 0 {
		el.Offset = 0
	}
}
