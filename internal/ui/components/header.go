package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/treecache/internal/ui/style"
	"github.com/sadopc/treecache/internal/util"
)

// HeaderInfo summarizes the result on screen.
type HeaderInfo struct {
	Tree  string
	Files int
	Dirs  int
	Bytes int64
}

// RenderHeader renders the top header bar.
func RenderHeader(theme style.Theme, info HeaderInfo, width int) string {
	if width < 10 {
		return ""
	}

	titleStyled := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render(" treecache")

	stats := fmt.Sprintf("%s files  %s dirs  %s ",
		util.FormatCount(int64(info.Files)),
		util.FormatCount(int64(info.Dirs)),
		util.FormatSize(info.Bytes),
	)
	statsStyled := lipgloss.NewStyle().Foreground(theme.TextMuted).Render(stats)

	titleW := lipgloss.Width(titleStyled)
	statsW := lipgloss.Width(statsStyled)

	// The tree name gets whatever space remains.
	pathMaxW := width - titleW - statsW - 3
	pathStr := ""
	if pathMaxW > 5 {
		pathStr = util.TruncateString(info.Tree, pathMaxW)
	}

	pathStyled := lipgloss.NewStyle().Foreground(theme.TextPrimary).Render("  " + pathStr)
	pathW := lipgloss.Width(pathStyled)

	gap := max(width-titleW-pathW-statsW, 1)

	line := titleStyled + pathStyled + strings.Repeat(" ", gap) + statsStyled
	return theme.HeaderStyle.Width(width).Render(line)
}
