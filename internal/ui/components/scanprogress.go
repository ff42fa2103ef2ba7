package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/treecache/internal/scanner"
	"github.com/sadopc/treecache/internal/ui/style"
	"github.com/sadopc/treecache/internal/util"
)

// RenderScanProgress renders the walk progress overlay.
func RenderScanProgress(theme style.Theme, progress scanner.Progress, width, height int) string {
	boxWidth := min(50, width-4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Primary).
		Render("  Walking...")

	lines := []string{title}
	if progress.Root != "" && boxWidth > 12 {
		root := util.TruncateString(progress.Root, boxWidth-8)
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.TextMuted).Render("  "+root))
	}
	lines = append(lines, "")

	statStyle := lipgloss.NewStyle().Foreground(theme.TextSecondary)
	lines = append(lines,
		statStyle.Render(fmt.Sprintf("  Files:  %s", util.FormatCount(progress.FilesScanned))),
		statStyle.Render(fmt.Sprintf("  Dirs:   %s", util.FormatCount(progress.DirsScanned))),
		statStyle.Render(fmt.Sprintf("  Size:   %s", util.FormatSize(progress.BytesFound))),
		statStyle.Render(fmt.Sprintf("  Speed:  %s items/s", util.FormatCount(int64(progress.ItemsPerSecond())))),
		"",
	)

	elapsed := "  Elapsed: " + util.FormatElapsed(progress.Duration)
	lines = append(lines, lipgloss.NewStyle().Foreground(theme.TextMuted).Render(elapsed))

	box := theme.ModalStyle.
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
