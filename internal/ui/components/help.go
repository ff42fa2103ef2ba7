package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/treecache/internal/ui/style"
)

type binding struct{ key, desc string }

var helpSections = []struct {
	name  string
	binds []binding
}{
	{
		name: "Navigation",
		binds: []binding{
			{"j/k", "Move down/up"},
			{"g/G", "First/last element"},
			{"PgUp/PgDn", "Page up/down"},
		},
	},
	{
		name: "Views",
		binds: []binding{
			{"1", "Element list"},
			{"2", "Cache counters"},
		},
	},
	{
		name: "Sorting",
		binds: []binding{
			{"o", "Visitation order"},
			{"s", "Sort by size"},
			{"M", "Sort by modification time"},
		},
	},
	{
		name: "Cache",
		binds: []binding{
			{"r", "Rescan, reusing a cached result"},
			{"R", "Force a fresh walk"},
			{"i", "Invalidate every cached result"},
			{"E", "Export result to JSON"},
		},
	},
	{
		name: "General",
		binds: []binding{
			{"?", "Toggle help"},
			{"q", "Quit"},
		},
	},
}

// RenderHelp renders the help overlay.
func RenderHelp(theme style.Theme, width, height int) string {
	boxWidth := min(60, width-4)

	lines := []string{theme.ModalTitle.Render("  treecache - Keyboard Shortcuts"), ""}

	for _, sec := range helpSections {
		lines = append(lines, lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Accent).
			Render("  "+sec.name))

		for _, b := range sec.binds {
			k := theme.HelpKey.Width(14).Render("    " + b.key)
			d := lipgloss.NewStyle().Foreground(theme.TextSecondary).Render(b.desc)
			lines = append(lines, fmt.Sprintf("%s %s", k, d))
		}
		lines = append(lines, "")
	}

	lines = append(lines, theme.HelpDesc.Render("  Press ? or Esc to close"))

	box := theme.ModalStyle.
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
