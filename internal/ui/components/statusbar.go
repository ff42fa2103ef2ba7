package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/treecache/internal/treecache"
	"github.com/sadopc/treecache/internal/ui/style"
	"github.com/sadopc/treecache/internal/util"
)

// StatusInfo holds the current state for the status bar.
type StatusInfo struct {
	Elements int
	Outcome  treecache.Outcome
	Elapsed  string
	Stats    treecache.Stats
	Imported bool
	ErrorMsg string
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(theme style.Theme, info StatusInfo, width int) string {
	if info.ErrorMsg != "" {
		errLine := " " + lipgloss.NewStyle().Foreground(theme.Warning).Bold(true).Render(info.ErrorMsg)
		return theme.StatusBarStyle.Width(width).Render(errLine)
	}

	parts := []string{fmt.Sprintf("%s elements", util.FormatCount(int64(info.Elements)))}

	if info.Imported {
		parts = append(parts, OutcomeBadge(theme, "snapshot", treecache.Bypassed))
	} else {
		parts = append(parts, OutcomeBadge(theme, info.Outcome.String(), info.Outcome)+" "+info.Elapsed)
		lookups := info.Stats.Hits + info.Stats.Misses + info.Stats.Forced
		parts = append(parts, fmt.Sprintf("hits %d/%d (%.0f%%)  walks %d",
			info.Stats.Hits, lookups, util.HitRate(info.Stats.Hits, lookups), info.Stats.Walks))
	}

	left := " " + strings.Join(parts, " | ")

	hints := []struct{ key, desc string }{
		{"?", "help"},
		{"r", "rescan"},
		{"q", "quit"},
	}

	var rightParts []string
	for _, h := range hints {
		k := theme.HelpKey.Render(h.key)
		d := theme.HelpDesc.Render(" " + h.desc)
		rightParts = append(rightParts, k+d)
	}
	right := strings.Join(rightParts, "  ") + " "

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)

	line := left + strings.Repeat(" ", gap) + right
	return theme.StatusBarStyle.Width(width).Render(line)
}

// OutcomeBadge renders label in the badge style of o.
func OutcomeBadge(theme style.Theme, label string, o treecache.Outcome) string {
	switch o {
	case treecache.Hit:
		return theme.HitBadge.Render(label)
	case treecache.Bypassed:
		return theme.BypassBadge.Render(label)
	default:
		return theme.ScanBadge.Render(label)
	}
}

// RenderTabBar renders the view tab bar with the active sort on the right.
func RenderTabBar(theme style.Theme, tabs []string, active int, sortLabel string, width int) string {
	var tabLine []string
	for i, tab := range tabs {
		label := fmt.Sprintf(" %d %s ", i+1, tab)
		if i == active {
			tabLine = append(tabLine, theme.TabActiveStyle.Render(label))
		} else {
			tabLine = append(tabLine, theme.TabInactiveStyle.Render(label))
		}
	}

	left := " " + strings.Join(tabLine, " ")
	right := lipgloss.NewStyle().
		Foreground(theme.TextMuted).
		Render("Sort: " + sortLabel + " ")

	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)

	line := left + strings.Repeat(" ", gap) + right
	return lipgloss.NewStyle().
		Foreground(theme.TextSecondary).
		Background(theme.BgLight).
		Width(width).
		Render(line)
}
