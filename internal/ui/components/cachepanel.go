package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/treecache/internal/treecache"
	"github.com/sadopc/treecache/internal/ui/style"
	"github.com/sadopc/treecache/internal/util"
)

// RenderCachePanel renders the cache counters and the live entry count.
func RenderCachePanel(theme style.Theme, stats treecache.Stats, live int, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	label := lipgloss.NewStyle().Foreground(theme.TextMuted).Width(16)
	value := lipgloss.NewStyle().Foreground(theme.TextPrimary).Bold(true)

	rows := []struct {
		name string
		n    int64
	}{
		{"Live entries", int64(live)},
		{"Hits", stats.Hits},
		{"Misses", stats.Misses},
		{"Forced", stats.Forced},
		{"Bypassed", stats.Bypassed},
		{"Walks", stats.Walks},
		{"Walk errors", stats.WalkErrors},
		{"Invalidations", stats.Invalidations},
		{"Evictions", stats.Evictions},
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(theme.Accent).Render("  Cache"),
		"",
	}
	for _, r := range rows {
		lines = append(lines, "  "+label.Render(r.name)+value.Render(util.FormatCount(r.n)))
	}

	lookups := stats.Hits + stats.Misses + stats.Forced
	rate := util.HitRate(stats.Hits, lookups)
	barWidth := min(max(width-30, 5), 40)
	lines = append(lines, "",
		fmt.Sprintf("  %s%s %5.1f%%", label.Render("Hit rate"), theme.BarGradient(barWidth, rate/100), rate))

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = style.FullWidth(l, width)
	}
	return strings.Join(lines, "\n")
}
