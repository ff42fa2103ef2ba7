package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// Theme holds all the styled components for the UI.
type Theme struct {
	// Base colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Success   lipgloss.Color

	// Backgrounds
	BgMedium   lipgloss.Color
	BgLight    lipgloss.Color
	BgSelected lipgloss.Color

	// Text
	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color

	// Gradient colors for size bars
	GradientStart lipgloss.Color
	GradientEnd   lipgloss.Color

	// Styles
	HeaderStyle      lipgloss.Style
	TabActiveStyle   lipgloss.Style
	TabInactiveStyle lipgloss.Style
	StatusBarStyle   lipgloss.Style
	SelectedRow      lipgloss.Style
	CursorIndicator  lipgloss.Style
	DirName          lipgloss.Style
	FileName         lipgloss.Style
	SizeText         lipgloss.Style
	PercentText      lipgloss.Style
	TimeText         lipgloss.Style
	ErrorText        lipgloss.Style
	HelpKey          lipgloss.Style
	HelpDesc         lipgloss.Style
	ModalStyle       lipgloss.Style
	ModalTitle       lipgloss.Style

	// Lookup outcome badges
	HitBadge    lipgloss.Style
	ScanBadge   lipgloss.Style
	BypassBadge lipgloss.Style
}

// DefaultTheme returns the default dark theme.
func DefaultTheme() Theme {
	t := Theme{
		Primary:   lipgloss.Color("#2F80BE"),
		Secondary: lipgloss.Color("#00D4AA"),
		Accent:    lipgloss.Color("#61AFEF"),
		Muted:     lipgloss.Color("#5C6370"),
		Error:     lipgloss.Color("#E06C75"),
		Warning:   lipgloss.Color("#E5C07B"),
		Success:   lipgloss.Color("#98C379"),

		BgMedium:   lipgloss.Color("#23272E"),
		BgLight:    lipgloss.Color("#2C313A"),
		BgSelected: lipgloss.Color("#3E4451"),

		TextPrimary:   lipgloss.Color("#D7DAE0"),
		TextSecondary: lipgloss.Color("#ABB2BF"),
		TextMuted:     lipgloss.Color("#6C7086"),

		GradientStart: lipgloss.Color("#2F80BE"),
		GradientEnd:   lipgloss.Color("#98C379"),
	}

	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	bold := func(c lipgloss.Color) lipgloss.Style { return fg(c).Bold(true) }

	// Header spacing is laid out by RenderHeader.
	t.HeaderStyle = bold(t.TextPrimary).Background(t.BgMedium)
	t.StatusBarStyle = fg(t.TextSecondary).Background(t.BgMedium)

	t.TabActiveStyle = bold(t.TextPrimary).Background(t.Primary).Padding(0, 1)
	t.TabInactiveStyle = fg(t.TextMuted).Padding(0, 1)

	t.SelectedRow = bold(lipgloss.Color("#FFFFFF")).Background(t.BgSelected)
	t.CursorIndicator = bold(t.Primary)
	t.DirName = bold(t.Accent)
	t.FileName = fg(t.TextSecondary)
	t.SizeText = fg(t.TextMuted).Align(lipgloss.Right)
	t.PercentText = fg(t.TextMuted).Width(6).Align(lipgloss.Right)
	t.TimeText = fg(t.TextMuted)
	t.ErrorText = fg(t.Error)

	t.HelpKey = bold(t.Primary)
	t.HelpDesc = fg(t.TextMuted)

	t.ModalStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Background(t.BgMedium)
	t.ModalTitle = bold(t.TextPrimary).Padding(0, 0, 1, 0)

	t.HitBadge = bold(t.BgMedium).Background(t.Success).Padding(0, 1)
	t.ScanBadge = bold(t.BgMedium).Background(t.Warning).Padding(0, 1)
	t.BypassBadge = bold(t.TextPrimary).Background(t.Muted).Padding(0, 1)

	return t
}

// GradientColor returns a color interpolated between gradient start and end.
func (t Theme) GradientColor(ratio float64) lipgloss.Color {
	if ratio <= 0 {
		return t.GradientStart
	}
	if ratio >= 1 {
		return t.GradientEnd
	}

	c1, _ := colorful.Hex(string(t.GradientStart))
	c2, _ := colorful.Hex(string(t.GradientEnd))
	return lipgloss.Color(c1.BlendLab(c2, ratio).Hex())
}

// BarGradient renders a bar of width cells, the first ratio*width of them
// filled, each filled cell colored by its position along the gradient.
func (t Theme) BarGradient(width int, ratio float64) string {
	if width <= 0 {
		return ""
	}
	filled := min(int(ratio*float64(width)), width)
	if filled < 0 {
		filled = 0
	}

	var buf strings.Builder
	buf.Grow(width * 20)

	for i := range filled {
		pos := float64(i) / float64(max(width-1, 1))
		buf.WriteString(lipgloss.NewStyle().Foreground(t.GradientColor(pos)).Render("━"))
	}

	if filled < width {
		dim := lipgloss.NewStyle().Foreground(t.TextMuted)
		buf.WriteString(dim.Render(strings.Repeat("─", width-filled)))
	}

	return buf.String()
}
