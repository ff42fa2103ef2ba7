package util

import (
	"fmt"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// FormatSize returns a human-readable size string.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}

	const (
		_          = iota
		kB float64 = 1 << (10 * iota)
		mB
		gB
		tB
	)

	b := float64(bytes)
	switch {
	case b >= tB:
		return fmt.Sprintf("%.1f TiB", b/tB)
	case b >= gB:
		return fmt.Sprintf("%.1f GiB", b/gB)
	case b >= mB:
		return fmt.Sprintf("%.1f MiB", b/mB)
	case b >= kB:
		return fmt.Sprintf("%.1f KiB", b/kB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatCount returns a human-readable count string.
func FormatCount(n int64) string {
	switch {
	case n < 1000:
		return fmt.Sprintf("%d", n)
	case n < 1_000_000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	case n < 1_000_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
}

// FormatElapsed rounds d for display: microseconds below a millisecond,
// milliseconds below a second, then tenths of a second.
func FormatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// HitRate returns hits as a percentage of all lookups.
func HitRate(hits, lookups int64) float64 {
	if lookups <= 0 {
		return 0
	}
	return float64(hits) / float64(lookups) * 100
}

// TruncateString cuts s to at most width terminal cells, ending in "..."
// when there is room for it. ANSI escape sequences are preserved.
func TruncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return ansi.Truncate(s, width, "")
	}
	return ansi.Truncate(s, width, "...")
}
