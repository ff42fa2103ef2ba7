package style

import (
	"strings"
	"testing"
)

func TestContentHeight(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{80, 24, 21},
		{10, 5, 2},
		{10, 3, 1},  // 3-3=0, clamped to 1
		{10, 0, 1},  // negative, clamped to 1
		{80, 50, 47},
	}

	for _, tt := range tests {
		l := NewLayout(tt.w, tt.h)
		got := l.ContentHeight()
		if got != tt.want {
			t.Errorf("NewLayout(%d,%d).ContentHeight() = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestBarWidth(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{10, 5},   // below overhead, clamped to 5
		{50, 10},  // 50-40
		{80, 20},  // 80-40 = 40, clamped to 20
		{200, 20}, // clamped to 20
	}

	for _, tt := range tests {
		l := NewLayout(tt.width, 24)
		got := l.BarWidth()
		if got != tt.want {
			t.Errorf("NewLayout(%d,24).BarWidth() = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestNameWidth(t *testing.T) {
	for _, w := range []int{10, 30, 80, 200} {
		l := NewLayout(w, 24)
		if got := l.NameWidth(); got < 8 {
			t.Errorf("NewLayout(%d,24).NameWidth() = %d, want >= 8", w, got)
		}
	}

	// Once the terminal is wide enough, a row fills the content width exactly.
	for _, w := range []int{80, 120} {
		l := NewLayout(w, 24)
		total := l.NameWidth() + l.BarWidth() + rowOverhead
		if total != l.ContentWidth() {
			t.Errorf("width %d: NameWidth(%d) + BarWidth(%d) + overhead(%d) = %d, want %d",
				w, l.NameWidth(), l.BarWidth(), rowOverhead, total, l.ContentWidth())
		}
	}
}

func TestFullWidth(t *testing.T) {
	// Shorter than target: padded
	got := FullWidth("hi", 5)
	if got != "hi   " {
		t.Errorf("FullWidth(\"hi\", 5) = %q, want %q", got, "hi   ")
	}

	// Exact or wider: unchanged
	if got := FullWidth("hello", 5); got != "hello" {
		t.Errorf("FullWidth(\"hello\", 5) = %q, want %q", got, "hello")
	}
	if got := FullWidth("toolong", 3); got != "toolong" {
		t.Errorf("FullWidth(\"toolong\", 3) = %q, want unchanged", got)
	}
}

func TestBarGradient(t *testing.T) {
	theme := DefaultTheme()
	if got := theme.BarGradient(0, 0.5); got != "" {
		t.Errorf("BarGradient(0) = %q, want empty", got)
	}
	for _, ratio := range []float64{-1, 0, 0.5, 1, 2} {
		bar := theme.BarGradient(10, ratio)
		n := strings.Count(bar, "━") + strings.Count(bar, "─")
		if n != 10 {
			t.Errorf("BarGradient(10, %v) has %d cells, want 10", ratio, n)
		}
	}
}
