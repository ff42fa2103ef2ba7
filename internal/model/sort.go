package model

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortEntries orders directory entry names the way walks visit them:
// case-insensitive natural order ("file2" before "file10"), with the raw
// name as a tie breaker so the order is total and stable across runs.
func SortEntries(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return lessName(names[i], names[j])
	})
}

// SortElements orders elements by relative path using the same rule,
// comparing segment by segment so a directory sorts right before its children.
func SortElements(elems []Element) {
	sort.SliceStable(elems, func(i, j int) bool {
		a := strings.Split(elems[i].RelPath, "/")
		b := strings.Split(elems[j].RelPath, "/")
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return lessName(a[k], b[k])
			}
		}
		return len(a) < len(b)
	})
}

func lessName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return natural.Less(la, lb)
	}
	return a < b
}
