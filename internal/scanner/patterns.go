package scanner

import (
	"fmt"
	"path"
	"strings"
)

// PatternSet holds include and exclude globs applied to slash-separated paths
// relative to a tree root. Segments support path.Match syntax and "**"
// matches any number of segments. A pattern without "/" also matches the
// base name alone, and a trailing "/" is shorthand for "/**".
type PatternSet struct {
	Includes []string
	Excludes []string
}

// IsEmpty reports whether the set filters nothing.
func (p PatternSet) IsEmpty() bool {
	return len(p.Includes) == 0 && len(p.Excludes) == 0
}

// Validate checks every pattern for syntax errors.
func (p PatternSet) Validate() error {
	for _, list := range [][]string{p.Includes, p.Excludes} {
		for _, pat := range list {
			if strings.TrimSpace(pat) == "" {
				return fmt.Errorf("empty pattern")
			}
			for _, seg := range strings.Split(normalizePattern(pat), "/") {
				if seg == "**" {
					continue
				}
				if _, err := path.Match(seg, ""); err != nil {
					return fmt.Errorf("invalid pattern %q: %w", pat, err)
				}
			}
		}
	}
	return nil
}

// String renders the set for logs.
func (p PatternSet) String() string {
	if p.IsEmpty() {
		return "{}"
	}
	return fmt.Sprintf("{include=%v exclude=%v}", p.Includes, p.Excludes)
}

// SkipDir reports whether a directory and everything below it is excluded.
func (p PatternSet) SkipDir(rel string) bool {
	return matchAny(p.Excludes, rel)
}

// KeepFile reports whether a file passes the filters.
func (p PatternSet) KeepFile(rel string) bool {
	if matchAny(p.Excludes, rel) {
		return false
	}
	if len(p.Includes) == 0 {
		return true
	}
	return matchAny(p.Includes, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if matchPattern(pat, rel) {
			return true
		}
	}
	return false
}

func normalizePattern(pattern string) string {
	pattern = strings.ReplaceAll(strings.TrimSpace(pattern), "\\", "/")
	pattern = strings.TrimPrefix(pattern, "/")
	if strings.HasSuffix(pattern, "/") {
		pattern += "**"
	}
	return pattern
}

func matchPattern(pattern, rel string) bool {
	pattern = normalizePattern(pattern)
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "/") {
		base := rel
		if i := strings.LastIndexByte(rel, '/'); i >= 0 {
			base = rel[i+1:]
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pat, segs []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], segs[0]); !ok {
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}
