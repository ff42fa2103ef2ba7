package model

import (
	"io/fs"
	"iter"
	"slices"
	"time"
)

// Kind tells files and directories apart.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// Element is a single file or directory seen during a walk.
// It is a plain value, so holders cannot mutate the copy owned by a Result.
type Element struct {
	Path    string // Absolute path
	RelPath string // Slash-separated path relative to the tree root
	Kind    Kind
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
}

// IsDir reports whether the element is a directory.
func (e Element) IsDir() bool { return e.Kind == KindDir }

// Result is the ordered, immutable outcome of one full walk of one tree.
// Results are shared read-only between every caller that receives them.
type Result struct {
	root     string
	elements []Element
	files    int
	dirs     int
}

// Root returns the root the walk started from.
func (r *Result) Root() string { return r.root }

// Len returns the number of elements.
func (r *Result) Len() int { return len(r.elements) }

// At returns the i-th element in visitation order.
func (r *Result) At(i int) Element { return r.elements[i] }

// Files returns how many file elements the result holds.
func (r *Result) Files() int { return r.files }

// Dirs returns how many directory elements the result holds.
func (r *Result) Dirs() int { return r.dirs }

// All iterates the elements in visitation order without copying the slice.
func (r *Result) All() iter.Seq2[int, Element] {
	return func(yield func(int, Element) bool) {
		for i, e := range r.elements {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Elements returns a copy of the elements in visitation order.
func (r *Result) Elements() []Element {
	return slices.Clone(r.elements)
}

// Equal reports whether both results hold the same elements in the same order.
func (r *Result) Equal(other *Result) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.root == other.root && slices.EqualFunc(r.elements, other.elements, func(a, b Element) bool {
		return a.Path == b.Path &&
			a.RelPath == b.RelPath &&
			a.Kind == b.Kind &&
			a.Size == b.Size &&
			a.Mode == b.Mode &&
			a.ModTime.Equal(b.ModTime)
	})
}

// Builder accumulates elements for a single Result.
// It is not safe for concurrent use; walks visit elements sequentially.
type Builder struct {
	res  *Result
	done bool
}

// NewBuilder starts a result for the given root.
func NewBuilder(root string) *Builder {
	return &Builder{res: &Result{root: root}}
}

// Add appends an element. Adding after Build panics, since the result is
// already shared by then.
func (b *Builder) Add(e Element) {
	if b.done {
		panic("model: Add called after Build")
	}
	if e.Kind == KindDir {
		b.res.dirs++
	} else {
		b.res.files++
	}
	b.res.elements = append(b.res.elements, e)
}

// Len returns the number of elements added so far.
func (b *Builder) Len() int { return len(b.res.elements) }

// Build seals the result.
func (b *Builder) Build() *Result {
	b.done = true
	b.res.elements = slices.Clip(b.res.elements)
	return b.res
}
