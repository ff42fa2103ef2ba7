package scanner

import (
	"context"

	"github.com/sadopc/treecache/internal/model"
)

// Options configures how directory trees are walked.
type Options struct {
	// FollowSymlinks descends into symlinked directories (default: false)
	FollowSymlinks bool
	// Concurrency overrides the number of concurrent directory reads (0 = auto)
	Concurrency int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		FollowSymlinks: false,
		Concurrency:    0,
	}
}

// Visitor receives every element of a walk in traversal order.
// Returning an error aborts the walk; Walk then returns that error.
type Visitor interface {
	VisitDir(model.Element) error
	VisitFile(model.Element) error
}

// Tree is anything that can be walked to produce files and directories.
type Tree interface {
	// Walk visits every element of the tree in a deterministic order.
	Walk(ctx context.Context, v Visitor) error
	// String returns a display name for logs and the UI.
	String() string
}

// DirectoryTree is a Tree that is a plain recursive walk of one directory.
// Only directory trees expose the root and filters needed to decide whether
// a walk result may be shared.
type DirectoryTree interface {
	Tree
	// Dir returns the canonical absolute root of the tree.
	Dir() (string, error)
	// Patterns returns the include/exclude filters applied during the walk.
	Patterns() PatternSet
}
