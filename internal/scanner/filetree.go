package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sadopc/treecache/internal/model"
)

// FileTree is a tree backed by a single file, such as an archive or a jar
// on a classpath. Walking it visits that one file.
type FileTree struct {
	path string
}

// NewFileTree creates a tree for a single file.
func NewFileTree(path string) *FileTree {
	return &FileTree{path: path}
}

func (t *FileTree) String() string { return t.path }

func (t *FileTree) Walk(ctx context.Context, v Visitor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := filepath.Abs(t.path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	e := model.Element{
		Path:    abs,
		RelPath: filepath.Base(abs),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    info.Mode(),
	}
	if info.IsDir() {
		e.Kind = model.KindDir
		e.Size = 0
		return v.VisitDir(e)
	}
	return v.VisitFile(e)
}

// UnionTree walks several trees one after another.
type UnionTree struct {
	trees []Tree
}

// NewUnionTree combines trees into one; walk order follows argument order.
func NewUnionTree(trees ...Tree) *UnionTree {
	return &UnionTree{trees: trees}
}

func (t *UnionTree) String() string {
	names := make([]string, 0, len(t.trees))
	for _, tree := range t.trees {
		names = append(names, tree.String())
	}
	return "union(" + strings.Join(names, ", ") + ")"
}

func (t *UnionTree) Walk(ctx context.Context, v Visitor) error {
	for _, tree := range t.trees {
		if err := tree.Walk(ctx, v); err != nil {
			return err
		}
	}
	return nil
}
