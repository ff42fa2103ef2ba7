package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sadopc/treecache/internal/model"
)

// DirTree walks a local directory. Directory listings are read with
// goroutine-per-directory parallelism, then elements are emitted depth-first
// in natural name order so every walk of unchanged content is identical.
type DirTree struct {
	dir      string
	patterns PatternSet
	opts     Options
}

// NewDirTree creates an unfiltered tree rooted at dir.
func NewDirTree(dir string, opts Options) *DirTree {
	return &DirTree{dir: dir, opts: opts}
}

// WithPatterns returns a copy of the tree that applies the given filters.
func (t *DirTree) WithPatterns(p PatternSet) *DirTree {
	cp := *t
	cp.patterns = p
	return &cp
}

// Patterns returns the filters applied by the tree.
func (t *DirTree) Patterns() PatternSet { return t.patterns }

func (t *DirTree) String() string { return t.dir }

// Dir returns the absolute root with symlinks resolved. When the root cannot
// be resolved (for example it does not exist) the absolute path is returned
// and Walk reports the failure.
func (t *DirTree) Dir() (string, error) {
	abs, err := filepath.Abs(t.dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

// walkNode is one listed entry. Children are appended only by the goroutine
// that lists the node, and read only after every lister has finished.
type walkNode struct {
	elem     model.Element
	readPath string // where the listing is read from; differs from elem.Path below followed symlinks
	children []*walkNode
}

// walkState is shared by all listers of a single Walk.
type walkState struct {
	root    string
	opts    Options
	filter  PatternSet
	sem     chan struct{}
	wg      sync.WaitGroup
	visited sync.Map
	cancel  context.CancelFunc

	errOnce sync.Once
	err     error
}

func (s *walkState) fail(err error) {
	s.errOnce.Do(func() {
		s.err = err
		s.cancel()
	})
}

// Walk lists the whole tree and then visits it. Any listing or stat failure
// fails the walk; nothing is visited in that case.
func (t *DirTree) Walk(ctx context.Context, v Visitor) error {
	root, err := t.Dir()
	if err != nil {
		return &os.PathError{Op: "walk", Path: t.dir, Err: err}
	}

	// Use Stat (not Lstat) so symlinked roots like /tmp -> /private/tmp work
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return &os.PathError{Op: "walk", Path: root, Err: errNotDir}
	}

	concurrency := t.opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0) * 3
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &walkState{
		root:   root,
		opts:   t.opts,
		filter: t.patterns,
		sem:    make(chan struct{}, concurrency),
		cancel: cancel,
	}
	state.visited.Store(root, true)

	top := &walkNode{elem: model.Element{Path: root, Kind: model.KindDir}, readPath: root}
	state.listDir(ctx, top)
	state.wg.Wait()

	if state.err != nil {
		return state.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return emit(top.children, v)
}

var errNotDir = errors.New("not a directory")

func emit(nodes []*walkNode, v Visitor) error {
	for _, n := range nodes {
		if n.elem.Kind == model.KindDir {
			if err := v.VisitDir(n.elem); err != nil {
				return err
			}
			if err := emit(n.children, v); err != nil {
				return err
			}
			continue
		}
		if err := v.VisitFile(n.elem); err != nil {
			return err
		}
	}
	return nil
}

func (s *walkState) listDir(ctx context.Context, parent *walkNode) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	entries, err := os.ReadDir(parent.readPath)
	if err != nil {
		s.fail(err)
		return
	}

	names := make([]string, 0, len(entries))
	byName := make(map[string]fs.DirEntry, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	model.SortEntries(names)

	// Run subdirectory listings with bounded goroutines.
	// If all workers are busy, list synchronously in the current goroutine
	// instead of spawning blocked goroutines.
	spawnList := func(n *walkNode) {
		select {
		case s.sem <- struct{}{}:
			s.wg.Add(1)
			go func(n *walkNode) {
				defer s.wg.Done()
				defer func() { <-s.sem }()
				s.listDir(ctx, n)
			}(n)
		default:
			s.listDir(ctx, n)
		}
	}

	for _, name := range names {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry := byName[name]
		fullPath := filepath.Join(parent.elem.Path, name)
		realPath := filepath.Join(parent.readPath, name)
		rel := name
		if parent.elem.RelPath != "" {
			rel = parent.elem.RelPath + "/" + name
		}

		info, err := entry.Info()
		if err != nil {
			s.fail(err)
			return
		}

		isDir := entry.IsDir()
		descendPath := realPath
		followed := false
		if entry.Type()&os.ModeSymlink != 0 && s.opts.FollowSymlinks {
			resolved, err := filepath.EvalSymlinks(realPath)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				// Broken symlink: reported as the link itself.
			case err != nil:
				s.fail(err)
				return
			default:
				target, err := os.Stat(resolved)
				if err != nil {
					s.fail(err)
					return
				}
				info = target
				isDir = target.IsDir()
				descendPath = resolved
				followed = true
			}
		}

		if isDir {
			if s.filter.SkipDir(rel) {
				continue
			}
			child := &walkNode{elem: model.Element{
				Path:    fullPath,
				RelPath: rel,
				Kind:    model.KindDir,
				ModTime: info.ModTime(),
				Mode:    info.Mode(),
			}}
			parent.children = append(parent.children, child)

			if followed {
				// Symlinks pointing inside the root are walked through their real location.
				if isWithin(s.root, descendPath) {
					continue
				}
			} else if s.opts.FollowSymlinks {
				if resolved, err := filepath.EvalSymlinks(realPath); err == nil {
					descendPath = resolved
				}
			}
			// Already visited via another path: keep the element, skip recursion.
			if _, loaded := s.visited.LoadOrStore(descendPath, true); loaded {
				continue
			}

			child.readPath = descendPath
			spawnList(child)
			continue
		}

		if !s.filter.KeepFile(rel) {
			continue
		}
		parent.children = append(parent.children, &walkNode{elem: model.Element{
			Path:    fullPath,
			RelPath: rel,
			Kind:    model.KindFile,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Mode:    info.Mode(),
		}})
	}
}

func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
