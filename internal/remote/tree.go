package remote

import (
	"context"
	"errors"
	"io/fs"
	"os"
	pathpkg "path"
	"runtime"
	"sync"

	"github.com/sadopc/treecache/internal/model"
	"github.com/sadopc/treecache/internal/scanner"
)

var errNotDir = errors.New("not a directory")

// SFTPTree is a directory on a remote host, walked over SFTP. It is keyed
// as sftp://user@host:port/path, so walk results are shared between trees
// naming the same remote directory.
type SFTPTree struct {
	cfg      Config
	dir      string
	patterns scanner.PatternSet
	dial     dialFunc
}

// NewSFTPTree creates an unfiltered tree for dir on the host named by cfg.
// An empty dir is the login directory.
func NewSFTPTree(cfg Config, dir string) *SFTPTree {
	return &SFTPTree{cfg: cfg, dir: dir, dial: dialSFTP}
}

// WithPatterns returns a copy of the tree that applies the given filters.
func (t *SFTPTree) WithPatterns(p scanner.PatternSet) *SFTPTree {
	cp := *t
	cp.patterns = p
	return &cp
}

func (t *SFTPTree) Patterns() scanner.PatternSet { return t.patterns }

func (t *SFTPTree) String() string { return t.cfg.Target + ":" + cleanPath(t.dir) }

// Dir returns the cache key of the tree. It is derived from the target and
// the cleaned path without contacting the host.
func (t *SFTPTree) Dir() (string, error) {
	ep, err := parseEndpoint(t.cfg)
	if err != nil {
		return "", err
	}
	return ep.key(t.dir), nil
}

// Walk connects, lists the whole remote tree and then visits it in the
// same order as a local walk. Any listing failure fails the walk.
func (t *SFTPTree) Walk(ctx context.Context, v scanner.Visitor) error {
	if t.cfg.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ScanTimeout)
		defer cancel()
	}

	client, closer, err := t.dial(ctx, t.cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	return t.walk(ctx, client, v)
}

type remoteNode struct {
	elem     model.Element
	readPath string
	children []*remoteNode
}

type remoteWalk struct {
	client  sftpClient
	root    string
	cfg     Config
	filter  scanner.PatternSet
	sem     chan struct{}
	wg      sync.WaitGroup
	visited sync.Map
	cancel  context.CancelFunc

	once sync.Once
	err  error
}

func (w *remoteWalk) fail(err error) {
	w.once.Do(func() {
		w.err = err
		w.cancel()
	})
}

func (t *SFTPTree) walk(ctx context.Context, client sftpClient, v scanner.Visitor) error {
	root := cleanPath(t.dir)
	if resolved, err := client.RealPath(root); err == nil {
		root = cleanPath(resolved)
	}
	info, err := client.Stat(root)
	if err != nil {
		return &fs.PathError{Op: "walk", Path: root, Err: err}
	}
	if !info.IsDir() {
		return &fs.PathError{Op: "walk", Path: root, Err: errNotDir}
	}

	concurrency := t.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0) * 3
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := &remoteWalk{
		client: client,
		root:   root,
		cfg:    t.cfg,
		filter: t.patterns,
		sem:    make(chan struct{}, concurrency),
		cancel: cancel,
	}
	w.visited.Store(root, true)

	top := &remoteNode{elem: model.Element{Path: root, Kind: model.KindDir}, readPath: root}
	w.list(ctx, top)
	w.wg.Wait()

	if w.err != nil {
		return w.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return visitNodes(top.children, v)
}

func visitNodes(nodes []*remoteNode, v scanner.Visitor) error {
	for _, n := range nodes {
		if !n.elem.IsDir() {
			if err := v.VisitFile(n.elem); err != nil {
				return err
			}
			continue
		}
		if err := v.VisitDir(n.elem); err != nil {
			return err
		}
		if err := visitNodes(n.children, v); err != nil {
			return err
		}
	}
	return nil
}

func (w *remoteWalk) list(ctx context.Context, parent *remoteNode) {
	if ctx.Err() != nil {
		return
	}

	entries, err := readDir(ctx, w.client, parent.readPath)
	if err != nil {
		w.fail(&fs.PathError{Op: "readdir", Path: parent.readPath, Err: err})
		return
	}

	names := make([]string, 0, len(entries))
	byName := make(map[string]os.FileInfo, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	model.SortEntries(names)

	// Same worker policy as local walks: list inline when all workers are busy.
	spawn := func(n *remoteNode) {
		select {
		case w.sem <- struct{}{}:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-w.sem }()
				w.list(ctx, n)
			}()
		default:
			w.list(ctx, n)
		}
	}

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}

		info := byName[name]
		if isSpecial(info.Mode()) {
			continue
		}
		rel := name
		if parent.elem.RelPath != "" {
			rel = parent.elem.RelPath + "/" + name
		}
		elem := model.Element{
			Path:    pathpkg.Join(parent.elem.Path, name),
			RelPath: rel,
			Kind:    model.KindFile,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Mode:    info.Mode(),
		}
		readPath := pathpkg.Join(parent.readPath, name)

		isDir := info.IsDir()
		descend := readPath
		followed := false
		if info.Mode()&os.ModeSymlink != 0 && w.cfg.FollowSymlinks {
			// A dangling link is reported as the link itself.
			if resolved, target, err := w.resolveLink(readPath); err == nil && !isSpecial(target.Mode()) {
				isDir = target.IsDir()
				elem.Size = target.Size()
				elem.ModTime = target.ModTime()
				elem.Mode = target.Mode()
				descend = resolved
				followed = true
			}
		}

		if !isDir {
			if w.filter.KeepFile(rel) {
				parent.children = append(parent.children, &remoteNode{elem: elem})
			}
			continue
		}

		if w.filter.SkipDir(rel) {
			continue
		}
		elem.Kind = model.KindDir
		elem.Size = 0
		child := &remoteNode{elem: elem}
		parent.children = append(parent.children, child)

		if followed {
			if isWithin(w.root, descend) {
				continue
			}
		} else if resolved, err := w.client.RealPath(readPath); err == nil {
			descend = cleanPath(resolved)
		}
		if _, seen := w.visited.LoadOrStore(descend, true); seen {
			continue
		}
		child.readPath = descend
		spawn(child)
	}
}

func (w *remoteWalk) resolveLink(link string) (string, os.FileInfo, error) {
	target, err := w.client.ReadLink(link)
	if err != nil {
		return "", nil, err
	}
	if !pathpkg.IsAbs(target) {
		target = pathpkg.Join(pathpkg.Dir(link), target)
	}
	resolved, err := w.client.RealPath(cleanPath(target))
	if err != nil {
		return "", nil, err
	}
	resolved = cleanPath(resolved)
	info, err := w.client.Stat(resolved)
	if err != nil {
		return "", nil, err
	}
	return resolved, info, nil
}

func isSpecial(mode os.FileMode) bool {
	return mode&(os.ModeDevice|os.ModeCharDevice|os.ModeSocket|os.ModeNamedPipe|os.ModeIrregular) != 0
}

func readDir(ctx context.Context, client sftpClient, dir string) ([]os.FileInfo, error) {
	if rc, ok := client.(interface {
		ReadDirContext(context.Context, string) ([]os.FileInfo, error)
	}); ok {
		return rc.ReadDirContext(ctx, dir)
	}
	return client.ReadDir(dir)
}
