package treecache

import "github.com/sadopc/treecache/internal/scanner"

// Eligible decides whether the walk result of tree may be shared through the
// cache. Only plain directory trees without include or exclude patterns
// qualify: a filtered listing cannot answer a differently filtered query for
// the same root, and an unfiltered listing cannot answer a filtered one.
// When eligible, key is the canonical root used to index the cache.
func Eligible(tree scanner.Tree) (key string, ok bool, err error) {
	dt, isDir := tree.(scanner.DirectoryTree)
	if !isDir {
		return "", false, nil
	}
	if !dt.Patterns().IsEmpty() {
		return "", false, nil
	}
	key, err = dt.Dir()
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}
