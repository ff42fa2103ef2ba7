package treecache

import (
	"context"
	"runtime"
	"sync"
	"weak"

	"go.uber.org/zap"

	"github.com/sadopc/treecache/internal/model"
	"github.com/sadopc/treecache/internal/scanner"
)

// ScanFunc performs one full walk of a tree.
type ScanFunc func(ctx context.Context, tree scanner.Tree) (*model.Result, error)

// Cache maps canonical tree roots to walk results. Results are held through
// weak pointers: once no caller references a result the garbage collector
// may reclaim it, and the entry then reads as a miss.
//
// There is no per-key lock. Two lookups that miss on the same key at the
// same time both walk and both store; the last store wins. Lookups for
// different keys never wait on each other.
type Cache struct {
	entries sync.Map // string -> weak.Pointer[model.Result]
	scan    ScanFunc
	log     *zap.Logger
	metrics *Metrics
}

type reclaimArg struct {
	key string
	ptr weak.Pointer[model.Result]
}

func newCache(scan ScanFunc, log *zap.Logger, metrics *Metrics) *Cache {
	return &Cache{scan: scan, log: log, metrics: metrics}
}

// LookupOrScan returns the cached result for key when allowReuse is set and
// one is still alive. Otherwise it walks tree and stores the fresh result
// under key, also when allowReuse is false, so later callers can reuse it.
// A failed walk stores nothing. hit reports whether the result came from
// the cache.
func (c *Cache) LookupOrScan(ctx context.Context, key string, tree scanner.Tree, allowReuse bool) (res *model.Result, hit bool, err error) {
	if allowReuse {
		if res := c.load(key); res != nil {
			c.metrics.lookup(lookupHit)
			c.log.Debug("cache hit", zap.String("key", key), zap.Int("elements", res.Len()))
			return res, true, nil
		}
		c.metrics.lookup(lookupMiss)
		c.log.Debug("cache miss", zap.String("key", key))
	} else {
		c.metrics.lookup(lookupForced)
		c.log.Debug("cache reuse disallowed, rescanning", zap.String("key", key))
	}

	res, err = c.scan(ctx, tree)
	if err != nil {
		return nil, false, err
	}
	c.store(key, res)
	return res, false, nil
}

func (c *Cache) load(key string) *model.Result {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil
	}
	return v.(weak.Pointer[model.Result]).Value()
}

func (c *Cache) store(key string, res *model.Result) {
	ptr := weak.Make(res)
	c.entries.Store(key, ptr)
	runtime.AddCleanup(res, c.reclaimed, reclaimArg{key: key, ptr: ptr})
	c.log.Debug("cache store", zap.String("key", key), zap.Int("elements", res.Len()))
}

// reclaimed drops the entry of a collected result, unless the key has been
// stored again since.
func (c *Cache) reclaimed(arg reclaimArg) {
	if c.entries.CompareAndDelete(arg.key, arg.ptr) {
		c.metrics.eviction()
		c.log.Debug("cache entry reclaimed", zap.String("key", arg.key))
	}
}

// Clear removes every entry. Lookups running concurrently observe either a
// complete old result or a miss.
func (c *Cache) Clear() {
	c.entries.Clear()
}

// Len returns the number of entries whose result is still alive.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, v any) bool {
		if v.(weak.Pointer[model.Result]).Value() != nil {
			n++
		}
		return true
	})
	return n
}

// evict drops one entry as if its result had been reclaimed.
func (c *Cache) evict(key string) {
	if _, ok := c.entries.LoadAndDelete(key); ok {
		c.metrics.eviction()
	}
}
