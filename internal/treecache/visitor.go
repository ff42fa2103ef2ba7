package treecache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/treecache/internal/model"
	"github.com/sadopc/treecache/internal/scanner"
)

// Outcome reports how a request for tree elements was served.
type Outcome int

const (
	// Scanned means the tree was walked and the result stored.
	Scanned Outcome = iota
	// Hit means a cached result was returned without walking.
	Hit
	// Bypassed means the tree was not eligible for caching and was walked
	// directly.
	Bypassed
)

func (o Outcome) String() string {
	switch o {
	case Hit:
		return "cached"
	case Bypassed:
		return "uncached"
	default:
		return "scanned"
	}
}

// Visitor hands out the elements of file trees, sharing walk results of
// unfiltered directory trees across callers.
type Visitor struct {
	cache   *Cache
	scanFn  ScanFunc
	log     *zap.Logger
	metrics *Metrics
}

// Option configures a Visitor.
type Option func(*Visitor)

// WithLogger sets the logger used for cache events.
func WithLogger(l *zap.Logger) Option {
	return func(v *Visitor) {
		if l != nil {
			v.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(v *Visitor) {
		if m != nil {
			v.metrics = m
		}
	}
}

// WithScanFunc replaces scanner.Scan as the walk implementation.
func WithScanFunc(fn ScanFunc) Option {
	return func(v *Visitor) {
		if fn != nil {
			v.scanFn = fn
		}
	}
}

// New creates a Visitor with an empty cache.
func New(opts ...Option) *Visitor {
	v := &Visitor{
		scanFn: scanner.Scan,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.metrics == nil {
		v.metrics = NewMetrics(nil)
	}
	v.cache = newCache(v.scan, v.log, v.metrics)
	return v
}

var defaultVisitor = sync.OnceValue(func() *Visitor { return New() })

// Default returns the process-wide Visitor.
func Default() *Visitor {
	return defaultVisitor()
}

// Elements returns every element of tree. For an eligible tree a cached
// result is returned when allowReuse is set; a fresh walk is stored either
// way. Ineligible trees are walked on every call and never cached.
func (v *Visitor) Elements(ctx context.Context, tree scanner.Tree, allowReuse bool) (*model.Result, error) {
	res, _, err := v.Lookup(ctx, tree, allowReuse)
	return res, err
}

// Lookup is Elements that also reports how the result was obtained.
func (v *Visitor) Lookup(ctx context.Context, tree scanner.Tree, allowReuse bool) (*model.Result, Outcome, error) {
	key, ok, err := Eligible(tree)
	if err != nil {
		v.log.Debug("cannot resolve tree root, walking uncached",
			zap.Stringer("tree", tree), zap.Error(err))
	}
	if !ok {
		v.metrics.lookup(lookupBypass)
		v.log.Debug("cache bypass", zap.Stringer("tree", tree))
		res, err := v.scan(ctx, tree)
		return res, Bypassed, err
	}

	res, hit, err := v.cache.LookupOrScan(ctx, key, tree, allowReuse)
	if err != nil {
		return nil, Scanned, err
	}
	if hit {
		return res, Hit, nil
	}
	return res, Scanned, nil
}

// InvalidateAll discards every cached result.
func (v *Visitor) InvalidateAll() {
	v.cache.Clear()
	v.metrics.invalidation()
	v.log.Debug("cache invalidated")
}

// Stats returns the current counters.
func (v *Visitor) Stats() Stats {
	return v.metrics.Stats()
}

// Cache exposes the underlying cache.
func (v *Visitor) Cache() *Cache {
	return v.cache
}

func (v *Visitor) scan(ctx context.Context, tree scanner.Tree) (*model.Result, error) {
	start := time.Now()
	res, err := v.scanFn(ctx, tree)
	took := time.Since(start)
	v.metrics.walk(took, err)
	if err != nil {
		v.log.Warn("tree walk failed", zap.Stringer("tree", tree), zap.Duration("took", took), zap.Error(err))
		return nil, err
	}
	v.log.Debug("tree walked", zap.Stringer("tree", tree),
		zap.Int("elements", res.Len()), zap.Duration("took", took))
	return res, nil
}
