package treecache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sadopc/treecache/internal/model"
	"github.com/sadopc/treecache/internal/scanner"
)

// fakeTree is a directory tree with fixed content that counts its walks.
// A non-nil gate blocks Walk until closed.
type fakeTree struct {
	dir      string
	patterns scanner.PatternSet
	elems    []model.Element
	gate     chan struct{}
	started  chan struct{}
	start    sync.Once
	fail     atomic.Pointer[error]
	walks    atomic.Int32
}

func newFakeTree(dir string, names ...string) *fakeTree {
	f := &fakeTree{dir: dir}
	for _, n := range names {
		f.elems = append(f.elems, model.Element{
			Path:    filepath.Join(dir, n),
			RelPath: n,
			Kind:    model.KindFile,
			Size:    int64(len(n)),
		})
	}
	return f
}

func (f *fakeTree) Walk(ctx context.Context, v scanner.Visitor) error {
	f.walks.Add(1)
	if f.started != nil {
		f.start.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := f.fail.Load(); err != nil {
		return *err
	}
	for _, e := range f.elems {
		if err := v.VisitFile(e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTree) String() string { return f.dir }

func (f *fakeTree) Dir() (string, error) { return f.dir, nil }

func (f *fakeTree) Patterns() scanner.PatternSet { return f.patterns }

// plainTree hides the directory methods of a fakeTree.
type plainTree struct{ f *fakeTree }

func (p plainTree) Walk(ctx context.Context, v scanner.Visitor) error { return p.f.Walk(ctx, v) }

func (p plainTree) String() string { return p.f.String() }

// countingScan wraps scanner.Scan and counts every walk.
func countingScan(n *atomic.Int32) Option {
	return WithScanFunc(func(ctx context.Context, tree scanner.Tree) (*model.Result, error) {
		n.Add(1)
		return scanner.Scan(ctx, tree)
	})
}

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestElements_EligibleReused(t *testing.T) {
	tree := newFakeTree("/src", "a.txt", "b.txt")
	v := New()
	ctx := context.Background()

	first, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Equal(second) {
		t.Fatal("expected equal results")
	}
	if n := tree.walks.Load(); n != 1 {
		t.Fatalf("walks = %d, want 1", n)
	}
	st := v.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Walks != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestElements_IneligibleAlwaysWalks(t *testing.T) {
	filtered := newFakeTree("/src", "a.go")
	filtered.patterns = scanner.PatternSet{Includes: []string{"*.go"}}
	plain := plainTree{newFakeTree("/other", "x")}

	tests := []struct {
		name  string
		tree  scanner.Tree
		walks func() int32
	}{
		{"filtered", filtered, filtered.walks.Load},
		{"not a directory tree", plain, plain.f.walks.Load},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			const n = 4
			for i := range n {
				if _, err := v.Elements(context.Background(), tt.tree, i%2 == 0); err != nil {
					t.Fatal(err)
				}
			}
			if got := tt.walks(); got != n {
				t.Fatalf("walks = %d, want %d", got, n)
			}
			if v.Cache().Len() != 0 {
				t.Fatal("ineligible results must not be cached")
			}
			if st := v.Stats(); st.Bypassed != n || st.Hits != 0 {
				t.Fatalf("unexpected stats %+v", st)
			}
		})
	}
}

func TestElements_ForcedRescanWarmsCache(t *testing.T) {
	tree := newFakeTree("/src", "a.txt")
	v := New()
	ctx := context.Background()

	forced, err := v.Elements(ctx, tree, false)
	if err != nil {
		t.Fatal(err)
	}
	reused, _, err := v.Lookup(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	if reused != forced {
		t.Fatal("expected the forced result to be served from the cache")
	}
	if n := tree.walks.Load(); n != 1 {
		t.Fatalf("walks = %d, want 1", n)
	}
	if st := v.Stats(); st.Forced != 1 || st.Hits != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestElements_ForcedRescanWalksEvenWhenCached(t *testing.T) {
	tree := newFakeTree("/src", "a.txt")
	v := New()
	ctx := context.Background()

	first, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	second, err := v.Elements(ctx, tree, false)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("forced rescan returned the cached result")
	}
	if n := tree.walks.Load(); n != 2 {
		t.Fatalf("walks = %d, want 2", n)
	}
}

func TestInvalidateAll_ForcesRescan(t *testing.T) {
	tree := newFakeTree("/src", "a.txt")
	v := New()
	ctx := context.Background()

	held, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	v.InvalidateAll()
	if v.Cache().Len() != 0 {
		t.Fatal("cache not empty after invalidation")
	}
	again, _, err := v.Lookup(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	if n := tree.walks.Load(); n != 2 {
		t.Fatalf("walks = %d, want 2", n)
	}
	if !held.Equal(again) {
		t.Fatal("expected equal results across invalidation")
	}
	if st := v.Stats(); st.Invalidations != 1 {
		t.Fatalf("invalidations = %d, want 1", st.Invalidations)
	}
}

func TestEvict_NextLookupRescans(t *testing.T) {
	tree := newFakeTree("/src", "a.txt", "b.txt")
	v := New()
	ctx := context.Background()

	before, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	v.Cache().evict("/src")

	after, outcome, err := v.Lookup(ctx, tree, true)
	if err != nil {
		t.Fatalf("lookup after eviction: %v", err)
	}
	if outcome != Scanned {
		t.Fatalf("outcome = %v, want scanned", outcome)
	}
	if !before.Equal(after) {
		t.Fatal("result after eviction differs")
	}
	if n := tree.walks.Load(); n != 2 {
		t.Fatalf("walks = %d, want 2", n)
	}
	if st := v.Stats(); st.Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", st.Evictions)
	}
}

func TestCache_UnreferencedResultIsReclaimed(t *testing.T) {
	tree := newFakeTree("/src", "a.txt")
	v := New()

	res, err := v.Elements(context.Background(), tree, true)
	if err != nil {
		t.Fatal(err)
	}
	want := res.Fingerprint()
	res = nil

	deadline := time.Now().Add(2 * time.Second)
	for v.Stats().Evictions == 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if v.Stats().Evictions == 0 {
		t.Skip("garbage collector did not reclaim the result in time")
	}
	if v.Cache().Len() != 0 {
		t.Fatal("reclaimed entry still counted")
	}

	again, err := v.Elements(context.Background(), tree, true)
	if err != nil {
		t.Fatal(err)
	}
	if again.Fingerprint() != want {
		t.Fatal("rescanned result differs")
	}
	if n := tree.walks.Load(); n != 2 {
		t.Fatalf("walks = %d, want 2", n)
	}
}

func TestElements_FailedWalkStoresNothing(t *testing.T) {
	tree := newFakeTree("/src", "a.txt")
	boom := errors.New("boom")
	tree.fail.Store(&boom)
	v := New()
	ctx := context.Background()

	if _, err := v.Elements(ctx, tree, true); !errors.Is(err, boom) {
		t.Fatalf("expected walk error, got %v", err)
	}
	if v.Cache().Len() != 0 {
		t.Fatal("failed walk must not be cached")
	}

	tree.fail.Store(nil)
	res, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 1 {
		t.Fatalf("len = %d, want 1", res.Len())
	}
	if n := tree.walks.Load(); n != 2 {
		t.Fatalf("walks = %d, want 2", n)
	}
	if st := v.Stats(); st.WalkErrors != 1 {
		t.Fatalf("walk errors = %d, want 1", st.WalkErrors)
	}
}

func TestElements_DistinctKeysDoNotBlock(t *testing.T) {
	slow := newFakeTree("/slow", "a")
	slow.gate = make(chan struct{})
	slow.started = make(chan struct{})
	fast := newFakeTree("/fast", "b")
	v := New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slowDone := make(chan error, 1)
	go func() {
		_, err := v.Elements(ctx, slow, true)
		slowDone <- err
	}()
	<-slow.started

	fastDone := make(chan error, 1)
	go func() {
		_, err := v.Elements(ctx, fast, true)
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("lookup for a distinct key blocked on an in-flight walk")
	}

	close(slow.gate)
	if err := <-slowDone; err != nil {
		t.Fatal(err)
	}
}

func TestElements_ConcurrentSameKey(t *testing.T) {
	tree := newFakeTree("/src", "a.txt", "b.txt", "c.txt")
	v := New()

	const workers = 16
	results := make([]*model.Result, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := v.Elements(context.Background(), tree, true)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = res
		}()
	}
	wg.Wait()

	for i, r := range results {
		if r == nil || !r.Equal(results[0]) {
			t.Fatalf("result %d differs", i)
		}
	}
	if n := tree.walks.Load(); n < 1 || n > workers {
		t.Fatalf("walks = %d", n)
	}
}

func TestElements_SourceScenario(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.txt", "b/c.txt")

	var walks atomic.Int32
	v := New(countingScan(&walks))
	tree := scanner.NewDirTree(root, scanner.DefaultOptions())
	ctx := context.Background()

	first, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	if walks.Load() != 1 {
		t.Fatalf("walks = %d, want 1", walks.Load())
	}
	want := []struct {
		rel  string
		kind model.Kind
	}{
		{"a.txt", model.KindFile},
		{"b", model.KindDir},
		{"b/c.txt", model.KindFile},
	}
	if first.Len() != len(want) {
		t.Fatalf("len = %d, want %d", first.Len(), len(want))
	}
	for i, w := range want {
		e := first.At(i)
		if e.RelPath != w.rel || e.Kind != w.kind {
			t.Fatalf("element %d = %s (%v), want %s (%v)", i, e.RelPath, e.Kind, w.rel, w.kind)
		}
	}

	second, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	if walks.Load() != 1 {
		t.Fatalf("walks = %d after cache hit, want 1", walks.Load())
	}
	if !first.Equal(second) {
		t.Fatal("cache hit returned different elements")
	}

	v.InvalidateAll()
	third, err := v.Elements(ctx, tree, true)
	if err != nil {
		t.Fatal(err)
	}
	if walks.Load() != 2 {
		t.Fatalf("walks = %d after invalidation, want 2", walks.Load())
	}
	if !first.Equal(third) {
		t.Fatal("rescan of unchanged tree differs")
	}
}

func TestElements_EquivalentRootsShareEntry(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.txt")

	var walks atomic.Int32
	v := New(countingScan(&walks))
	ctx := context.Background()

	held, err := v.Elements(ctx, scanner.NewDirTree(root, scanner.DefaultOptions()), true)
	if err != nil {
		t.Fatal(err)
	}
	spelled := root + string(filepath.Separator) + "."
	if _, err := v.Elements(ctx, scanner.NewDirTree(spelled, scanner.DefaultOptions()), true); err != nil {
		t.Fatal(err)
	}
	if walks.Load() != 1 {
		t.Fatalf("walks = %d, want 1", walks.Load())
	}

	filtered := scanner.NewDirTree(root, scanner.DefaultOptions()).
		WithPatterns(scanner.PatternSet{Excludes: []string{"*.tmp"}})
	if _, err := v.Elements(ctx, filtered, true); err != nil {
		t.Fatal(err)
	}
	if walks.Load() != 2 {
		t.Fatalf("filtered tree reused the unfiltered entry")
	}
	runtime.KeepAlive(held)
}

func TestElements_MissingRootNotCached(t *testing.T) {
	v := New()
	tree := scanner.NewDirTree(filepath.Join(t.TempDir(), "missing"), scanner.DefaultOptions())
	if _, err := v.Elements(context.Background(), tree, true); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if v.Cache().Len() != 0 {
		t.Fatal("failed walk cached")
	}
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	v := New(WithMetrics(m))
	tree := newFakeTree("/src", "a.txt")
	ctx := context.Background()

	held, _ := v.Elements(ctx, tree, true)
	_, _ = v.Elements(ctx, tree, true)
	_, _ = v.Elements(ctx, tree, false)
	v.InvalidateAll()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	values := map[string]float64{}
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			name := f.GetName()
			for _, l := range metric.GetLabel() {
				name += "/" + l.GetValue()
			}
			if c := metric.GetCounter(); c != nil {
				values[name] = c.GetValue()
			}
			if h := metric.GetHistogram(); h != nil {
				values[name] = float64(h.GetSampleCount())
			}
		}
	}

	checks := map[string]float64{
		"treecache_lookups_total/hit":     1,
		"treecache_lookups_total/miss":    1,
		"treecache_lookups_total/forced":  1,
		"treecache_walks_total":           2,
		"treecache_walk_duration_seconds": 2,
		"treecache_invalidations_total":   1,
		"treecache_walk_errors_total":     0,
	}
	for name, want := range checks {
		got, ok := values[name]
		if !ok {
			t.Errorf("metric %s not gathered", name)
			continue
		}
		if got != want {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	runtime.KeepAlive(held)
}

func TestEligible(t *testing.T) {
	filtered := newFakeTree("/src")
	filtered.patterns = scanner.PatternSet{Excludes: []string{"build/"}}

	tests := []struct {
		name    string
		tree    scanner.Tree
		wantKey string
		wantOK  bool
	}{
		{"plain directory", newFakeTree("/src"), "/src", true},
		{"filtered directory", filtered, "", false},
		{"file tree", scanner.NewFileTree("/src/a.txt"), "", false},
		{"union", scanner.NewUnionTree(newFakeTree("/a"), newFakeTree("/b")), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok, err := Eligible(tt.tree)
			if err != nil {
				t.Fatal(err)
			}
			if key != tt.wantKey || ok != tt.wantOK {
				t.Fatalf("Eligible = (%q, %v), want (%q, %v)", key, ok, tt.wantKey, tt.wantOK)
			}
		})
	}
}

func TestDefault_IsShared(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default returned different visitors")
	}
}
