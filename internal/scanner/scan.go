package scanner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sadopc/treecache/internal/model"
)

// Scan walks tree once and collects every visited directory and file, in
// visitation order, into a new Result. A failed walk returns no result.
func Scan(ctx context.Context, tree Tree) (*model.Result, error) {
	return ScanWithProgress(ctx, tree, nil)
}

// ScanWithProgress is Scan with progress updates sent on progress.
// Updates are dropped when the channel is full; the channel is not closed.
func ScanWithProgress(ctx context.Context, tree Tree, progress chan<- Progress) (*model.Result, error) {
	root := tree.String()
	if dt, ok := tree.(DirectoryTree); ok {
		if dir, err := dt.Dir(); err == nil {
			root = dir
		}
	}

	c := &collector{b: model.NewBuilder(root)}
	startTime := time.Now()

	snapshot := func(done bool) Progress {
		return Progress{
			Root:         root,
			FilesScanned: c.files.Load(),
			DirsScanned:  c.dirs.Load(),
			BytesFound:   c.bytes.Load(),
			Done:         done,
			StartTime:    startTime,
			Duration:     time.Since(startTime),
		}
	}

	// Progress reporter goroutine
	var progressWg sync.WaitGroup
	progressDone := make(chan struct{})
	if progress != nil {
		progressWg.Add(1)
		go func() {
			defer progressWg.Done()
			ticker := time.NewTicker(50 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					select {
					case progress <- snapshot(false):
					default:
						// Drop if channel full
					}
				case <-progressDone:
					return
				}
			}
		}()
	}

	err := tree.Walk(ctx, c)

	if progress != nil {
		close(progressDone)
		progressWg.Wait()
	}
	if err != nil {
		return nil, err
	}

	if progress != nil {
		select {
		case progress <- snapshot(true):
		default:
		}
	}
	return c.b.Build(), nil
}

type collector struct {
	b     *model.Builder
	files atomic.Int64
	dirs  atomic.Int64
	bytes atomic.Int64
}

func (c *collector) VisitDir(e model.Element) error {
	c.b.Add(e)
	c.dirs.Add(1)
	return nil
}

func (c *collector) VisitFile(e model.Element) error {
	c.b.Add(e)
	c.files.Add(1)
	c.bytes.Add(e.Size)
	return nil
}
