package ui

import (
	"cmp"
	"context"
	"fmt"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/treecache/internal/model"
	"github.com/sadopc/treecache/internal/ops"
	"github.com/sadopc/treecache/internal/scanner"
	"github.com/sadopc/treecache/internal/treecache"
	"github.com/sadopc/treecache/internal/ui/components"
	"github.com/sadopc/treecache/internal/ui/style"
	"github.com/sadopc/treecache/internal/util"
)

// ViewMode represents the current view.
type ViewMode int

const (
	ViewElements ViewMode = iota
	ViewCache
)

var viewTabs = []string{"Elements", "Cache"}

// SortMode selects how the element list is ordered.
type SortMode int

const (
	SortVisit SortMode = iota
	SortSize
	SortMtime
)

// AppState represents the application state.
type AppState int

const (
	StateScanning AppState = iota
	StateBrowsing
	StateHelp
	StateExporting
)

// ScanDoneMsg is sent when a lookup or import completes.
type ScanDoneMsg struct {
	Result  *model.Result
	Outcome treecache.Outcome
	Elapsed time.Duration
	Err     error
}

// ExportDoneMsg is sent when export completes.
type ExportDoneMsg struct {
	Path string
	Err  error
}

type tickMsg time.Time

// App is the root Bubble Tea model. It browses the elements of one tree,
// obtained through a caching visitor.
type App struct {
	Tree       scanner.Tree
	ImportPath string
	ExportPath string
	Version    string

	visitor *treecache.Visitor

	state    AppState
	viewMode ViewMode
	sortMode SortMode
	sortAsc  bool
	width    int
	height   int

	result     *model.Result
	items      []model.Element
	totalBytes int64
	dirBytes   map[string]int64
	outcome    treecache.Outcome
	elapsed    time.Duration
	imported   bool

	cursor int
	offset int

	scanProgress   scanner.Progress
	progressMu     sync.Mutex
	latestProgress scanner.Progress
	scanCancel     context.CancelFunc
	scanCancelMu   sync.Mutex

	theme  style.Theme
	keys   KeyMap
	layout style.Layout

	statusMsg string
	fatalErr  error
}

func (a *App) setScanCancel(cancel context.CancelFunc) {
	a.scanCancelMu.Lock()
	a.scanCancel = cancel
	a.scanCancelMu.Unlock()
}

func (a *App) callScanCancel() {
	a.scanCancelMu.Lock()
	if a.scanCancel != nil {
		a.scanCancel()
	}
	a.scanCancelMu.Unlock()
}

// NewApp creates an App browsing tree. The options configure the App's
// visitor; its walk function is always replaced by one that reports
// progress to the UI.
func NewApp(tree scanner.Tree, opts ...treecache.Option) *App {
	a := &App{
		Tree:     tree,
		state:    StateScanning,
		viewMode: ViewElements,
		sortAsc:  true,
		theme:    style.DefaultTheme(),
		keys:     DefaultKeyMap(),
	}
	opts = append(slices.Clip(opts), treecache.WithScanFunc(a.walk))
	a.visitor = treecache.New(opts...)
	return a
}

// NewAppFromImport creates an App that shows a snapshot loaded from a JSON
// export. Rescanning is disabled.
func NewAppFromImport(importPath string) *App {
	return &App{
		ImportPath: importPath,
		state:      StateScanning,
		viewMode:   ViewElements,
		sortAsc:    true,
		imported:   true,
		theme:      style.DefaultTheme(),
		keys:       DefaultKeyMap(),
	}
}

func (a *App) Init() tea.Cmd {
	if a.ImportPath != "" {
		return a.importCmd()
	}
	// Start both the lookup and the progress ticker
	return tea.Batch(a.lookupCmd(true), a.tickCmd())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout = style.NewLayout(msg.Width, msg.Height)
		return a, nil

	case ScanDoneMsg:
		if msg.Err != nil {
			if a.result == nil {
				a.fatalErr = msg.Err
				return a, tea.Quit
			}
			// Keep showing the previous result.
			a.state = StateBrowsing
			a.statusMsg = fmt.Sprintf("Rescan failed: %v", msg.Err)
			return a, tea.ClearScreen
		}
		a.fatalErr = nil
		a.setResult(msg.Result)
		a.outcome = msg.Outcome
		a.elapsed = msg.Elapsed
		a.state = StateBrowsing
		return a, tea.ClearScreen

	case tickMsg:
		if a.state == StateScanning {
			a.progressMu.Lock()
			a.scanProgress = a.latestProgress
			a.progressMu.Unlock()
			return a, a.tickCmd()
		}
		return a, nil

	case ExportDoneMsg:
		a.state = StateBrowsing
		if msg.Err != nil {
			a.statusMsg = fmt.Sprintf("Export failed: %v", msg.Err)
		} else {
			a.statusMsg = fmt.Sprintf("Exported to %s", msg.Path)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, a.keys.ForceQuit) {
		a.callScanCancel()
		return a, tea.Quit
	}

	switch a.state {
	case StateScanning:
		if key.Matches(msg, a.keys.Quit) {
			a.callScanCancel()
			return a, tea.Quit
		}
		return a, nil

	case StateHelp:
		if key.Matches(msg, a.keys.Help, a.keys.Close) {
			a.state = StateBrowsing
			return a, tea.ClearScreen
		}
		return a, nil

	case StateBrowsing:
		return a.handleBrowsingKey(msg)
	}

	return a, nil
}

func (a *App) handleBrowsingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.statusMsg = ""
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.state = StateHelp
		return a, tea.ClearScreen

	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1)
	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1)
	case key.Matches(msg, a.keys.PageUp):
		a.moveCursor(-a.layout.ContentHeight())
	case key.Matches(msg, a.keys.PageDown):
		a.moveCursor(a.layout.ContentHeight())
	case key.Matches(msg, a.keys.Top):
		a.moveCursor(-len(a.items))
	case key.Matches(msg, a.keys.Bottom):
		a.moveCursor(len(a.items))

	case key.Matches(msg, a.keys.ViewElements):
		a.viewMode = ViewElements
		return a, tea.ClearScreen
	case key.Matches(msg, a.keys.ViewCache):
		a.viewMode = ViewCache
		return a, tea.ClearScreen

	case key.Matches(msg, a.keys.SortVisit):
		a.toggleSort(SortVisit)
	case key.Matches(msg, a.keys.SortSize):
		a.toggleSort(SortSize)
	case key.Matches(msg, a.keys.SortMtime):
		a.toggleSort(SortMtime)

	case key.Matches(msg, a.keys.Export):
		return a, a.exportCmd()

	case key.Matches(msg, a.keys.Rescan):
		return a, a.rescan(true)
	case key.Matches(msg, a.keys.Force):
		return a, a.rescan(false)

	case key.Matches(msg, a.keys.Invalidate):
		if a.imported {
			a.statusMsg = "No cache for an imported snapshot"
			return a, nil
		}
		a.visitor.InvalidateAll()
		a.statusMsg = "Cache invalidated"
	}

	return a, nil
}

func (a *App) rescan(allowReuse bool) tea.Cmd {
	if a.imported {
		a.statusMsg = "Rescan is disabled for an imported snapshot"
		return nil
	}
	a.progressMu.Lock()
	a.latestProgress = scanner.Progress{}
	a.progressMu.Unlock()
	a.scanProgress = scanner.Progress{}
	a.state = StateScanning
	return tea.Batch(tea.ClearScreen, a.lookupCmd(allowReuse), a.tickCmd())
}

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	switch a.state {
	case StateScanning:
		return components.RenderScanProgress(a.theme, a.scanProgress, a.width, a.height)

	case StateHelp:
		return components.RenderHelp(a.theme, a.width, a.height)

	case StateBrowsing, StateExporting:
		return a.renderBrowsing()
	}

	return ""
}

func (a *App) renderBrowsing() string {
	info := components.HeaderInfo{Tree: a.treeName(), Bytes: a.totalBytes}
	if a.result != nil {
		info.Files = a.result.Files()
		info.Dirs = a.result.Dirs()
	}
	header := components.RenderHeader(a.theme, info, a.width)
	tabBar := components.RenderTabBar(a.theme, viewTabs, int(a.viewMode), a.sortLabel(), a.width)

	var content string
	switch a.viewMode {
	case ViewElements:
		el := &components.ElementList{
			Theme:      a.theme,
			Layout:     a.layout,
			Items:      a.items,
			Cursor:     a.cursor,
			Offset:     a.offset,
			TotalBytes: a.totalBytes,
			DirBytes:   a.dirBytes,
		}
		el.EnsureVisible()
		a.offset = el.Offset
		content = el.Render()

	case ViewCache:
		var stats treecache.Stats
		live := 0
		if a.visitor != nil {
			stats = a.visitor.Stats()
			live = a.visitor.Cache().Len()
		}
		content = components.RenderCachePanel(a.theme, stats, live, a.layout.ContentWidth(), a.layout.ContentHeight())
	}

	status := components.StatusInfo{
		Elements: len(a.items),
		Outcome:  a.outcome,
		Elapsed:  util.FormatElapsed(a.elapsed),
		Imported: a.imported,
		ErrorMsg: a.statusMsg,
	}
	if a.visitor != nil {
		status.Stats = a.visitor.Stats()
	}
	statusBar := components.RenderStatusBar(a.theme, status, a.width)

	return header + "\n" + tabBar + "\n" + content + "\n" + statusBar
}

func (a *App) treeName() string {
	if a.Tree != nil {
		return a.Tree.String()
	}
	if a.result != nil {
		return a.result.Root()
	}
	return a.ImportPath
}

func (a *App) moveCursor(delta int) {
	a.cursor = max(min(a.cursor+delta, len(a.items)-1), 0)
}

// setResult switches the view to res, keeping the cursor on the same
// relative path when it is still present.
func (a *App) setResult(res *model.Result) {
	var keep string
	if a.cursor < len(a.items) {
		keep = a.items[a.cursor].RelPath
	}

	a.result = res
	a.totalBytes, a.dirBytes = subtreeSizes(res)
	a.refreshItems()

	a.cursor = 0
	for i, e := range a.items {
		if e.RelPath == keep {
			a.cursor = i
			break
		}
	}
}

// subtreeSizes sums file sizes for the whole result and for every directory.
func subtreeSizes(res *model.Result) (int64, map[string]int64) {
	dirs := make(map[string]int64)
	var total int64
	for _, e := range res.All() {
		if e.IsDir() {
			continue
		}
		total += e.Size
		for dir := path.Dir(e.RelPath); dir != "."; dir = path.Dir(dir) {
			dirs[dir] += e.Size
		}
	}
	return total, dirs
}

func (a *App) toggleSort(mode SortMode) {
	if a.sortMode == mode {
		a.sortAsc = !a.sortAsc
	} else {
		a.sortMode = mode
		a.sortAsc = mode == SortVisit
	}
	a.refreshItems()
	a.cursor = 0
	a.offset = 0
}

func (a *App) sortLabel() string {
	names := map[SortMode]string{
		SortVisit: "Visit",
		SortSize:  "Size",
		SortMtime: "Mtime",
	}
	dir := "↓"
	if a.sortAsc {
		dir = "↑"
	}
	return names[a.sortMode] + " " + dir
}

func (a *App) refreshItems() {
	if a.result == nil {
		a.items = nil
		return
	}
	// The result is shared with the cache; sort a copy.
	items := a.result.Elements()

	switch a.sortMode {
	case SortSize:
		slices.SortStableFunc(items, func(x, y model.Element) int {
			return cmp.Compare(a.sizeOf(y), a.sizeOf(x))
		})
	case SortMtime:
		slices.SortStableFunc(items, func(x, y model.Element) int {
			return y.ModTime.Compare(x.ModTime)
		})
	}
	// Size and mtime sort largest and newest first.
	if a.sortAsc == (a.sortMode != SortVisit) {
		slices.Reverse(items)
	}
	a.items = items
}

func (a *App) sizeOf(e model.Element) int64 {
	if e.IsDir() {
		return a.dirBytes[e.RelPath]
	}
	return e.Size
}

// lookupCmd asks the visitor for the tree's elements in the background.
func (a *App) lookupCmd(allowReuse bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		a.setScanCancel(cancel)
		defer cancel()

		start := time.Now()
		res, outcome, err := a.visitor.Lookup(ctx, a.Tree, allowReuse)
		return ScanDoneMsg{Result: res, Outcome: outcome, Elapsed: time.Since(start), Err: err}
	}
}

// walk is the visitor's scan function. Progress is relayed to
// a.latestProgress, which the tick handler reads.
func (a *App) walk(ctx context.Context, tree scanner.Tree) (*model.Result, error) {
	progressCh := make(chan scanner.Progress, 10)
	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		for p := range progressCh {
			a.progressMu.Lock()
			a.latestProgress = p
			a.progressMu.Unlock()
		}
	}()

	res, err := scanner.ScanWithProgress(ctx, tree, progressCh)
	close(progressCh)
	<-relayed
	return res, err
}

func (a *App) importCmd() tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		res, err := ops.ImportJSON(a.ImportPath)
		return ScanDoneMsg{Result: res, Outcome: treecache.Bypassed, Elapsed: time.Since(start), Err: err}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// FatalError returns the error of a failed first lookup or import.
func (a *App) FatalError() error { return a.fatalErr }

// Visitor returns the App's caching visitor, nil for an imported snapshot.
func (a *App) Visitor() *treecache.Visitor { return a.visitor }

func (a *App) exportCmd() tea.Cmd {
	if a.result == nil {
		return nil
	}

	exportPath := a.ExportPath
	if exportPath == "" {
		exportPath = "treecache-export.json"
	}

	a.state = StateExporting
	res := a.result
	version := a.Version
	return func() tea.Msg {
		err := ops.ExportJSON(res, exportPath, version)
		return ExportDoneMsg{Path: exportPath, Err: err}
	}
}
