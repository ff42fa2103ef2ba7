package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/sadopc/treecache/internal/config"
	"github.com/sadopc/treecache/internal/logging"
	"github.com/sadopc/treecache/internal/model"
	"github.com/sadopc/treecache/internal/ops"
	"github.com/sadopc/treecache/internal/remote"
	"github.com/sadopc/treecache/internal/scanner"
	"github.com/sadopc/treecache/internal/treecache"
	"github.com/sadopc/treecache/internal/ui"
	"github.com/sadopc/treecache/internal/ui/style"
	"github.com/sadopc/treecache/internal/util"
)

var (
	version = "dev"
)

type cliFlags struct {
	include, exclude string
	repeat           int
	noReuse          bool
	invalidate       bool
	exportPath       string
	importPath       string
	tui              bool
	configPath       string
	logLevel         string
	logFormat        string
	metrics          bool
	concurrency      int
	followSymlinks   bool
	sshPort          int
	sshBatch         bool
	sshTimeout       time.Duration
	sshScanTimeout   time.Duration
	showVersion      bool
}

func main() {
	var f cliFlags
	flag.StringVar(&f.include, "include", "", "Comma-separated globs of files to keep (disables caching)")
	flag.StringVar(&f.exclude, "exclude", "", "Comma-separated globs to exclude (disables caching)")
	flag.IntVar(&f.repeat, "repeat", 1, "Request the tree's elements N times")
	flag.BoolVar(&f.noReuse, "no-reuse", false, "Never serve a cached result; every request walks")
	flag.BoolVar(&f.invalidate, "invalidate", false, "Invalidate the cache before every repetition after the first")
	flag.StringVar(&f.exportPath, "export", "", "Export the last result to a JSON file ('-' for stdout)")
	flag.StringVar(&f.importPath, "import", "", "Load a result from a JSON export instead of walking")
	flag.BoolVar(&f.tui, "tui", false, "Browse the result interactively")
	flag.StringVar(&f.configPath, "config", config.DefaultPath(), "Config file")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&f.logFormat, "log-format", "", "Log format: console, json")
	flag.BoolVar(&f.metrics, "metrics", false, "Write Prometheus metrics to stderr on exit")
	flag.IntVar(&f.concurrency, "j", 0, "Max concurrent directory listings (0 = auto: 3x CPU cores)")
	flag.BoolVar(&f.followSymlinks, "follow-symlinks", false, "Follow symbolic links during walks")
	flag.IntVar(&f.sshPort, "ssh-port", 22, "SSH port for remote trees")
	flag.BoolVar(&f.sshBatch, "ssh-batch", false, "Disable SSH prompts (key/agent auth and known hosts only)")
	flag.DurationVar(&f.sshTimeout, "ssh-timeout", 15*time.Second, "SSH connection timeout")
	flag.DurationVar(&f.sshScanTimeout, "ssh-scan-timeout", 0, "Limit for a whole remote walk (0 = none)")
	flag.BoolVar(&f.showVersion, "version", false, "Show version")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "treecache - Cached file tree walks\n\n")
		fmt.Fprintf(os.Stderr, "Usage: treecache [options] [path... | user@host [remote-path]]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  treecache -repeat 3 .                  Walk once, then serve twice from cache\n")
		fmt.Fprintf(os.Stderr, "  treecache -no-reuse -repeat 2 /src     Walk on every request\n")
		fmt.Fprintf(os.Stderr, "  treecache -exclude 'build/' .          Filtered tree, never cached\n")
		fmt.Fprintf(os.Stderr, "  treecache -export scan.json .          Export the result to JSON\n")
		fmt.Fprintf(os.Stderr, "  treecache -import scan.json -tui       Browse an exported result\n")
		fmt.Fprintf(os.Stderr, "  treecache -ssh-port 2222 user@host /var/log\n")
		fmt.Fprintf(os.Stderr, "  treecache -tui .                       Interactive browser\n")
	}

	flag.Parse()

	if f.showVersion {
		fmt.Printf("treecache %s\n", version)
		os.Exit(0)
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags given on the
// command line on top of it.
func loadConfig(f cliFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "log-format":
			cfg.Log.Format = f.logFormat
		case "metrics":
			cfg.Metrics = f.metrics
		case "j":
			cfg.Concurrency = f.concurrency
		case "follow-symlinks":
			cfg.FollowSymlinks = f.followSymlinks
		case "ssh-port":
			cfg.SSH.Port = f.sshPort
		case "ssh-batch":
			cfg.SSH.Batch = f.sshBatch
		case "ssh-timeout":
			cfg.SSH.Timeout = f.sshTimeout
		case "ssh-scan-timeout":
			cfg.SSH.ScanTimeout = f.sshScanTimeout
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(f cliFlags) (retErr error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if f.repeat < 1 {
		return fmt.Errorf("-repeat must be >= 1")
	}

	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	if cfg.Metrics {
		defer func() {
			if err := writeMetrics(os.Stderr, reg); err != nil && retErr == nil {
				retErr = err
			}
		}()
	}

	if f.tui && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("-tui requires a terminal on stdout")
	}

	if f.importPath != "" {
		if flag.NArg() > 0 {
			return fmt.Errorf("-import cannot be used with scan targets")
		}
		return runImport(f)
	}

	tree, err := buildTree(f, cfg, flag.Args())
	if err != nil {
		return err
	}
	logger.Debug("tree resolved", zap.Stringer("tree", tree))

	opts := []treecache.Option{
		treecache.WithLogger(logger),
		treecache.WithMetrics(treecache.NewMetrics(reg)),
	}

	if f.tui {
		app := ui.NewApp(tree, opts...)
		app.ExportPath = f.exportPath
		app.Version = version
		return runProgram(app)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// With JSON on stdout the report moves to stderr.
	report := io.Writer(os.Stdout)
	if f.exportPath == "-" {
		report = os.Stderr
	}

	visitor := treecache.New(opts...)
	last, err := repeatLookups(ctx, visitor, tree, f, report)
	if err != nil {
		return err
	}

	if f.exportPath != "" {
		if err := ops.ExportJSON(last, f.exportPath, version); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if f.exportPath != "-" {
			fmt.Fprintf(report, "Exported to %s\n", f.exportPath)
		}
	}
	return nil
}

// buildTree turns the positional arguments into a tree.
func buildTree(f cliFlags, cfg *config.Config, args []string) (scanner.Tree, error) {
	patterns := scanner.PatternSet{
		Includes: splitComma(f.include),
		Excludes: splitComma(f.exclude),
	}
	if err := patterns.Validate(); err != nil {
		return nil, err
	}

	target, err := resolveScanTarget(args)
	if err != nil {
		return nil, err
	}

	if target.Remote {
		rc := remote.Config{
			Target:         target.SSHDestination,
			Port:           cfg.SSH.Port,
			BatchMode:      cfg.SSH.Batch,
			Timeout:        cfg.SSH.Timeout,
			ScanTimeout:    cfg.SSH.ScanTimeout,
			FollowSymlinks: cfg.FollowSymlinks,
			Concurrency:    cfg.Concurrency,
		}
		return remote.NewSFTPTree(rc, target.RemotePath).WithPatterns(patterns), nil
	}

	opts := scanner.DefaultOptions()
	opts.FollowSymlinks = cfg.FollowSymlinks
	opts.Concurrency = cfg.Concurrency

	trees := make([]scanner.Tree, 0, len(target.LocalPaths))
	for _, p := range target.LocalPaths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			trees = append(trees, scanner.NewFileTree(absPath))
			continue
		}
		trees = append(trees, scanner.NewDirTree(absPath, opts).WithPatterns(patterns))
	}
	if len(trees) == 1 {
		return trees[0], nil
	}
	return scanner.NewUnionTree(trees...), nil
}

// repeatLookups requests the tree's elements f.repeat times, writing one
// report line per request and a summary, and returns the last result.
func repeatLookups(ctx context.Context, v *treecache.Visitor, tree scanner.Tree, f cliFlags, w io.Writer) (*model.Result, error) {
	theme := style.DefaultTheme()
	var last *model.Result
	for i := range f.repeat {
		if i > 0 && f.invalidate {
			v.InvalidateAll()
		}
		start := time.Now()
		res, outcome, err := v.Lookup(ctx, tree, !f.noReuse)
		if err != nil {
			return nil, err
		}
		// Holding the previous result keeps its cache entry alive.
		last = res

		badge := lipgloss.NewStyle().Width(10).Render(outcomeBadge(theme, outcome))
		fmt.Fprintf(w, "#%d %s %s elements  fingerprint %s  %s\n",
			i+1, badge, util.FormatCount(int64(res.Len())), res.FingerprintHex(),
			util.FormatElapsed(time.Since(start)))
	}

	st := v.Stats()
	lookups := st.Hits + st.Misses + st.Forced
	fmt.Fprintf(w, "%s: %d files, %d dirs; hits %d/%d (%.0f%%), walks %d\n",
		tree, last.Files(), last.Dirs(), st.Hits, lookups, util.HitRate(st.Hits, lookups), st.Walks)
	return last, nil
}

func outcomeBadge(theme style.Theme, o treecache.Outcome) string {
	switch o {
	case treecache.Hit:
		return lipgloss.NewStyle().Foreground(theme.Success).Render(o.String())
	case treecache.Bypassed:
		return lipgloss.NewStyle().Foreground(theme.Muted).Render(o.String())
	default:
		return lipgloss.NewStyle().Foreground(theme.Warning).Render(o.String())
	}
}

func runImport(f cliFlags) error {
	if f.tui {
		app := ui.NewAppFromImport(f.importPath)
		app.ExportPath = f.exportPath
		app.Version = version
		return runProgram(app)
	}

	res, err := ops.ImportJSON(f.importPath)
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}

	if f.exportPath == "" {
		fmt.Printf("%s: %s elements  fingerprint %s\n",
			res.Root(), util.FormatCount(int64(res.Len())), res.FingerprintHex())
		return nil
	}
	if err := ops.ExportJSON(res, f.exportPath, version); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if f.exportPath != "-" {
		fmt.Printf("Exported to %s\n", f.exportPath)
	}
	return nil
}

func runProgram(app *ui.App) error {
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return app.FatalError()
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	var errs []error
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
