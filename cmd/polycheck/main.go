package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/vanderheijden86/polycheck/internal/datasource"
	"github.com/vanderheijden86/polycheck/pkg/agents"
	"github.com/vanderheijden86/polycheck/pkg/config"
	"github.com/vanderheijden86/polycheck/pkg/export"
	"github.com/vanderheijden86/polycheck/pkg/hooks"
	"github.com/vanderheijden86/polycheck/pkg/layer"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
	"github.com/vanderheijden86/polycheck/pkg/prefs"
	"github.com/vanderheijden86/polycheck/pkg/scene"
	"github.com/vanderheijden86/polycheck/pkg/ui"
	"github.com/vanderheijden86/polycheck/pkg/version"
	"github.com/vanderheijden86/polycheck/pkg/watcher"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	_ = agents.Loaded()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// limitFlag is a --limit-* value, validated like the TUI fields.
type limitFlag struct {
	metric model.MetricKind
	value  int
	set    bool
}

func (f *limitFlag) String() string {
	if f == nil || !f.set {
		return ""
	}
	return strconv.Itoa(f.value)
}

func (f *limitFlag) Set(s string) error {
	v, err := polycount.ParseLimit(f.metric, s)
	if err != nil {
		return err
	}
	f.value, f.set = v, true
	return nil
}

// listFlag collects comma separated values; it may be repeated.
type listFlag []string

func (f *listFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *listFlag) Set(s string) error {
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f = append(*f, part)
		}
	}
	return nil
}

type options struct {
	scenePath    string
	selection    []model.Entity
	limits       [model.NumMetrics]*limitFlag
	configPath   string
	prefsBackend string
	prefsPath    string
	recursive    bool

	robotJSON   bool
	robotReport bool
	visualize   string
	visualizeMk model.MetricKind
	snapshot    string
	view        string
	overrideOBJ string
	exportSQL   string
	chartHTML   string
	chartPNG    string
	title       string
	editLimits  bool
	noHooks     bool

	watch      bool
	version    bool
	help       bool
	cpuProfile string
}

// nonInteractive reports whether the run produces output and exits
// instead of opening the TUI.
func (o options) nonInteractive() bool {
	return o.robotJSON || o.robotReport || o.visualize != "" || o.overrideOBJ != "" ||
		o.exportSQL != "" || o.chartHTML != "" || o.chartPNG != "" || o.editLimits
}

func parseFlags(args []string, stderr io.Writer) (options, *flag.FlagSet, error) {
	var opts options
	fs := flag.NewFlagSet("polycheck", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var selection listFlag
	fs.Var(&selection, "select", "Comma separated objects to measure (default: all geometry)")
	names := [model.NumMetrics]string{"limit-vertex", "limit-edge", "limit-tris", "limit-quad"}
	for _, mk := range model.AllMetrics() {
		opts.limits[mk] = &limitFlag{metric: mk}
		fs.Var(opts.limits[mk], names[mk], fmt.Sprintf("Set and save the %s limit", strings.ToLower(mk.Label())))
	}
	fs.StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/polycheck/config.yaml)")
	fs.StringVar(&opts.prefsBackend, "prefs", "", "Preference store: yaml, sqlite or memory")
	fs.StringVar(&opts.prefsPath, "prefs-path", "", "Preference store path")
	fs.BoolVar(&opts.recursive, "recursive", false, "Walk subdirectories of a scene directory")

	fs.BoolVar(&opts.robotJSON, "robot-json", false, "Print the table, limits and partitions as JSON")
	fs.BoolVar(&opts.robotReport, "robot-report", false, "Print the Markdown report")
	fs.StringVar(&opts.visualize, "visualize", "", "Bind a metric to the visualization layer: vertex, edge, triangle or quad")
	fs.StringVar(&opts.snapshot, "snapshot", "", "Write a layer snapshot (.svg or .png); the TUI's s key writes here too")
	fs.StringVar(&opts.view, "view", string(export.ViewFront), "Snapshot projection: front, top or side")
	fs.StringVar(&opts.overrideOBJ, "override-obj", "", "Write the scene with per-object override materials (OBJ+MTL)")
	fs.StringVar(&opts.exportSQL, "export-sqlite", "", "Append this run to a SQLite history database")
	fs.StringVar(&opts.chartHTML, "chart-html", "", "Write interactive per-metric charts (HTML)")
	fs.StringVar(&opts.chartPNG, "chart-png", "", "Write per-metric charts (PNG)")
	fs.StringVar(&opts.title, "title", "", "Title for reports, charts and snapshots")
	fs.BoolVar(&opts.editLimits, "edit-limits", false, "Edit the four limits in an interactive form")
	fs.BoolVar(&opts.noHooks, "no-hooks", false, "Skip .polycheck/hooks.yaml pre/post-export hooks")

	fs.BoolVar(&opts.watch, "watch", false, "Reload the scene when files change (TUI only)")
	fs.BoolVar(&opts.version, "version", false, "Show version")
	fs.BoolVar(&opts.help, "help", false, "Show help")
	fs.StringVar(&opts.cpuProfile, "cpu-profile", "", "Write CPU profile to file")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "Usage: polycheck [options] [scene-path]")
		fmt.Fprintln(out, "\nChecks vertex, edge, triangle and quad counts of OBJ/STL meshes against limits.")
		fmt.Fprintln(out, "A count equal to its limit is over it.")
		fmt.Fprintln(out)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	if fs.NArg() > 1 {
		return opts, fs, fmt.Errorf("expected at most one scene path, got %d", fs.NArg())
	}
	opts.scenePath = fs.Arg(0)
	for _, s := range selection {
		opts.selection = append(opts.selection, model.Entity(s))
	}

	if opts.visualize != "" {
		mk, err := model.ParseMetricKind(opts.visualize)
		if err != nil {
			return opts, fs, fmt.Errorf("--visualize: %w", err)
		}
		opts.visualizeMk = mk
	}
	switch export.View(opts.view) {
	case export.ViewFront, export.ViewTop, export.ViewSide:
	default:
		return opts, fs, fmt.Errorf("--view: unknown projection %q (want front, top or side)", opts.view)
	}
	if opts.prefsBackend != "" {
		switch opts.prefsBackend {
		case config.PrefsBackendYAML, config.PrefsBackendSQLite, config.PrefsBackendMemory:
		default:
			return opts, fs, fmt.Errorf("--prefs: unknown backend %q (want yaml, sqlite or memory)", opts.prefsBackend)
		}
	}
	if opts.overrideOBJ != "" && opts.visualize == "" {
		return opts, fs, errors.New("--override-obj needs --visualize")
	}
	if opts.robotJSON && opts.robotReport {
		return opts, fs, errors.New("--robot-json and --robot-report are mutually exclusive")
	}
	return opts, fs, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	if opts.help {
		fs.SetOutput(stdout)
		fs.Usage()
		return exitOK
	}
	if opts.version {
		fmt.Fprintf(stdout, "polycheck %s\n", version.Version)
		return exitOK
	}

	// CPU profiling support
	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Could not create CPU profile: %v\n", err)
			return exitError
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Could not start CPU profile: %v\n", err)
			return exitError
		}
		defer pprof.StopCPUProfile()
	}

	logger := log.New(stderr, "polycheck: ", 0)
	cfg := loadConfig(opts, logger)

	app, err := newApp(cfg, opts, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer app.close(logger)

	if opts.nonInteractive() {
		if err := app.runBatch(stdout, stderr); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		return exitOK
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(stderr, "Error: stdout is not a terminal; use --robot-json or --robot-report")
		return exitError
	}
	if err := app.runTUI(cfg, opts); err != nil {
		fmt.Fprintf(stderr, "Error running polycheck: %v\n", err)
		return exitError
	}
	return exitOK
}

// loadConfig reads the config file and applies flag overrides. A broken
// config file is reported and replaced by the defaults.
func loadConfig(opts options, logger *log.Logger) config.Config {
	var cfg config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Printf("warning: %v (using defaults)", err)
	}

	if opts.scenePath != "" {
		cfg.Scene.Path = opts.scenePath
	}
	if cfg.Scene.Path == "" {
		cfg.Scene.Path = "."
	}
	if opts.recursive {
		cfg.Scene.Recursive = true
	}
	if opts.prefsBackend != "" {
		cfg.Prefs.Backend = opts.prefsBackend
	}
	if opts.prefsPath != "" {
		cfg.Prefs.Path = opts.prefsPath
	}
	if opts.watch {
		cfg.Watch.Enabled = true
	}
	return cfg
}

// app holds everything one polycheck run owns.
type app struct {
	opts   options
	scene  *scene.Scene
	loader *datasource.Loader
	load   *datasource.LoadResult
	store  prefs.Store
	binder *layer.Binder
	ctrl   *polycount.Controller
}

func newApp(cfg config.Config, opts options, logger *log.Logger) (*app, error) {
	a := &app{opts: opts}

	a.loader = datasource.NewLoader(datasource.DiscoveryOptions{
		Root:       cfg.Scene.Path,
		Extensions: cfg.Scene.Extensions,
		Recursive:  cfg.Scene.Recursive,
	})
	a.loader.SetLogger(logger)
	a.scene = scene.New()
	res, err := a.loader.LoadInto(context.Background(), a.scene)
	if err != nil {
		return nil, err
	}
	a.load = res

	// Known names become the scene selection; unknown ones are still
	// requested so the load report lists them as skipped.
	var known []model.Entity
	for _, e := range opts.selection {
		if _, ok := a.scene.Mesh(e); ok {
			known = append(known, e)
		}
	}
	if err := a.scene.Select(known...); err != nil {
		return nil, err
	}

	a.store, err = prefs.OpenFromConfig(cfg)
	if err != nil {
		logger.Printf("warning: preferences unavailable, limits will not be saved: %v", err)
		a.store = prefs.NewMemoryStore()
	}

	var sinks []layer.Sink
	if opts.visualize != "" && opts.snapshot != "" {
		sinks = append(sinks, export.SnapshotSink(opts.snapshot, a.scene, export.View(opts.view)))
	}
	if opts.overrideOBJ != "" {
		sinks = append(sinks, export.OverrideSink(opts.overrideOBJ, a.scene))
	}
	a.binder, err = layer.NewBinder(layer.NewRenderSetup(), layer.WithSinks(sinks...))
	if err != nil {
		a.store.Close()
		return nil, fmt.Errorf("creating visualization layer: %w", err)
	}

	a.ctrl = polycount.NewController(a.scene,
		polycount.WithSelectionSource(a.scene),
		polycount.WithBinder(a.binder),
		polycount.WithPreferences(a.store),
		polycount.WithLogger(logger),
	)
	// Warnings were already logged; bad stored values are ignored.
	_ = a.ctrl.LoadPreferences()

	for _, lf := range opts.limits {
		if !lf.set {
			continue
		}
		// Save failures are logged by the controller and do not stop the run.
		_ = a.ctrl.SetLimit(lf.metric, lf.value)
	}

	if _, err := a.ctrl.Refresh(opts.selection); err != nil {
		a.close(logger)
		return nil, err
	}
	return a, nil
}

func (a *app) close(logger *log.Logger) {
	if a.ctrl != nil {
		if err := a.ctrl.Close(); err != nil {
			logger.Printf("warning: %v", err)
		}
		a.ctrl = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Printf("warning: closing preferences: %v", err)
		}
		a.store = nil
	}
}

func (a *app) title() string {
	if a.opts.title != "" {
		return a.opts.title
	}
	return "Poly Count Report"
}

// runBatch performs the requested edits, exports and robot output in a
// fixed order: limits, pre-export hooks, visualization, files, stdout,
// post-export hooks.
func (a *app) runBatch(stdout, stderr io.Writer) error {
	if a.opts.editLimits {
		changed, err := ui.EditLimits(a.ctrl)
		for _, mk := range changed {
			fmt.Fprintf(stderr, "%s limit set to %d\n", mk.Label(), a.ctrl.Threshold(mk))
		}
		if err != nil {
			fmt.Fprintf(stderr, "warning: %v\n", err)
		}
	}

	exec, err := a.startHooks(stderr)
	if err != nil {
		return err
	}

	if a.opts.visualize != "" {
		if err := a.ctrl.Visualize(a.opts.visualizeMk); err != nil {
			return err
		}
		p, _ := a.ctrl.Partition(a.opts.visualizeMk)
		fmt.Fprintf(stderr, "%s (limit %d): %d valid, %d invalid\n",
			p.Metric.Label(), p.Limit, len(p.Valid), len(p.Invalid))
	}

	res := a.ctrl.Result()
	if a.opts.exportSQL != "" {
		id, err := export.AppendRun(a.opts.exportSQL, res, export.RunInfo{
			Scene:   a.sceneRoot(),
			Version: version.Version,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Recorded run %s in %s\n", id, a.opts.exportSQL)
	}
	if a.opts.chartHTML != "" {
		if err := export.SaveChartHTML(a.opts.chartHTML, res, a.title()); err != nil {
			return err
		}
	}
	if a.opts.chartPNG != "" {
		if err := export.SaveChartPNG(a.opts.chartPNG, res); err != nil {
			return err
		}
	}

	if err := a.writeRobot(stdout, res); err != nil {
		return err
	}
	a.finishHooks(exec, stderr)
	return nil
}

func (a *app) writeRobot(stdout io.Writer, res polycount.Result) error {
	switch {
	case a.opts.robotJSON:
		out := export.NewRobotOutput(res)
		out.Version = version.Version
		out.Scene = a.sceneRoot()
		for _, src := range a.load.Failed() {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %s", src.Path, src.ValidationError))
		}
		out.Warnings = append(out.Warnings, a.load.Warnings...)
		if mk, ok := a.ctrl.LastVisualized(); ok {
			out.Visualized = mk.String()
		}
		return export.WriteRobotJSON(stdout, out)
	case a.opts.robotReport:
		md, err := export.GenerateMarkdown(res, a.title())
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, md)
		return err
	}
	return nil
}

// exportContext describes the primary output of this run to hooks.
func (a *app) exportContext() hooks.ExportContext {
	res := a.ctrl.Result()
	ctx := hooks.ExportContext{
		ScenePath:    a.sceneRoot(),
		ObjectCount:  len(res.Rows),
		InvalidCount: len(res.InvalidAny()),
		Timestamp:    res.GeneratedAt,
	}
	switch {
	case a.opts.robotJSON:
		ctx.ExportFormat = "json"
	case a.opts.robotReport:
		ctx.ExportFormat = "markdown"
	case a.opts.exportSQL != "":
		ctx.ExportPath, ctx.ExportFormat = a.opts.exportSQL, "sqlite"
	case a.opts.chartHTML != "":
		ctx.ExportPath, ctx.ExportFormat = a.opts.chartHTML, "html"
	case a.opts.chartPNG != "":
		ctx.ExportPath, ctx.ExportFormat = a.opts.chartPNG, "png"
	case a.opts.snapshot != "" && a.opts.visualize != "":
		ctx.ExportPath = a.opts.snapshot
		ctx.ExportFormat = strings.TrimPrefix(strings.ToLower(filepath.Ext(a.opts.snapshot)), ".")
	case a.opts.overrideOBJ != "":
		ctx.ExportPath, ctx.ExportFormat = a.opts.overrideOBJ, "obj"
	}
	return ctx
}

// hooksDir is the directory searched for .polycheck/hooks.yaml: the scene
// directory, or the directory of a single scene file.
func (a *app) hooksDir() string {
	root := a.loader.Root()
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return filepath.Dir(root)
	}
	return root
}

func (a *app) startHooks(stderr io.Writer) (*hooks.Executor, error) {
	if a.exportContext().ExportFormat == "" {
		return nil, nil
	}
	exec, warnings, err := hooks.RunHooks(a.hooksDir(), a.exportContext(), a.opts.noHooks)
	for _, w := range warnings {
		fmt.Fprintf(stderr, "warning: hooks: %s\n", w)
	}
	if err != nil || exec == nil {
		return nil, err
	}
	if err := exec.RunPreExport(); err != nil {
		fmt.Fprint(stderr, exec.Summary())
		return nil, err
	}
	return exec, nil
}

func (a *app) finishHooks(exec *hooks.Executor, stderr io.Writer) {
	if exec == nil {
		return
	}
	exec.SetContext(a.exportContext())
	if err := exec.RunPostExport(); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}
	fmt.Fprint(stderr, exec.Summary())
}

func (a *app) sceneRoot() string {
	if len(a.load.Sources) == 1 {
		return a.load.Sources[0].Path
	}
	return a.loader.Root()
}

func (a *app) runTUI(cfg config.Config, opts options) error {
	var w *watcher.Watcher
	if cfg.Watch.Enabled {
		var err error
		w, err = watcher.NewWatcher(a.loader.Root(),
			watcher.WithDebounceDuration(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond),
			watcher.WithForcePoll(cfg.Watch.ForcePoll),
			watcher.WithExtensions(cfg.Scene.Extensions...),
			watcher.WithRecursive(cfg.Scene.Recursive),
		)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: live reload disabled: %v\n", err)
			w = nil
		} else {
			defer w.Stop()
		}
	}

	m := ui.NewModel(ui.Config{
		Controller:   a.ctrl,
		Scene:        a.scene,
		Binder:       a.binder,
		Loader:       a.loader,
		Watcher:      w,
		SnapshotPath: opts.snapshot,
		ShowReport:   cfg.UI.ShowReport,
		Title:        opts.title,
	})
	return runTUIProgram(m)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set POLYCHECK_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("POLYCHECK_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
