package datasource

import (
	"context"
	"fmt"
	"io"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/scene"
)

// LoadResult holds the meshes of a load and the per-file outcome.
type LoadResult struct {
	// Sources lists every discovered file with its validation status
	Sources []MeshSource
	// Meshes are the parsed meshes in source order
	Meshes []*scene.Mesh
	// Warnings collects recoverable parse problems
	Warnings []string
}

// Failed returns the sources that could not be parsed.
func (r *LoadResult) Failed() []MeshSource {
	var out []MeshSource
	for _, s := range r.Sources {
		if !s.Valid {
			out = append(out, s)
		}
	}
	return out
}

// Loader discovers and parses mesh files.
type Loader struct {
	opts        DiscoveryOptions
	concurrency int
	logger      *log.Logger
}

// NewLoader creates a loader for opts.
func NewLoader(opts DiscoveryOptions) *Loader {
	return &Loader{
		opts:        opts,
		concurrency: runtime.NumCPU(),
		// Silent by default so robot output on stdout stays clean.
		logger: log.New(io.Discard, "", 0),
	}
}

// SetLogger sets a logger for per-file failures
func (l *Loader) SetLogger(logger *log.Logger) {
	l.logger = logger
}

// Root returns the file or directory the loader reads.
func (l *Loader) Root() string {
	if l.opts.Root == "" {
		return "."
	}
	return l.opts.Root
}

// SetConcurrency bounds the number of files parsed at once.
func (l *Loader) SetConcurrency(n int) {
	if n > 0 {
		l.concurrency = n
	}
}

// Load discovers the sources and parses them in parallel. A file that fails
// to parse is marked invalid and logged; it does not fail the load. Load
// fails only when discovery fails or ctx is cancelled.
func (l *Loader) Load(ctx context.Context) (*LoadResult, error) {
	defer metrics.Timer(metrics.SceneLoad)()

	sources, err := DiscoverSources(l.opts)
	if err != nil {
		return nil, err
	}

	type fileResult struct {
		meshes   []*scene.Mesh
		warnings []string
		err      error
	}
	results := make([]fileResult, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stop := metrics.Timer(metrics.MeshParse)
			defer stop()

			var warnings []string
			meshes, err := scene.LoadFile(src.Path, scene.ParseOptions{
				WarningHandler: func(msg string) { warnings = append(warnings, msg) },
			})
			results[i] = fileResult{meshes: meshes, warnings: warnings, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading scene: %w", err)
	}

	res := &LoadResult{Sources: sources}
	for i, r := range results {
		if r.err != nil {
			res.Sources[i].ValidationError = r.err.Error()
			l.logger.Printf("warning: %s: %v", sources[i].Path, r.err)
			continue
		}
		res.Sources[i].Valid = true
		res.Sources[i].MeshCount = len(r.meshes)
		res.Meshes = append(res.Meshes, r.meshes...)
		res.Warnings = append(res.Warnings, r.warnings...)
	}
	return res, nil
}

// LoadInto loads and replaces the contents of sc. The previous contents are
// kept if the load fails.
func (l *Loader) LoadInto(ctx context.Context, sc *scene.Scene) (*LoadResult, error) {
	res, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	sc.Replace(res.Meshes)
	return res, nil
}

// LoadScene is a convenience wrapper that loads opts into a new scene.
func LoadScene(ctx context.Context, opts DiscoveryOptions) (*scene.Scene, *LoadResult, error) {
	sc := scene.New()
	res, err := NewLoader(opts).LoadInto(ctx, sc)
	if err != nil {
		return nil, nil, err
	}
	return sc, res, nil
}
