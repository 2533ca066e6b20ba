// Package datasource discovers the mesh files that make up a scene and loads
// them in parallel into pkg/scene meshes.
package datasource

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/polycheck/pkg/scene"
)

// SourceType identifies the mesh file format.
type SourceType string

const (
	// SourceTypeOBJ is a Wavefront OBJ file
	SourceTypeOBJ SourceType = "obj"
	// SourceTypeSTL is an ASCII or binary STL file
	SourceTypeSTL SourceType = "stl"
)

// MeshSource is one mesh file found during discovery.
type MeshSource struct {
	// Type identifies the file format
	Type SourceType `json:"type"`
	// Path is the path to the file
	Path string `json:"path"`
	// ModTime is the last modification time
	ModTime time.Time `json:"mod_time"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
	// Valid is false when the file could not be parsed
	Valid bool `json:"valid"`
	// ValidationError describes why parsing failed
	ValidationError string `json:"validation_error,omitempty"`
	// MeshCount is the number of meshes read from the file
	MeshCount int `json:"mesh_count"`
}

// String returns a human-readable description of the source
func (s MeshSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, %d bytes, mod=%s, meshes=%d, %s)",
		s.Path, s.Type, s.Size, s.ModTime.Format(time.RFC3339), s.MeshCount, status)
}

// DiscoveryOptions configures source discovery
type DiscoveryOptions struct {
	// Root is a mesh file or a directory (cwd if empty)
	Root string
	// Extensions limits discovery to these extensions (scene.Extensions if empty)
	Extensions []string
	// Recursive walks subdirectories
	Recursive bool
	// Verbose enables detailed logging during discovery
	Verbose bool
	// Logger receives log messages when Verbose is true
	Logger func(msg string)
}

func (o DiscoveryOptions) wants(path string) bool {
	exts := o.Extensions
	if len(exts) == 0 {
		exts = scene.Extensions
	}
	return slices.Contains(exts, strings.ToLower(filepath.Ext(path))) && scene.Supported(path)
}

// DiscoverSources lists the mesh files under opts.Root, sorted by path. A
// root that is itself a file is returned as the only source, whatever its
// extension, so an unsupported file surfaces as a load error.
func DiscoverSources(opts DiscoveryOptions) ([]MeshSource, error) {
	if opts.Logger == nil {
		opts.Logger = func(string) {}
	}

	root := opts.Root
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scene path: %w", err)
	}
	if !info.IsDir() {
		return []MeshSource{newSource(root, info)}, nil
	}

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovering meshes in: %s", root))
	}

	var sources []MeshSource
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if opts.Verbose {
				opts.Logger(fmt.Sprintf("Discovery warning: %v", err))
			}
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (!opts.Recursive || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if skipFile(name) || !opts.wants(path) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		sources = append(sources, newSource(path, fi))
		if opts.Verbose {
			opts.Logger(fmt.Sprintf("Found %s: %s (mod=%s)", sourceType(path), path, fi.ModTime().Format(time.RFC3339)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Path < sources[j].Path
	})

	if opts.Verbose {
		opts.Logger(fmt.Sprintf("Discovered %d sources", len(sources)))
	}
	return sources, nil
}

// skipFile drops hidden files, editor backups and merge leftovers.
func skipFile(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.Contains(name, ".backup") ||
		strings.Contains(name, ".orig")
}

func newSource(path string, info fs.FileInfo) MeshSource {
	return MeshSource{
		Type:    sourceType(path),
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}
}

func sourceType(path string) SourceType {
	return SourceType(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}
