// Package config handles loading and saving polycheck configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/polycheck/config.yaml
//   - Data:    ~/.local/share/polycheck/ (run history, snapshots)
//   - State:   ~/.local/state/polycheck/ (preference store)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const appName = "polycheck"

// Preference store backends.
const (
	PrefsBackendYAML   = "yaml"
	PrefsBackendSQLite = "sqlite"
	PrefsBackendMemory = "memory"
)

// SceneConfig describes where meshes are loaded from.
type SceneConfig struct {
	Path       string   `yaml:"path,omitempty"`       // File or directory; empty means cwd
	Extensions []string `yaml:"extensions,omitempty"` // Mesh extensions to pick up in a directory
	Recursive  bool     `yaml:"recursive,omitempty"`  // Walk subdirectories
}

// PrefsConfig selects the preference store that keeps the four limits.
type PrefsConfig struct {
	Backend string `yaml:"backend,omitempty"` // yaml, sqlite or memory
	Path    string `yaml:"path,omitempty"`    // Empty means the backend default under StateDir
}

// WatchConfig controls live reload of the scene.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled,omitempty"`
	DebounceMs int  `yaml:"debounce_ms,omitempty"`
	ForcePoll  bool `yaml:"force_poll,omitempty"`
}

// ExportConfig holds defaults for snapshot and report output.
type ExportConfig struct {
	SnapshotFormat string `yaml:"snapshot_format,omitempty"` // svg or png
	OutputDir      string `yaml:"output_dir,omitempty"`
}

// UIConfig holds TUI preferences.
type UIConfig struct {
	ShowReport bool `yaml:"show_report,omitempty"` // Open with the Markdown report pane visible
}

// Config is the top-level configuration for polycheck.
type Config struct {
	Scene  SceneConfig  `yaml:"scene,omitempty"`
	Prefs  PrefsConfig  `yaml:"prefs,omitempty"`
	Watch  WatchConfig  `yaml:"watch,omitempty"`
	Export ExportConfig `yaml:"export,omitempty"`
	UI     UIConfig     `yaml:"ui,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Scene: SceneConfig{
			Extensions: []string{".obj", ".stl"},
		},
		Prefs: PrefsConfig{
			Backend: PrefsBackendYAML,
		},
		Watch: WatchConfig{
			DebounceMs: 200,
		},
		Export: ExportConfig{
			SnapshotFormat: "svg",
		},
	}
}

// Validate checks values that cannot be repaired silently.
func (c Config) Validate() error {
	switch c.Prefs.Backend {
	case "", PrefsBackendYAML, PrefsBackendSQLite, PrefsBackendMemory:
	default:
		return fmt.Errorf("unknown prefs backend %q (want yaml, sqlite or memory)", c.Prefs.Backend)
	}
	switch strings.ToLower(c.Export.SnapshotFormat) {
	case "", "svg", "png":
	default:
		return fmt.Errorf("unknown snapshot format %q (want svg or png)", c.Export.SnapshotFormat)
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative")
	}
	return nil
}

// ConfigDir returns the XDG config directory for polycheck.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for polycheck.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// StateDir returns the XDG state directory for polycheck.
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func xdgDir(env, homeRel string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, homeRel, appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// PrefsPath returns the preference store path for the configured backend.
func (c Config) PrefsPath() string {
	if c.Prefs.Path != "" {
		return c.Prefs.Path
	}
	dir := StateDir()
	if dir == "" {
		return ""
	}
	if c.Prefs.Backend == PrefsBackendSQLite {
		return filepath.Join(dir, "prefs.sqlite3")
	}
	return filepath.Join(dir, "prefs.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), fmt.Errorf("validating config: %w", err)
	}

	if len(cfg.Scene.Extensions) == 0 {
		cfg.Scene.Extensions = DefaultConfig().Scene.Extensions
	}
	for i, ext := range cfg.Scene.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Scene.Extensions[i] = ext
	}

	cfg.Scene.Path = expandHome(cfg.Scene.Path)
	cfg.Prefs.Path = expandHome(cfg.Prefs.Path)
	cfg.Export.OutputDir = expandHome(cfg.Export.OutputDir)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
