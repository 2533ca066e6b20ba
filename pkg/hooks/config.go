// Package hooks runs user commands around polycheck exports. Hooks are
// configured in .polycheck/hooks.yaml next to the scene and run before
// (pre-export) and after (post-export) the batch exports are written.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Phase is the point in the export pipeline a hook runs at.
type Phase string

const (
	// PreExport runs before any export file is written. A failure cancels
	// the exports unless the hook says continue.
	PreExport Phase = "pre-export"
	// PostExport runs after every export was written. Failures are
	// reported but the exports stay.
	PostExport Phase = "post-export"
)

// On-error policies.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// DefaultTimeout bounds a hook without an explicit timeout.
const DefaultTimeout = 30 * time.Second

// ConfigDir and ConfigFile locate the hooks file inside a project.
const (
	ConfigDir  = ".polycheck"
	ConfigFile = "hooks.yaml"
)

// Hook is one configured command.
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"` // Run with sh -c
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"` // Values are ${VAR} expanded
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// Config is the parsed hooks file.
type Config struct {
	Hooks ByPhase `yaml:"hooks" json:"hooks"`
}

// ByPhase groups hooks by phase, in run order.
type ByPhase struct {
	PreExport  []Hook `yaml:"pre-export,omitempty" json:"pre-export,omitempty"`
	PostExport []Hook `yaml:"post-export,omitempty" json:"post-export,omitempty"`
}

// Phase returns the hooks of p, or nil for an unknown phase.
func (c *Config) Phase(p Phase) []Hook {
	if c == nil {
		return nil
	}
	switch p {
	case PreExport:
		return c.Hooks.PreExport
	case PostExport:
		return c.Hooks.PostExport
	}
	return nil
}

// Empty reports whether no hook is configured.
func (c *Config) Empty() bool {
	return c == nil || len(c.Hooks.PreExport)+len(c.Hooks.PostExport) == 0
}

// ExportContext describes the run to the hook through its environment.
type ExportContext struct {
	ExportPath   string    // POLYCHECK_EXPORT_PATH: primary output, may be empty
	ExportFormat string    // POLYCHECK_EXPORT_FORMAT: json, markdown, sqlite, html, png, svg or obj
	ScenePath    string    // POLYCHECK_SCENE
	ObjectCount  int       // POLYCHECK_OBJECT_COUNT: measured rows
	InvalidCount int       // POLYCHECK_INVALID_COUNT: rows over at least one limit
	Timestamp    time.Time // POLYCHECK_TIMESTAMP, RFC3339
}

// ToEnv returns the context as environment assignments.
func (c ExportContext) ToEnv() []string {
	return []string{
		"POLYCHECK_EXPORT_PATH=" + c.ExportPath,
		"POLYCHECK_EXPORT_FORMAT=" + c.ExportFormat,
		"POLYCHECK_SCENE=" + c.ScenePath,
		fmt.Sprintf("POLYCHECK_OBJECT_COUNT=%d", c.ObjectCount),
		fmt.Sprintf("POLYCHECK_INVALID_COUNT=%d", c.InvalidCount),
		"POLYCHECK_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// Load reads the hooks file of projectDir. A missing file is an empty
// config. Hooks without a command are dropped and reported as warnings.
func Load(projectDir string) (*Config, []string, error) {
	path := filepath.Join(projectDir, ConfigDir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil, nil
		}
		return nil, nil, fmt.Errorf("reading hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	var warnings []string
	cfg.Hooks.PreExport, warnings = normalize(cfg.Hooks.PreExport, PreExport, warnings)
	cfg.Hooks.PostExport, warnings = normalize(cfg.Hooks.PostExport, PostExport, warnings)
	return &cfg, warnings, nil
}

func normalize(hooks []Hook, phase Phase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i, h := range hooks {
		if strings.TrimSpace(h.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has no command; skipping", phase, i+1))
			continue
		}
		if h.Timeout <= 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case OnErrorFail, OnErrorContinue:
		case "":
			h.OnError = OnErrorContinue
			if phase == PreExport {
				h.OnError = OnErrorFail
			}
		default:
			warnings = append(warnings, fmt.Sprintf("%s hook %d: unknown on_error %q, using %s", phase, i+1, h.OnError, OnErrorFail))
			h.OnError = OnErrorFail
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, h)
	}
	return out, warnings
}

// UnmarshalYAML accepts timeouts as durations ("5s") or bare seconds (30).
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	type rawHook struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}
	var raw rawHook
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*h = Hook{Name: raw.Name, Command: raw.Command, Env: raw.Env, OnError: raw.OnError}

	if raw.Timeout == "" {
		return nil
	}
	d, err := time.ParseDuration(raw.Timeout)
	if err != nil {
		var seconds float64
		if _, scanErr := fmt.Sscanf(raw.Timeout, "%g", &seconds); scanErr != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
		}
		d = time.Duration(seconds * float64(time.Second))
	}
	h.Timeout = d
	return nil
}
