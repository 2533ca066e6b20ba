package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vanderheijden86/polycheck/pkg/debug"
)

// maxSummaryOutput caps hook output quoted in Summary.
const maxSummaryOutput = 200

// Result is the outcome of one hook run.
type Result struct {
	Hook     Hook
	Phase    Phase
	Success  bool
	Stdout   string // Trimmed
	Stderr   string // Trimmed
	Duration time.Duration
	Error    error
}

// Executor runs the hooks of a Config with one ExportContext.
type Executor struct {
	config  *Config
	ctx     ExportContext
	results []Result
}

// NewExecutor creates an executor.
func NewExecutor(cfg *Config, ctx ExportContext) *Executor {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Executor{config: cfg, ctx: ctx}
}

// SetContext replaces the export context, for post-export hooks that
// should see the final counts.
func (e *Executor) SetContext(ctx ExportContext) {
	e.ctx = ctx
}

// RunPreExport runs the pre-export hooks in order and stops at the first
// failing hook whose policy is fail.
func (e *Executor) RunPreExport() error {
	for _, h := range e.config.Phase(PreExport) {
		r := e.run(h, PreExport)
		if !r.Success && h.OnError == OnErrorFail {
			return fmt.Errorf("pre-export hook %q failed: %w", h.Name, r.Error)
		}
	}
	return nil
}

// RunPostExport runs every post-export hook. Failures whose policy is fail
// are returned joined after all hooks ran.
func (e *Executor) RunPostExport() error {
	var errs []error
	for _, h := range e.config.Phase(PostExport) {
		r := e.run(h, PostExport)
		if !r.Success && h.OnError == OnErrorFail {
			errs = append(errs, fmt.Errorf("post-export hook %q failed: %w", h.Name, r.Error))
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) run(h Hook, phase Phase) Result {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Env = append(os.Environ(), e.ctx.ToEnv()...)
	for k, v := range h.Env {
		cmd.Env = append(cmd.Env, k+"="+os.ExpandEnv(v))
	}
	// Let sleeping children go when the shell is killed on timeout.
	cmd.WaitDelay = 100 * time.Millisecond
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r := Result{
		Hook:     h,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
		Error:    err,
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.Success = false
		r.Error = fmt.Errorf("timed out after %s", timeout)
	}
	debug.Log("hook %s (%s): success=%v in %s", h.Name, phase, r.Success, r.Duration)
	e.results = append(e.results, r)
	return r
}

// Results returns the results of every hook run so far.
func (e *Executor) Results() []Result {
	return e.results
}

// Summary describes the runs for the terminal, or "" when nothing ran.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	var b strings.Builder
	for _, r := range e.results {
		if r.Success {
			ok++
			continue
		}
		failed++
		fmt.Fprintf(&b, "  %s (%s): %v\n", r.Hook.Name, r.Phase, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&b, "    stderr: %s\n", truncate(r.Stderr, maxSummaryOutput))
		}
	}
	return fmt.Sprintf("Hooks: %d succeeded, %d failed\n", ok, failed) + b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// RunHooks loads the hooks of projectDir and returns an executor for them,
// or nil when hooks are disabled or none are configured.
func RunHooks(projectDir string, ctx ExportContext, disabled bool) (*Executor, []string, error) {
	if disabled {
		return nil, nil, nil
	}
	cfg, warnings, err := Load(projectDir)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Empty() {
		return nil, warnings, nil
	}
	return NewExecutor(cfg, ctx), warnings, nil
}
