// Package watcher signals changes to a scene path, either a single mesh file
// or a directory of them. It uses fsnotify where it can and falls back to
// polling on network filesystems or when POLYCHECK_FORCE_POLL is set.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/polycheck/internal/datasource"
	"github.com/vanderheijden86/polycheck/pkg/debug"
	"github.com/vanderheijden86/polycheck/pkg/scene"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched scene path was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked when the scene changes.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// WithExtensions limits a directory watch to these mesh extensions.
func WithExtensions(exts ...string) WatcherOption {
	return func(w *Watcher) {
		w.extensions = nil
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extensions = append(w.extensions, ext)
		}
	}
}

// WithRecursive also watches subdirectories of a directory scene.
func WithRecursive(recursive bool) WatcherOption {
	return func(w *Watcher) {
		w.recursive = recursive
	}
}

// fileState is what polling compares between ticks.
type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a scene path for mesh changes.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool
	forcePollEnv     bool
	fsType           FilesystemType
	extensions       []string
	recursive        bool

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	isDir       bool
	existed     bool
	lastState   map[string]fileState

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// NewWatcher creates a watcher for a mesh file or directory.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		extensions:       scene.Extensions,
		changeCh:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)

	return w, nil
}

// Start begins watching the scene path for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	// Reset per-start state.
	w.useFallback = false
	w.forcePollEnv = false
	w.fsType = FSTypeUnknown

	if envBool("POLYCHECK_FORCE_POLLING") || envBool("POLYCHECK_FORCE_POLL") {
		w.forcePollEnv = true
	}

	w.fsType = DetectFilesystemType(w.path)
	if isRemoteFilesystem(w.fsType) {
		w.useFallback = true
	}

	forcePoll := w.forcePoll || w.forcePollEnv
	if forcePoll {
		w.useFallback = true
	}

	// Get initial state
	info, err := os.Stat(w.path)
	if err != nil {
		if os.IsPermission(err) {
			return ErrPermission
		}
		// The path might not exist yet, that's okay
		w.isDir = false
		w.existed = false
		w.lastState = nil
	} else {
		w.isDir = info.IsDir()
		w.existed = true
		w.lastState, _ = w.scanLocked()
	}

	// Try to use fsnotify
	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			if err := w.addWatches(fsw); err != nil {
				fsw.Close()
				w.useFallback = true
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify()
			}
		} else {
			w.useFallback = true
		}
	}

	// Start polling as fallback or primary
	if w.useFallback {
		go w.watchPolling()
	}
	debug.Log("watcher: %s (dir=%v, polling=%v, fs=%s)", w.path, w.isDir, w.useFallback, w.fsType)

	w.started = true
	return nil
}

// addWatches registers the directories to watch. A file scene watches its
// parent so atomic saves (write temp, rename) are seen.
func (w *Watcher) addWatches(fsw *fsnotify.Watcher) error {
	if !w.isDir {
		return fsw.Add(filepath.Dir(w.path))
	}
	if !w.recursive {
		return fsw.Add(w.path)
	}
	return filepath.WalkDir(w.path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
}

// Stop stops watching.
// Note: The changeCh channel is intentionally NOT closed here. Closing it would
// race with notifyChange() and wake a UI command blocked on Changed().
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives when the scene changes.
// This is an alternative to using the OnChange callback.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the watched scene path.
func (w *Watcher) Path() string {
	return w.path
}

// FilesystemType returns the best-effort filesystem classification for the watched path.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// relevant reports whether an event on name concerns the scene.
func (w *Watcher) relevant(name string) bool {
	if !w.isDir {
		return filepath.Base(name) == filepath.Base(w.path)
	}
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(name)))
}

// watchFsnotify monitors using fsnotify events.
func (w *Watcher) watchFsnotify() {
	// Capture channel references to avoid race with Stop() setting fsWatcher to nil
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	fsw := w.fsWatcher
	events := fsw.Events
	errs := fsw.Errors
	w.mu.RUnlock()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}

			if w.isDir && filepath.Clean(event.Name) == w.path && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.onError(ErrFileRemoved)
				continue
			}

			// New subdirectories of a recursive scene join the watch.
			if w.isDir && w.recursive && event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fsw.Add(event.Name)
					continue
				}
			}

			if !w.relevant(event.Name) {
				continue
			}

			switch {
			case !w.isDir && event.Op&fsnotify.Remove != 0:
				w.onError(ErrFileRemoved)

			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0:
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// scanLocked lists the mesh files of the scene with their mtime and size.
func (w *Watcher) scanLocked() (map[string]fileState, error) {
	sources, err := datasource.DiscoverSources(datasource.DiscoveryOptions{
		Root:       w.path,
		Extensions: w.extensions,
		Recursive:  w.recursive,
	})
	if err != nil {
		return nil, err
	}
	state := make(map[string]fileState, len(sources))
	for _, s := range sources {
		state[s.Path] = fileState{mtime: s.ModTime, size: s.Size}
	}
	return state, nil
}

func sameState(a, b map[string]fileState) bool {
	if len(a) != len(b) {
		return false
	}
	for path, sa := range a {
		sb, ok := b[path]
		if !ok || !sa.mtime.Equal(sb.mtime) || sa.size != sb.size {
			return false
		}
	}
	return true
}

// watchPolling monitors using periodic scans.
func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.RLock()
			state, err := w.scanLocked()
			w.mu.RUnlock()
			if err != nil {
				switch {
				case errors.Is(err, fs.ErrNotExist):
					// Only report if the path existed before
					w.mu.RLock()
					hadPath := w.existed
					w.mu.RUnlock()
					if hadPath {
						w.onError(ErrFileRemoved)
					}
				case errors.Is(err, fs.ErrPermission):
					w.onError(ErrPermission)
				default:
					w.onError(err)
				}
				continue
			}

			w.mu.Lock()
			changed := !sameState(state, w.lastState)
			if changed {
				w.lastState = state
			}
			w.existed = true
			w.mu.Unlock()

			if changed {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()

	// Don't notify after Stop(). Best-effort; callbacks are idempotent.
	if !started {
		return
	}

	w.onChange()

	// Non-blocking send to change channel
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
