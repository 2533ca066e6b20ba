// Package prefs persists small integer preferences, such as the four
// poly-count limits, across sessions.
package prefs

import (
	"fmt"

	"github.com/vanderheijden86/polycheck/pkg/config"
)

// Store is an integer key-value store.
type Store interface {
	// GetInt returns the value under key; ok is false when the key is unset.
	GetInt(key string) (value int, ok bool, err error)
	// SetInt stores value under key.
	SetInt(key string, value int) error
	// Close releases the store.
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case config.PrefsBackendMemory:
		return NewMemoryStore(), nil
	case config.PrefsBackendYAML, "":
		return OpenFileStore(path)
	case config.PrefsBackendSQLite:
		return OpenSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown prefs backend %q", backend)
	}
}

// OpenFromConfig opens the store cfg selects.
func OpenFromConfig(cfg config.Config) (Store, error) {
	return Open(cfg.Prefs.Backend, cfg.PrefsPath())
}
