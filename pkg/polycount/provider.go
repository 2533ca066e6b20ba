// Package polycount is the poly-count evaluation and threshold
// classification core. A Table holds one measurement per entity, a
// Classifier splits the table into valid and invalid entities per metric,
// and a Controller owns both together with the collaborators that supply
// counts, selections, preferences and visualization.
//
// The package is single-threaded: callers serialize access, as the TUI
// does by calling the controller from its Update loop.
package polycount

import "github.com/vanderheijden86/polycheck/pkg/model"

// MetricsProvider returns the topology counts of an entity. It returns an
// error matching model.ErrEntityNotFound when the entity no longer exists.
type MetricsProvider interface {
	Counts(entity model.Entity) (model.Counts, error)
}

// SelectionSource lists the entities to measure: the current selection, or
// every geometry entity when nothing is selected.
type SelectionSource interface {
	SelectedEntities() ([]model.Entity, error)
}

// Binder receives one metric's full partition and tags its members for
// display. Implementations replace any prior tagging.
type Binder interface {
	Bind(p model.Partition) error
}

// PreferenceStore is the integer key-value store that keeps the limits
// between sessions.
type PreferenceStore interface {
	GetInt(key string) (value int, ok bool, err error)
	SetInt(key string, value int) error
}

// ProviderFunc adapts a function to MetricsProvider.
type ProviderFunc func(entity model.Entity) (model.Counts, error)

// Counts calls f(entity).
func (f ProviderFunc) Counts(entity model.Entity) (model.Counts, error) {
	return f(entity)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(p model.Partition) error

// Bind calls f(p).
func (f BinderFunc) Bind(p model.Partition) error {
	return f(p)
}
