package scene

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

// Extensions lists the file extensions LoadFile understands.
var Extensions = []string{".obj", ".stl"}

// Supported reports whether path has a mesh extension LoadFile can read.
func Supported(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// LoadFile reads a mesh file, choosing the reader by extension.
func LoadFile(path string, opts ParseOptions) ([]*Mesh, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return LoadOBJ(path, opts)
	case ".stl":
		return LoadSTL(path, opts)
	default:
		return nil, fmt.Errorf("unsupported mesh file %s", path)
	}
}

type entry struct {
	mesh   *Mesh
	counts model.Counts
}

// Scene is a set of uniquely named meshes plus an ordered selection. It is
// safe for concurrent use; reloads from a watcher may race with queries.
type Scene struct {
	mu       sync.RWMutex
	entries  map[model.Entity]entry
	order    []model.Entity
	selected []model.Entity
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{entries: make(map[model.Entity]entry)}
}

// Add inserts meshes and returns the entity assigned to each. A name that is
// already taken gets a numeric suffix, the way DCC tools rename duplicates.
func (s *Scene) Add(meshes ...*Mesh) []model.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Entity, len(meshes))
	for i, m := range meshes {
		out[i] = s.addLocked(m)
	}
	return out
}

func (s *Scene) addLocked(m *Mesh) model.Entity {
	name := m.Name
	if name == "" {
		name = "mesh"
	}
	e := model.Entity(name)
	for n := 1; ; n++ {
		if _, taken := s.entries[e]; !taken {
			break
		}
		e = model.Entity(fmt.Sprintf("%s%d", name, n))
	}
	m.Name = string(e)
	s.entries[e] = entry{mesh: m, counts: m.Counts()}
	s.order = append(s.order, e)
	return e
}

// Replace swaps the scene contents for meshes. Selected entities that still
// exist stay selected.
func (s *Scene) Replace(meshes []*Mesh) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[model.Entity]entry, len(meshes))
	s.order = s.order[:0]
	for _, m := range meshes {
		s.addLocked(m)
	}
	kept := s.selected[:0]
	for _, e := range s.selected {
		if _, ok := s.entries[e]; ok {
			kept = append(kept, e)
		}
	}
	s.selected = kept
}

// Remove deletes an entity. Removing an unknown entity is an error.
func (s *Scene) Remove(e model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e]; !ok {
		return &model.EntityNotFoundError{Entity: e}
	}
	delete(s.entries, e)
	s.order = slices.DeleteFunc(s.order, func(x model.Entity) bool { return x == e })
	s.selected = slices.DeleteFunc(s.selected, func(x model.Entity) bool { return x == e })
	return nil
}

// Mesh returns the mesh behind e.
func (s *Scene) Mesh(e model.Entity) (*Mesh, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	en, ok := s.entries[e]
	return en.mesh, ok
}

// Counts returns e's topology counts, or *model.EntityNotFoundError.
func (s *Scene) Counts(e model.Entity) (model.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	en, ok := s.entries[e]
	if !ok {
		return model.Counts{}, &model.EntityNotFoundError{Entity: e}
	}
	return en.counts, nil
}

// Entities returns every entity in insertion order.
func (s *Scene) Entities() []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Len returns the number of meshes.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Select replaces the selection. Unknown entities are rejected and the
// selection is left unchanged.
func (s *Scene) Select(es ...model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range es {
		if _, ok := s.entries[e]; !ok {
			return &model.EntityNotFoundError{Entity: e}
		}
	}
	s.selected = s.selected[:0]
	for _, e := range es {
		if !slices.Contains(s.selected, e) {
			s.selected = append(s.selected, e)
		}
	}
	return nil
}

// Toggle adds e to the selection, or removes it if already selected.
func (s *Scene) Toggle(e model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e]; !ok {
		return &model.EntityNotFoundError{Entity: e}
	}
	if i := slices.Index(s.selected, e); i >= 0 {
		s.selected = slices.Delete(s.selected, i, i+1)
		return nil
	}
	s.selected = append(s.selected, e)
	return nil
}

// ClearSelection deselects everything.
func (s *Scene) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}

// Selected returns the explicit selection, which may be empty.
func (s *Scene) Selected() []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selected)
}

// IsSelected reports whether e is explicitly selected.
func (s *Scene) IsSelected(e model.Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.selected, e)
}

// SelectedEntities returns the selection, or every entity when nothing is
// selected.
func (s *Scene) SelectedEntities() ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.selected) > 0 {
		return slices.Clone(s.selected), nil
	}
	return slices.Clone(s.order), nil
}
