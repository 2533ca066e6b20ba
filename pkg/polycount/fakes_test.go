package polycount

import (
	"errors"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

type fakeProvider struct {
	counts  map[model.Entity]model.Counts
	missing map[model.Entity]bool
	calls   map[model.Entity]int
}

func newFakeProvider(counts map[model.Entity]model.Counts) *fakeProvider {
	return &fakeProvider{
		counts:  counts,
		missing: make(map[model.Entity]bool),
		calls:   make(map[model.Entity]int),
	}
}

func vertexProvider(vertices map[model.Entity]int) *fakeProvider {
	counts := make(map[model.Entity]model.Counts, len(vertices))
	for e, v := range vertices {
		counts[e] = model.Counts{Vertices: v}
	}
	return newFakeProvider(counts)
}

func (p *fakeProvider) Counts(e model.Entity) (model.Counts, error) {
	p.calls[e]++
	if p.missing[e] {
		return model.Counts{}, &model.EntityNotFoundError{Entity: e}
	}
	c, ok := p.counts[e]
	if !ok {
		return model.Counts{}, &model.EntityNotFoundError{Entity: e}
	}
	return c, nil
}

type fakeSelection struct {
	selected []model.Entity
	all      []model.Entity
	err      error
}

func (s *fakeSelection) SelectedEntities() ([]model.Entity, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.selected) > 0 {
		return s.selected, nil
	}
	return s.all, nil
}

type recordingBinder struct {
	bound       []model.Partition
	err         error
	tornDown    bool
	teardownErr error
}

func (b *recordingBinder) Bind(p model.Partition) error {
	if b.err != nil {
		return b.err
	}
	b.bound = append(b.bound, p)
	return nil
}

func (b *recordingBinder) Teardown() error {
	b.tornDown = true
	return b.teardownErr
}

type memPrefs struct {
	values   map[string]int
	writeErr error
	readErr  error
}

func newMemPrefs() *memPrefs {
	return &memPrefs{values: make(map[string]int)}
}

func (p *memPrefs) GetInt(key string) (int, bool, error) {
	if p.readErr != nil {
		return 0, false, p.readErr
	}
	v, ok := p.values[key]
	return v, ok, nil
}

func (p *memPrefs) SetInt(key string, value int) error {
	if p.writeErr != nil {
		return p.writeErr
	}
	p.values[key] = value
	return nil
}

var errDiskFull = errors.New("disk full")

func entities(names ...string) []model.Entity {
	out := make([]model.Entity, len(names))
	for i, n := range names {
		out[i] = model.Entity(n)
	}
	return out
}
