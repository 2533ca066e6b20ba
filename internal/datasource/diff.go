package datasource

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/scene"
)

// SceneDiff describes what changed between two loads of a scene.
type SceneDiff struct {
	// Added lists meshes present only in the new load
	Added []string `json:"added,omitempty"`
	// Removed lists meshes present only in the old load
	Removed []string `json:"removed,omitempty"`
	// Changed lists meshes whose counts differ
	Changed []CountDifference `json:"changed,omitempty"`
}

// CountDifference is a mesh whose topology changed between loads
type CountDifference struct {
	Name   string       `json:"name"`
	Before model.Counts `json:"before"`
	After  model.Counts `json:"after"`
}

// HasChanges returns true if anything was added, removed or changed
func (d SceneDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Summary returns a one-line description for status bars.
func (d SceneDiff) Summary() string {
	if !d.HasChanges() {
		return "no mesh changes"
	}
	var parts []string
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(d.Changed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", n))
	}
	return strings.Join(parts, ", ")
}

// DiffMeshes compares two loads by mesh name. Order follows after for
// added and changed meshes and before for removed ones.
func DiffMeshes(before, after []*scene.Mesh) SceneDiff {
	old := make(map[string]model.Counts, len(before))
	for _, m := range before {
		old[m.Name] = m.Counts()
	}
	seen := make(map[string]bool, len(after))

	var d SceneDiff
	for _, m := range after {
		seen[m.Name] = true
		prev, ok := old[m.Name]
		if !ok {
			d.Added = append(d.Added, m.Name)
			continue
		}
		if now := m.Counts(); now != prev {
			d.Changed = append(d.Changed, CountDifference{Name: m.Name, Before: prev, After: now})
		}
	}
	for _, m := range before {
		if !seen[m.Name] {
			d.Removed = append(d.Removed, m.Name)
		}
	}
	return d
}
