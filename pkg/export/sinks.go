package export

import (
	"github.com/vanderheijden86/polycheck/pkg/layer"
	"github.com/vanderheijden86/polycheck/pkg/model"
)

// EntityLister lists every entity of a scene in order.
type EntityLister interface {
	Entities() []model.Entity
}

// SnapshotSink renders a snapshot of every bound layer to path.
func SnapshotSink(path string, meshes MeshLookup, view View) layer.Sink {
	return layer.SinkFunc(func(l *layer.Layer, p model.Partition) error {
		return SaveSnapshot(SnapshotOptions{
			Path:      path,
			View:      view,
			Meshes:    meshes,
			Layer:     l,
			Partition: p,
		})
	})
}

// OverrideSink writes the override scene of every bound layer to path. When
// meshes also lists its entities the whole scene is written, otherwise only
// the classified entities.
func OverrideSink(path string, meshes MeshLookup) layer.Sink {
	return layer.SinkFunc(func(l *layer.Layer, p model.Partition) error {
		var entities []model.Entity
		if lister, ok := meshes.(EntityLister); ok {
			entities = lister.Entities()
		} else {
			entities = append(append(entities, p.Valid...), p.Invalid...)
		}
		return WriteOverrideOBJ(OverrideOptions{
			Path:     path,
			Meshes:   meshes,
			Entities: entities,
			Layer:    l,
		})
	})
}
