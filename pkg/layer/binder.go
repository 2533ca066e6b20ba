package layer

import (
	"fmt"

	"github.com/vanderheijden86/polycheck/pkg/debug"
	"github.com/vanderheijden86/polycheck/pkg/model"
)

// Names of the visualization layer and its parts.
const (
	VisualizationLayerName = "PolyCountVisualisation"
	ValidCollectionName    = "valid"
	InvalidCollectionName  = "invalid"
	ValidOverrideName      = "valid_obj_mat"
	InvalidOverrideName    = "invalid_obj_mat"
	ValidShaderName        = "green_shader"
	InvalidShaderName      = "red_shader"
)

// Sink renders the bound layer somewhere, for example to an image or a
// scene file.
type Sink interface {
	Render(l *Layer, p model.Partition) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(l *Layer, p model.Partition) error

// Render calls f(l, p).
func (f SinkFunc) Render(l *Layer, p model.Partition) error {
	return f(l, p)
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithSinks adds render sinks run after every successful bind.
func WithSinks(sinks ...Sink) BinderOption {
	return func(b *Binder) {
		b.sinks = append(b.sinks, sinks...)
	}
}

// WithLayerName overrides the visualization layer name.
func WithLayerName(name string) BinderOption {
	return func(b *Binder) {
		b.layerName = name
	}
}

// Binder tags a partition onto the visualization layer: valid entities go to
// the green collection, invalid ones to the red collection.
type Binder struct {
	setup     *RenderSetup
	layerName string
	sinks     []Sink
}

// NewBinder creates the visualization layer in setup with its two
// collections, material overrides and shaders.
func NewBinder(setup *RenderSetup, opts ...BinderOption) (*Binder, error) {
	b := &Binder{setup: setup, layerName: VisualizationLayerName}
	for _, opt := range opts {
		opt(b)
	}

	l, err := setup.CreateLayer(b.layerName)
	if err != nil {
		return nil, fmt.Errorf("creating visualization layer: %w", err)
	}
	parts := []struct {
		collection, override, shader string
		color                        [3]float64
	}{
		{ValidCollectionName, ValidOverrideName, ValidShaderName, [3]float64{0, 1, 0}},
		{InvalidCollectionName, InvalidOverrideName, InvalidShaderName, [3]float64{1, 0, 0}},
	}
	for _, p := range parts {
		c, err := l.CreateCollection(p.collection)
		if err != nil {
			return nil, err
		}
		c.Override = &MaterialOverride{
			Name:   p.override,
			Shader: &Shader{Name: p.shader, Color: p.color},
		}
	}
	return b, nil
}

// AddSink registers another sink.
func (b *Binder) AddSink(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Setup returns the render setup the binder works on.
func (b *Binder) Setup() *RenderSetup {
	return b.setup
}

// Layer returns the visualization layer, if it still exists.
func (b *Binder) Layer() (*Layer, bool) {
	return b.setup.Layer(b.layerName)
}

// Bind replaces both collection selectors with the partition and makes the
// layer visible, then runs the sinks. If the layer was detached or deleted
// the error wraps model.ErrBinderUnavailable and nothing changes. A failing
// sink leaves the layer bound and the error wraps model.ErrSinkFailed.
func (b *Binder) Bind(p model.Partition) error {
	l, ok := b.setup.Layer(b.layerName)
	if !ok || !l.Attached() {
		return fmt.Errorf("layer %s: %w", b.layerName, model.ErrBinderUnavailable)
	}
	valid, vok := l.Collection(ValidCollectionName)
	invalid, iok := l.Collection(InvalidCollectionName)
	if !vok || !iok {
		return fmt.Errorf("layer %s is missing its collections: %w", b.layerName, model.ErrBinderUnavailable)
	}

	valid.SetMembers(p.Valid)
	invalid.SetMembers(p.Invalid)
	if err := b.setup.SwitchToLayer(b.layerName); err != nil {
		return fmt.Errorf("%w: %v", model.ErrBinderUnavailable, err)
	}
	debug.Log("bind %s: %d valid, %d invalid", p.Metric, len(p.Valid), len(p.Invalid))

	for _, s := range b.sinks {
		if err := s.Render(l, p); err != nil {
			return fmt.Errorf("%w: %w", model.ErrSinkFailed, err)
		}
	}
	return nil
}

// Teardown switches back to the default layer and removes the
// visualization layer. A layer that is already gone is not an error.
func (b *Binder) Teardown() error {
	if err := b.setup.SwitchToLayer(DefaultLayerName); err != nil {
		return err
	}
	if _, ok := b.setup.Layer(b.layerName); !ok {
		return nil
	}
	if err := b.setup.DetachLayer(b.layerName); err != nil {
		return err
	}
	return b.setup.DeleteLayer(b.layerName)
}
