// Package layer models a render setup: named render layers made of
// collections, each collection selecting objects by a name pattern and
// optionally overriding their material. The poly-count visualization binds
// a partition to such a layer.
package layer

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

// DefaultLayerName is the layer every render setup starts with.
const DefaultLayerName = "defaultRenderLayer"

// Errors returned by RenderSetup.
var (
	ErrLayerNotFound = errors.New("render layer not found")
	ErrLayerExists   = errors.New("render layer already exists")
	ErrLayerAttached = errors.New("render layer is still attached")
)

// Shader is a flat-colour surface shader. Color channels are 0..1.
type Shader struct {
	Name  string
	Color [3]float64
}

// RGBA converts the shader colour for image output.
func (s *Shader) RGBA() color.RGBA {
	ch := func(v float64) uint8 {
		return uint8(min(max(v, 0), 1)*255 + 0.5)
	}
	return color.RGBA{R: ch(s.Color[0]), G: ch(s.Color[1]), B: ch(s.Color[2]), A: 0xff}
}

// Hex returns the colour as #rrggbb.
func (s *Shader) Hex() string {
	c := s.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MaterialOverride replaces the material of every object in its collection.
type MaterialOverride struct {
	Name   string
	Shader *Shader
}

// Collection selects objects by name. Names are opaque and may contain
// spaces.
type Collection struct {
	Name     string
	Override *MaterialOverride
	members  []model.Entity
}

// SetMembers sets the selector to exactly es.
func (c *Collection) SetMembers(es []model.Entity) {
	c.members = slices.Clone(es)
}

// Members returns the selected names in the order they were set.
func (c *Collection) Members() []model.Entity {
	return slices.Clone(c.members)
}

// Selects reports whether e matches the selector.
func (c *Collection) Selects(e model.Entity) bool {
	return slices.Contains(c.members, e)
}

// Pattern renders the selector for display. Names containing whitespace
// are quoted.
func (c *Collection) Pattern() string {
	parts := make([]string, len(c.members))
	for i, e := range c.members {
		s := string(e)
		if strings.ContainsAny(s, " \t\"") {
			s = strconv.Quote(s)
		}
		parts[i] = s
	}
	return strings.Join(parts, " ")
}

// Layer is a render layer. A detached layer still exists but can no longer
// be made visible.
type Layer struct {
	ID          uuid.UUID
	Name        string
	collections []*Collection
	attached    bool
}

// CreateCollection appends a new, empty collection.
func (l *Layer) CreateCollection(name string) (*Collection, error) {
	if _, ok := l.Collection(name); ok {
		return nil, fmt.Errorf("collection %q already exists in %s", name, l.Name)
	}
	c := &Collection{Name: name}
	l.collections = append(l.collections, c)
	return c, nil
}

// Collection returns the collection called name.
func (l *Layer) Collection(name string) (*Collection, bool) {
	for _, c := range l.collections {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Collections returns the collections in creation order.
func (l *Layer) Collections() []*Collection {
	return slices.Clone(l.collections)
}

// Attached reports whether the layer is still part of the render setup.
func (l *Layer) Attached() bool {
	return l.attached
}

// ShaderFor returns the override shader the layer applies to e, or nil when
// no collection with an override selects it. The first matching collection
// wins.
func (l *Layer) ShaderFor(e model.Entity) *Shader {
	for _, c := range l.collections {
		if c.Override != nil && c.Selects(e) {
			return c.Override.Shader
		}
	}
	return nil
}

// RenderSetup owns the layers and tracks which one is visible.
type RenderSetup struct {
	layers  []*Layer
	visible string
}

// NewRenderSetup returns a setup holding only the default layer, visible.
func NewRenderSetup() *RenderSetup {
	rs := &RenderSetup{}
	rs.layers = append(rs.layers, &Layer{ID: uuid.New(), Name: DefaultLayerName, attached: true})
	rs.visible = DefaultLayerName
	return rs
}

// CreateLayer adds an attached layer.
func (rs *RenderSetup) CreateLayer(name string) (*Layer, error) {
	if _, ok := rs.Layer(name); ok {
		return nil, fmt.Errorf("%s: %w", name, ErrLayerExists)
	}
	l := &Layer{ID: uuid.New(), Name: name, attached: true}
	rs.layers = append(rs.layers, l)
	return l, nil
}

// Layer returns the layer called name.
func (rs *RenderSetup) Layer(name string) (*Layer, bool) {
	for _, l := range rs.layers {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}

// Layers returns every layer, the default first.
func (rs *RenderSetup) Layers() []*Layer {
	return slices.Clone(rs.layers)
}

// SwitchToLayer makes name the visible layer.
func (rs *RenderSetup) SwitchToLayer(name string) error {
	l, ok := rs.Layer(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrLayerNotFound)
	}
	if !l.attached {
		return fmt.Errorf("%s is detached: %w", name, ErrLayerNotFound)
	}
	rs.visible = name
	return nil
}

// VisibleLayer returns the visible layer.
func (rs *RenderSetup) VisibleLayer() *Layer {
	l, _ := rs.Layer(rs.visible)
	return l
}

// DetachLayer detaches name. A visible layer falls back to the default.
func (rs *RenderSetup) DetachLayer(name string) error {
	if name == DefaultLayerName {
		return fmt.Errorf("cannot detach %s", DefaultLayerName)
	}
	l, ok := rs.Layer(name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrLayerNotFound)
	}
	l.attached = false
	if rs.visible == name {
		rs.visible = DefaultLayerName
	}
	return nil
}

// DeleteLayer removes a detached layer.
func (rs *RenderSetup) DeleteLayer(name string) error {
	i := slices.IndexFunc(rs.layers, func(l *Layer) bool { return l.Name == name })
	if i < 0 {
		return fmt.Errorf("%s: %w", name, ErrLayerNotFound)
	}
	if rs.layers[i].attached {
		return fmt.Errorf("%s: %w", name, ErrLayerAttached)
	}
	rs.layers = slices.Delete(rs.layers, i, i+1)
	return nil
}
