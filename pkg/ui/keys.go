package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

// KeyMap holds the table-mode bindings. Limit fields handle their own keys.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Top       key.Binding
	Bottom    key.Binding
	Refresh   key.Binding
	Vertex    key.Binding
	Edge      key.Binding
	Triangles key.Binding
	Quads     key.Binding
	Fields    key.Binding
	Toggle    key.Binding
	Clear     key.Binding
	Copy      key.Binding
	Report    key.Binding
	Snapshot  key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Top:       key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:    key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Vertex:    key.NewBinding(key.WithKeys("1", "v"), key.WithHelp("1/v", "show vertex")),
		Edge:      key.NewBinding(key.WithKeys("2", "e"), key.WithHelp("2/e", "show edge")),
		Triangles: key.NewBinding(key.WithKeys("3", "t"), key.WithHelp("3/t", "show triangles")),
		Quads:     key.NewBinding(key.WithKeys("4", "q"), key.WithHelp("4/q", "show quads")),
		Fields:    key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "edit limits")),
		Toggle:    key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "select object")),
		Clear:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear selection")),
		Copy:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy invalid")),
		Report:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "report")),
		Snapshot:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "snapshot")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c", "Q"), key.WithHelp("Q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Vertex, k.Edge, k.Triangles, k.Quads, k.Fields, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Refresh, k.Toggle, k.Clear, k.Fields},
		{k.Vertex, k.Edge, k.Triangles, k.Quads},
		{k.Copy, k.Report, k.Snapshot, k.Help, k.Quit},
	}
}

// visualizeMetric maps a key to the metric it shows.
func (k KeyMap) visualizeMetric(msg tea.KeyMsg) (model.MetricKind, bool) {
	switch {
	case key.Matches(msg, k.Vertex):
		return model.MetricVertex, true
	case key.Matches(msg, k.Edge):
		return model.MetricEdge, true
	case key.Matches(msg, k.Triangles):
		return model.MetricTriangle, true
	case key.Matches(msg, k.Quads):
		return model.MetricQuad, true
	}
	return 0, false
}
