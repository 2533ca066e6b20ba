package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/polycheck/internal/datasource"
	"github.com/vanderheijden86/polycheck/pkg/debug"
	"github.com/vanderheijden86/polycheck/pkg/export"
	"github.com/vanderheijden86/polycheck/pkg/layer"
	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
	"github.com/vanderheijden86/polycheck/pkg/scene"
	"github.com/vanderheijden86/polycheck/pkg/watcher"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	// Lines used by header, limit fields, column header, totals, status and help.
	chromeHeight = 8
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// FileChangedMsg is sent when a mesh under the scene path changes on disk
type FileChangedMsg struct{}

// SceneReloadedMsg carries the result of re-reading the scene path.
type SceneReloadedMsg struct {
	Result *datasource.LoadResult
	Err    error
}

// WatchFileCmd returns a command that waits for file changes and sends FileChangedMsg
func WatchFileCmd(w *watcher.Watcher) tea.Cmd {
	return func() tea.Msg {
		<-w.Changed()
		return FileChangedMsg{}
	}
}

// ReloadSceneCmd parses the scene path again off the UI goroutine.
func ReloadSceneCmd(l *datasource.Loader) tea.Cmd {
	return func() tea.Msg {
		res, err := l.Load(context.Background())
		return SceneReloadedMsg{Result: res, Err: err}
	}
}

// Config wires the model to the objects main owns.
type Config struct {
	Controller *polycount.Controller
	Scene      *scene.Scene
	// Binder is optional; snapshots use its layer colours when set.
	Binder *layer.Binder
	// Loader and Watcher are optional; together they enable live reload.
	Loader  *datasource.Loader
	Watcher *watcher.Watcher
	// SnapshotPath is where "s" writes; empty uses polycheck-<metric>.svg.
	SnapshotPath string
	ShowReport   bool
	Title        string
}

// Model is the poly count checker window: four limit fields, the
// measurement table and an optional Markdown report pane.
type Model struct {
	ctrl    *polycount.Controller
	scene   *scene.Scene
	binder  *layer.Binder
	loader  *datasource.Loader
	watcher *watcher.Watcher

	keys  KeyMap
	help  help.Model
	theme Theme

	fields  [model.NumMetrics]textinput.Model
	focused int // index into fields, -1 when the table has focus

	cursor int
	offset int

	report     viewport.Model
	showReport bool
	mdRenderer *glamour.TermRenderer
	mdWidth    int

	snapshotPath string
	title        string

	width  int
	height int

	statusMsg     string
	statusIsError bool
}

// NewModel creates the model. The controller should already hold the
// stored limits; the table may be empty.
func NewModel(cfg Config) Model {
	theme := DefaultTheme(lipgloss.DefaultRenderer())
	title := cfg.Title
	if title == "" {
		title = "Poly Count Checker"
	}

	m := Model{
		ctrl:         cfg.Controller,
		scene:        cfg.Scene,
		binder:       cfg.Binder,
		loader:       cfg.Loader,
		watcher:      cfg.Watcher,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		theme:        theme,
		focused:      -1,
		report:       viewport.New(defaultWidth, defaultHeight-chromeHeight),
		showReport:   cfg.ShowReport,
		snapshotPath: cfg.SnapshotPath,
		title:        title,
		width:        defaultWidth,
		height:       defaultHeight,
	}
	for _, mk := range model.AllMetrics() {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 10
		ti.Width = 8
		ti.Placeholder = "0"
		ti.SetValue(itoa(m.ctrl.Threshold(mk)))
		m.fields[mk] = ti
	}
	if m.showReport {
		m.renderReport()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.watcher != nil {
		return WatchFileCmd(m.watcher)
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	defer metrics.Timer(metrics.UIRender)()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeReport()
		m.clampCursor()
		return m, nil

	case FileChangedMsg:
		if m.loader == nil {
			m.refresh("Scene changed")
			return m, m.rearmWatch()
		}
		m.setStatus("Scene changed, reloading…", false)
		return m, ReloadSceneCmd(m.loader)

	case SceneReloadedMsg:
		m.applyReload(msg)
		return m, m.rearmWatch()

	case tea.KeyMsg:
		if m.focused >= 0 {
			return m.handleFieldKey(msg)
		}
		return m.handleTableKey(msg)
	}
	return m, nil
}

func (m Model) rearmWatch() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	return WatchFileCmd(m.watcher)
}

func (m *Model) applyReload(msg SceneReloadedMsg) {
	if msg.Err != nil {
		m.setStatus(fmt.Sprintf("Reload error: %v", msg.Err), true)
		return
	}
	before := make([]*scene.Mesh, 0, m.scene.Len())
	for _, e := range m.scene.Entities() {
		if mesh, ok := m.scene.Mesh(e); ok {
			before = append(before, mesh)
		}
	}
	m.scene.Replace(msg.Result.Meshes)
	diff := datasource.DiffMeshes(before, msg.Result.Meshes)
	debug.Log("ui reload: %s", diff.Summary())

	prefix := "Reloaded: " + diff.Summary()
	if failed := msg.Result.Failed(); len(failed) > 0 {
		prefix += fmt.Sprintf(" (%d files unreadable)", len(failed))
	}
	m.refresh(prefix)
}

func (m Model) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if mk, ok := m.keys.visualizeMetric(msg); ok {
		m.visualize(mk)
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		m.cursor--
		m.clampCursor()
	case key.Matches(msg, m.keys.Down):
		m.cursor++
		m.clampCursor()
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
		m.clampCursor()
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = m.ctrl.Table().Len() - 1
		m.clampCursor()
	case key.Matches(msg, m.keys.Refresh):
		m.refresh("")
	case key.Matches(msg, m.keys.Fields):
		if msg.String() == "shift+tab" {
			return m, m.focusField(model.NumMetrics - 1)
		}
		return m, m.focusField(0)
	case key.Matches(msg, m.keys.Toggle):
		m.toggleCurrent()
	case key.Matches(msg, m.keys.Clear):
		m.scene.ClearSelection()
		m.setStatus("Selection cleared; refresh measures all objects", false)
	case key.Matches(msg, m.keys.Copy):
		m.copyInvalid()
	case key.Matches(msg, m.keys.Report):
		m.showReport = !m.showReport
		if m.showReport {
			m.resizeReport()
		}
	case key.Matches(msg, m.keys.Snapshot):
		m.snapshot()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	default:
		if m.showReport {
			var cmd tea.Cmd
			m.report, cmd = m.report.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) handleFieldKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		mk := model.MetricKind(m.focused)
		m.fields[mk].SetValue(itoa(m.ctrl.Threshold(mk)))
		m.blurFields()
		return m, nil
	case "enter":
		if m.applyField(model.MetricKind(m.focused)) {
			m.blurFields()
		}
		return m, nil
	case "tab", "shift+tab":
		if !m.applyField(model.MetricKind(m.focused)) {
			return m, nil
		}
		next := m.focused + 1
		if msg.String() == "shift+tab" {
			next = m.focused - 1
		}
		if next < 0 || next >= model.NumMetrics {
			m.blurFields()
			return m, nil
		}
		return m, m.focusField(next)
	}

	var cmd tea.Cmd
	m.fields[m.focused], cmd = m.fields[m.focused].Update(msg)
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	m.blurFields()
	m.focused = i
	m.fields[i].CursorEnd()
	return m.fields[i].Focus()
}

func (m *Model) blurFields() {
	for i := range m.fields {
		m.fields[i].Blur()
	}
	m.focused = -1
}

// applyField sets the limit typed into mk's field. It returns false when the
// text was rejected and the field should keep focus.
func (m *Model) applyField(mk model.MetricKind) bool {
	text := m.fields[mk].Value()
	if strings.TrimSpace(text) == itoa(m.ctrl.Threshold(mk)) {
		return true
	}

	err := m.ctrl.SetLimitString(mk, text)
	var invalid *model.InvalidThresholdError
	var prefErr *polycount.PreferenceWriteError
	switch {
	case errors.As(err, &invalid):
		m.setStatus(fmt.Sprintf("%s limit %q rejected: %s (keeping %d)",
			mk.Label(), invalid.Input, invalid.Reason, m.ctrl.Threshold(mk)), true)
		return false
	case errors.As(err, &prefErr):
		m.fields[mk].SetValue(itoa(m.ctrl.Threshold(mk)))
		m.setStatus(fmt.Sprintf("%s limit set to %d but not saved: %v",
			mk.Label(), m.ctrl.Threshold(mk), prefErr.Err), true)
	case err != nil:
		m.setStatus(fmt.Sprintf("%s limit: %v", mk.Label(), err), true)
		return false
	default:
		m.fields[mk].SetValue(itoa(m.ctrl.Threshold(mk)))
		p, _ := m.ctrl.Partition(mk)
		m.setStatus(fmt.Sprintf("%s limit set to %d: %d valid, %d invalid",
			mk.Label(), p.Limit, len(p.Valid), len(p.Invalid)), false)
	}
	m.renderReport()
	return true
}

// refresh re-measures the current selection. prefix, when set, replaces the
// "Measured" lead of the status line.
func (m *Model) refresh(prefix string) {
	report, err := m.ctrl.RefreshSelected()
	if err != nil {
		m.setStatus(fmt.Sprintf("Refresh failed: %v", err), true)
		return
	}
	m.clampCursor()
	m.renderReport()

	status := fmt.Sprintf("Measured %d objects", report.Loaded)
	if prefix != "" {
		status = fmt.Sprintf("%s; %d objects", prefix, report.Loaded)
	}
	if n := len(report.Duplicates); n > 0 {
		status += fmt.Sprintf(", %d duplicates ignored", n)
	}
	if skipped := report.SkippedEntities(); len(skipped) > 0 {
		m.setStatus(fmt.Sprintf("%s; skipped %d: %s", status, len(skipped), joinEntities(skipped, 5)), true)
		return
	}
	m.setStatus(status, false)
}

func (m *Model) visualize(mk model.MetricKind) {
	if err := m.ctrl.Visualize(mk); err != nil {
		if errors.Is(err, model.ErrBinderUnavailable) {
			m.setStatus(fmt.Sprintf("Cannot show %s: visualization layer unavailable", mk.Label()), true)
			return
		}
		m.setStatus(fmt.Sprintf("Cannot show %s: %v", mk.Label(), err), true)
		return
	}
	p, _ := m.ctrl.Partition(mk)
	m.setStatus(fmt.Sprintf("Showing %s (limit %d): %d valid, %d invalid",
		mk.Label(), p.Limit, len(p.Valid), len(p.Invalid)), false)
}

func (m *Model) toggleCurrent() {
	rows := m.rows()
	if len(rows) == 0 {
		return
	}
	e := rows[m.cursor].Entity
	if err := m.scene.Toggle(e); err != nil {
		m.setStatus(fmt.Sprintf("Cannot select %s: %v", e, err), true)
		return
	}
	selected := m.scene.Selected()
	if len(selected) == 0 {
		m.setStatus("Selection cleared; refresh measures all objects", false)
		return
	}
	m.setStatus(fmt.Sprintf("Selected %d: %s", len(selected), joinEntities(selected, 5)), false)
}

// lastPartition returns the current partition of the metric shown last.
func (m Model) lastPartition() (model.Partition, bool) {
	mk, ok := m.ctrl.LastVisualized()
	if !ok {
		return model.Partition{}, false
	}
	return m.ctrl.Partition(mk)
}

func (m *Model) copyInvalid() {
	p, ok := m.lastPartition()
	if !ok {
		m.setStatus("Nothing shown yet; press 1-4 first", true)
		return
	}
	if len(p.Invalid) == 0 {
		m.setStatus(fmt.Sprintf("No objects over the %s limit", p.Metric.Label()), false)
		return
	}
	if err := writeClipboard(strings.Join(model.EntityStrings(p.Invalid), "\n")); err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("Copied %d invalid %s objects", len(p.Invalid), p.Metric.Label()), false)
}

// snapshot rebinds the metric shown last so the layer colours match the
// current partition after limit edits and reloads.
func (m *Model) snapshot() {
	mk, ok := m.ctrl.LastVisualized()
	if !ok {
		m.setStatus("Nothing shown yet; press 1-4 first", true)
		return
	}
	err := m.ctrl.Visualize(mk)
	bound := err == nil || errors.Is(err, model.ErrSinkFailed)
	p, _ := m.ctrl.Partition(mk)
	path := m.snapshotPath
	if path == "" {
		path = fmt.Sprintf("polycheck-%s.svg", p.Metric)
	}
	opts := export.SnapshotOptions{
		Path:      path,
		Title:     m.title,
		Meshes:    m.scene,
		Partition: p,
	}
	if bound && m.binder != nil {
		if l, ok := m.binder.Layer(); ok {
			opts.Layer = l
		}
	}
	if err := export.SaveSnapshot(opts); err != nil {
		m.setStatus(fmt.Sprintf("Snapshot failed: %v", err), true)
		return
	}
	m.setStatus("Snapshot written to "+path, false)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.statusMsg = s
	m.statusIsError = isErr
}

func (m Model) rows() []model.Measurement {
	rows := make([]model.Measurement, 0, m.ctrl.Table().Len())
	for r := range m.ctrl.Table().Rows() {
		rows = append(rows, r)
	}
	return rows
}

func (m *Model) clampCursor() {
	n := m.ctrl.Table().Len()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	visible := m.tableHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if visible > 0 && m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset > max(n-visible, 0) {
		m.offset = max(n-visible, 0)
	}
}

// Status returns the status line text and whether it reports a problem.
func (m Model) Status() (string, bool) {
	return m.statusMsg, m.statusIsError
}

// Focused returns the metric whose limit field has focus.
func (m Model) Focused() (model.MetricKind, bool) {
	if m.focused < 0 {
		return 0, false
	}
	return model.MetricKind(m.focused), true
}

// Cursor returns the table row under the cursor.
func (m Model) Cursor() int {
	return m.cursor
}

// ReportVisible reports whether the Markdown pane is shown.
func (m Model) ReportVisible() bool {
	return m.showReport
}
