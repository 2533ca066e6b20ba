package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/polycheck/pkg/export"
	"github.com/vanderheijden86/polycheck/pkg/model"
)

func (m Model) View() string {
	var sections []string
	sections = append(sections, m.renderHeader(), m.renderFields(), m.renderTable())
	if m.showReport {
		sections = append(sections, FocusedPanelStyle.Width(max(m.width-2, 10)).Render(m.report.View()))
	}
	sections = append(sections, m.renderStatus(), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	t := m.theme
	var info []string
	info = append(info, fmt.Sprintf("%d objects", m.ctrl.Table().Len()))
	if sel := m.scene.Selected(); len(sel) > 0 {
		info = append(info, fmt.Sprintf("%d selected", len(sel)))
	} else {
		info = append(info, "all geometry")
	}
	if mk, ok := m.ctrl.LastVisualized(); ok {
		info = append(info, "showing "+mk.Label())
	}
	if m.watcher != nil {
		mode := "watching"
		if m.watcher.IsPolling() {
			mode = "polling"
		}
		info = append(info, mode)
	}
	return t.Header.Render(m.title) + " " + t.MutedText.Render(strings.Join(info, " · "))
}

// renderFields draws the four limit inputs with their valid/invalid counts.
func (m Model) renderFields() string {
	t := m.theme
	parts := make([]string, 0, model.NumMetrics)
	for _, mk := range model.AllMetrics() {
		label := t.FieldLabel.Render(mk.Label() + " limit ")
		if m.focused == int(mk) {
			label = t.FieldFocused.Render("▸ " + mk.Label() + " limit ")
		}
		p, _ := m.ctrl.Partition(mk)
		parts = append(parts, label+"["+m.fields[mk].View()+"] "+RenderCountBadge(len(p.Valid), len(p.Invalid)))
	}
	return strings.Join(parts, strings.Repeat(" ", SpaceMD))
}

func (m Model) tableHeight() int {
	h := m.height - chromeHeight
	if m.showReport {
		h /= 2
	}
	return max(h, 1)
}

func (m Model) renderTable() string {
	t := m.theme
	rows := m.rows()
	nameW := nameColumnWidth(rows, m.width)

	var sb strings.Builder
	sb.WriteString("  " + t.ColumnHeader.Render(padRight("Object", nameW)))
	for _, mk := range model.AllMetrics() {
		sb.WriteString(" " + t.ColumnHeader.Render(padLeft(mk.Header(), countColumnWidth)))
	}
	sb.WriteString("\n")

	if len(rows) == 0 {
		sb.WriteString(t.MutedText.Render("  No objects measured. Press r to refresh."))
		sb.WriteString("\n")
		return sb.String()
	}

	partitions := m.ctrl.Partitions()
	end := min(m.offset+m.tableHeight(), len(rows))
	for i := m.offset; i < end; i++ {
		row := rows[i]
		marker := "  "
		if m.scene.IsSelected(row.Entity) {
			marker = t.PickedMark.Render("●") + " "
		}
		name := padRight(truncate(string(row.Entity), nameW), nameW)
		if i == m.cursor {
			name = t.Selected.Render(name)
		} else {
			name = t.Base.Render(name)
		}
		sb.WriteString(marker + name)
		for _, mk := range model.AllMetrics() {
			cell := padLeft(formatCount(row.Counts.Of(mk)), countColumnWidth)
			if partitions[mk].IsInvalid(row.Entity) {
				cell = t.InvalidCell.Render(cell)
			} else {
				cell = t.ValidCell.Render(cell)
			}
			sb.WriteString(" " + cell)
		}
		sb.WriteString("\n")
	}

	totals := m.ctrl.Table().Totals()
	sb.WriteString("  " + t.TotalRow.Render(padRight("Total", nameW)))
	for _, mk := range model.AllMetrics() {
		sb.WriteString(" " + t.TotalRow.Render(padLeft(formatCount(totals.Of(mk)), countColumnWidth)))
	}
	if len(rows) > m.tableHeight() {
		sb.WriteString(t.MutedText.Render(fmt.Sprintf("  (%d-%d of %d)", m.offset+1, end, len(rows))))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStatus() string {
	if m.statusMsg == "" {
		return RenderDivider(m.width)
	}
	msg := truncate(m.statusMsg, max(m.width, 20))
	if m.statusIsError {
		return m.theme.StatusError.Render(msg)
	}
	return m.theme.StatusOK.Render(msg)
}

func (m *Model) resizeReport() {
	m.report.Width = max(m.width-4, 10)
	m.report.Height = max((m.height-chromeHeight)/2-2, 3)
	if m.showReport {
		m.renderReport()
	}
}

// renderReport regenerates the Markdown report and renders it with glamour.
// Without a renderer the raw Markdown is shown.
func (m *Model) renderReport() {
	if !m.showReport {
		return
	}
	md, err := export.GenerateMarkdown(m.ctrl.Result(), m.title)
	if err != nil {
		m.report.SetContent(fmt.Sprintf("report unavailable: %v", err))
		return
	}
	wrap := max(m.report.Width-2, 20)
	if m.mdRenderer == nil || m.mdWidth != wrap {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			m.mdRenderer = r
			m.mdWidth = wrap
		}
	}
	if m.mdRenderer != nil {
		if out, err := m.mdRenderer.Render(md); err == nil {
			// Strip trailing whitespace/newlines that glamour adds
			m.report.SetContent(strings.TrimRight(out, "\n "))
			return
		}
	}
	m.report.SetContent(md)
}
