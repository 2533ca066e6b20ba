package ui

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

// truncateRunesHelper truncates a string to max visual width (cells), adding suffix if needed.
// Uses go-runewidth to handle wide characters correctly.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		// Even suffix is too wide, truncate suffix
		return runewidth.Truncate(suffix, maxWidth, "")
	}

	targetWidth := maxWidth - suffixWidth
	return runewidth.Truncate(s, targetWidth, "") + suffix
}

// padRight pads s with spaces on the right to width cells.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// padLeft right-aligns s in width cells.
func padLeft(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return strings.Repeat(" ", width-w) + s
}

// truncate truncates string s to maxWidth cells
func truncate(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// formatCount groups thousands: 1234567 -> "1,234,567".
func formatCount(n int) string {
	if n < 0 {
		return "-" + formatCount(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	head := len(s) % 3
	if head > 0 {
		sb.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

// nameColumnWidth sizes the object column to the longest name within bounds.
func nameColumnWidth(rows []model.Measurement, total int) int {
	w := minNameWidth
	for _, r := range rows {
		if n := runewidth.StringWidth(string(r.Entity)); n > w {
			w = n
		}
	}
	if w > maxNameWidth {
		w = maxNameWidth
	}
	// Leave room for the marker column and the four counts.
	if avail := total - 2 - model.NumMetrics*(countColumnWidth+1); total > 0 && w > avail {
		w = max(avail, minNameWidth)
	}
	return w
}

// joinEntities renders a list for the status bar, eliding after limit names.
func joinEntities(es []model.Entity, limit int) string {
	names := model.EntityStrings(es)
	if limit > 0 && len(names) > limit {
		rest := len(names) - limit
		return strings.Join(names[:limit], ", ") + ", +" + strconv.Itoa(rest) + " more"
	}
	return strings.Join(names, ", ")
}
