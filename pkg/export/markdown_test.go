package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/polycount"
)

func TestGenerateMarkdown(t *testing.T) {
	f := newFixture(t)
	_, err := f.controller.Refresh([]model.Entity{"cube", "tri", "ghost", "cube"})
	require.NoError(t, err)

	md, err := GenerateMarkdown(f.controller.Result(), "Props")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(md, "# Props\n"))
	assert.Contains(t, md, "2 objects measured.")
	assert.Contains(t, md, "| Vertices | 6 | 1 | 5.5 |")
	assert.Contains(t, md, "| cube | ⚠ **8** | 12 | ⚠ **12** | ⚠ **6** |")
	assert.Contains(t, md, "| tri | 3 | 3 | 1 | 1 |")
	assert.Contains(t, md, "| **Total** | 11 | 15 | 13 | 7 |")
	assert.Contains(t, md, "- **Vertex** (limit 6): cube")
	assert.NotContains(t, md, "- **Edge**")
	assert.Contains(t, md, "## Skipped\n\n- `ghost`:")
	assert.Contains(t, md, "## Duplicates\n\nListed more than once in the selection; measured once.\n\n- `cube`")
}

func TestGenerateMarkdown_Empty(t *testing.T) {
	md, err := GenerateMarkdown(polycount.Result{Limits: map[model.MetricKind]int{}}, "")
	require.NoError(t, err)

	assert.Contains(t, md, "# Poly Count Report")
	assert.Contains(t, md, "_No objects measured._")
	assert.NotContains(t, md, "## Over Limit")
	assert.NotContains(t, md, "## Skipped")
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	summaries := Summarize(f.controller.Result())
	require.Len(t, summaries, model.NumMetrics)

	tris := summaries[model.MetricTriangle]
	assert.Equal(t, model.MetricTriangle, tris.Metric)
	assert.Equal(t, 2, tris.Limit)
	assert.Equal(t, 1, tris.Invalid)
	assert.InDelta(t, 6.5, tris.Mean, 1e-9)
	assert.InDelta(t, 12, tris.Max, 1e-9)
	assert.Greater(t, tris.StdDev, 0.0)
}

func TestEscapeCell(t *testing.T) {
	assert.Equal(t, `a\|b c`, escapeCell("a|b\nc\r"))
}
