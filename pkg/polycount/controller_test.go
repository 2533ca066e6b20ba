package polycount

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/polycheck/pkg/model"
	"github.com/vanderheijden86/polycheck/pkg/testutil"
)

func newTestController(t *testing.T, opts ...Option) (*Controller, *fakeProvider) {
	t.Helper()
	p := vertexProvider(map[model.Entity]int{"A": 10, "B": 20, "C": 30, "D": 40})
	return NewController(p, opts...), p
}

func TestControllerRefreshClassifiesAllMetrics(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.SetLimit(model.MetricVertex, 20))

	report, err := c.Refresh(entities("A", "B", "C"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Loaded)

	for _, m := range model.AllMetrics() {
		p, ok := c.Partition(m)
		require.True(t, ok)
		assert.Equal(t, 3, p.Len(), "metric %v", m)
		assert.Equal(t, c.Table().Generation(), p.Generation)
	}
	p, _ := c.Partition(model.MetricVertex)
	assert.Equal(t, entities("A"), p.Valid)
	assert.Equal(t, entities("B", "C"), p.Invalid)
}

func TestControllerRefreshFallsBackToSelectionSource(t *testing.T) {
	sel := &fakeSelection{all: entities("A", "B", "C", "D")}
	c, _ := newTestController(t, WithSelectionSource(sel))

	report, err := c.RefreshSelected()
	require.NoError(t, err)
	assert.Equal(t, 4, report.Loaded)

	sel.selected = entities("D")
	_, err = c.Refresh(nil)
	require.NoError(t, err)
	assert.Equal(t, entities("D"), c.Table().Entities())

	_, err = c.Refresh(entities("A"))
	require.NoError(t, err)
	assert.Equal(t, entities("A"), c.Table().Entities(), "explicit selection wins over the source")
}

func TestControllerRefreshSelectionError(t *testing.T) {
	c, _ := newTestController(t, WithSelectionSource(&fakeSelection{err: errors.New("scene closed")}))
	_, err := c.Refresh(nil)
	assert.ErrorContains(t, err, "scene closed")
}

func TestControllerRefreshReportsVanishedEntity(t *testing.T) {
	var buf bytes.Buffer
	c, p := newTestController(t, WithLogger(log.New(&buf, "", 0)))
	p.missing["B"] = true

	report, err := c.Refresh(entities("A", "B", "C"))

	require.NoError(t, err, "a vanished entity is not fatal")
	assert.Equal(t, entities("B"), report.SkippedEntities())
	assert.Equal(t, entities("A", "C"), c.Table().Entities())
	assert.Contains(t, buf.String(), "skipped B")
	assert.Equal(t, report, c.LastReport())
}

func TestControllerSetLimitReclassifiesOnlyThatMetric(t *testing.T) {
	c, _ := newTestController(t)
	_, err := c.Refresh(entities("A", "B"))
	require.NoError(t, err)
	before, _ := c.Partition(model.MetricEdge)

	require.NoError(t, c.SetLimit(model.MetricVertex, 15))

	vp, _ := c.Partition(model.MetricVertex)
	assert.Equal(t, 15, vp.Limit)
	assert.Equal(t, entities("A"), vp.Valid)
	after, _ := c.Partition(model.MetricEdge)
	assert.True(t, before.Equal(after))
}

func TestControllerSetLimitInvalidKeepsPrevious(t *testing.T) {
	prefs := newMemPrefs()
	c, _ := newTestController(t, WithPreferences(prefs))
	require.NoError(t, c.SetLimit(model.MetricTriangle, 50))

	err := c.SetLimit(model.MetricTriangle, -5)

	assert.ErrorIs(t, err, model.ErrInvalidThreshold)
	assert.Equal(t, 50, c.Threshold(model.MetricTriangle))
	assert.Equal(t, 50, prefs.values["polyCountChecker_Tri_Limit"])
}

func TestControllerSetLimitString(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.SetLimitString(model.MetricQuad, "12"))
	assert.Equal(t, 12, c.Threshold(model.MetricQuad))
	assert.ErrorIs(t, c.SetLimitString(model.MetricQuad, "twelve"), model.ErrInvalidThreshold)
	assert.Equal(t, 12, c.Threshold(model.MetricQuad))
}

func TestControllerSetLimitPersists(t *testing.T) {
	prefs := newMemPrefs()
	c, _ := newTestController(t, WithPreferences(prefs))

	require.NoError(t, c.SetLimit(model.MetricVertex, 1000))
	require.NoError(t, c.SetLimit(model.MetricEdge, 2000))

	assert.Equal(t, 1000, prefs.values["polyCountChecker_Vertex_Limit"])
	assert.Equal(t, 2000, prefs.values["polyCountChecker_Edge_Limit"])
}

func TestControllerSetLimitWriteFailureIsNonFatal(t *testing.T) {
	prefs := newMemPrefs()
	prefs.writeErr = errDiskFull
	c, _ := newTestController(t, WithPreferences(prefs))

	err := c.SetLimit(model.MetricVertex, 30)

	var pwe *PreferenceWriteError
	require.ErrorAs(t, err, &pwe)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, "polyCountChecker_Vertex_Limit", pwe.Key)
	assert.Equal(t, 30, c.Threshold(model.MetricVertex), "limit applies even when saving fails")
}

func TestControllerLoadPreferences(t *testing.T) {
	prefs := newMemPrefs()
	prefs.values["polyCountChecker_Vertex_Limit"] = 5000
	prefs.values["polyCountChecker_Quad_Limit"] = -3
	c, _ := newTestController(t, WithPreferences(prefs))

	err := c.LoadPreferences()

	assert.ErrorIs(t, err, model.ErrInvalidThreshold, "negative stored value is reported")
	assert.Equal(t, 5000, c.Threshold(model.MetricVertex))
	assert.Equal(t, 0, c.Threshold(model.MetricEdge))
	assert.Equal(t, 0, c.Threshold(model.MetricQuad))
	p, _ := c.Partition(model.MetricVertex)
	assert.Equal(t, 5000, p.Limit)
}

func TestControllerLoadPreferencesReadError(t *testing.T) {
	prefs := newMemPrefs()
	prefs.readErr = errDiskFull
	c, _ := newTestController(t, WithPreferences(prefs))
	assert.ErrorIs(t, c.LoadPreferences(), errDiskFull)
}

func TestControllerVisualize(t *testing.T) {
	b := &recordingBinder{}
	c, _ := newTestController(t, WithBinder(b))
	require.NoError(t, c.SetLimit(model.MetricVertex, 25))
	_, err := c.Refresh(entities("A", "B", "C"))
	require.NoError(t, err)

	require.NoError(t, c.Visualize(model.MetricVertex))

	require.Len(t, b.bound, 1)
	assert.Equal(t, entities("A", "B"), b.bound[0].Valid)
	assert.Equal(t, entities("C"), b.bound[0].Invalid)
	m, ok := c.LastVisualized()
	assert.True(t, ok)
	assert.Equal(t, model.MetricVertex, m)
}

func TestControllerVisualizeWithoutBinder(t *testing.T) {
	c, _ := newTestController(t)
	err := c.Visualize(model.MetricEdge)
	assert.ErrorIs(t, err, model.ErrBinderUnavailable)
}

func TestControllerVisualizeBinderFailureKeepsState(t *testing.T) {
	b := &recordingBinder{err: model.ErrBinderUnavailable}
	c, _ := newTestController(t, WithBinder(b))
	require.NoError(t, c.SetLimit(model.MetricVertex, 25))
	_, err := c.Refresh(entities("A", "B", "C"))
	require.NoError(t, err)

	err = c.Visualize(model.MetricVertex)
	assert.ErrorIs(t, err, model.ErrBinderUnavailable)

	assert.Equal(t, 3, c.Table().Len())
	assert.Equal(t, 25, c.Threshold(model.MetricVertex))
	_, ok := c.LastVisualized()
	assert.False(t, ok)

	b.err = nil
	require.NoError(t, c.SetLimit(model.MetricVertex, 35))
	require.NoError(t, c.Visualize(model.MetricVertex))
}

func TestControllerVisualizeSinkFailureStillRecordsMetric(t *testing.T) {
	b := &recordingBinder{}
	c, _ := newTestController(t, WithBinder(b))
	_, err := c.Refresh(entities("A", "B", "C"))
	require.NoError(t, err)
	require.NoError(t, c.Visualize(model.MetricVertex))

	b.err = fmt.Errorf("%w: %w", model.ErrSinkFailed, errDiskFull)
	err = c.Visualize(model.MetricEdge)
	assert.ErrorIs(t, err, errDiskFull)

	m, ok := c.LastVisualized()
	assert.True(t, ok)
	assert.Equal(t, model.MetricEdge, m, "the layer shows edge even though a sink failed")
}

func TestControllerRejectsStalePartitionAfterReload(t *testing.T) {
	b := &recordingBinder{}
	c, _ := newTestController(t, WithBinder(b))
	require.NoError(t, c.SetLimit(model.MetricVertex, 25))
	_, err := c.Refresh(entities("A", "B"))
	require.NoError(t, err)
	stale, _ := c.Partition(model.MetricVertex)

	_, err = c.Refresh(entities("C", "D"))
	require.NoError(t, err)

	assert.ErrorIs(t, c.VisualizePartition(stale), model.ErrStalePartition)
	assert.Empty(t, b.bound)

	fresh, _ := c.Partition(model.MetricVertex)
	assert.False(t, fresh.Equal(stale), "partitions must not be reused across loads")
	assert.Empty(t, fresh.Valid)
	assert.Equal(t, entities("C", "D"), fresh.Invalid)
	require.NoError(t, c.VisualizePartition(fresh))
}

func TestControllerClear(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.SetLimit(model.MetricEdge, 9))
	_, err := c.Refresh(entities("A"))
	require.NoError(t, err)

	c.Clear()

	assert.Equal(t, 0, c.Table().Len())
	assert.Equal(t, 9, c.Threshold(model.MetricEdge))
	p, _ := c.Partition(model.MetricEdge)
	assert.Equal(t, 0, p.Len())
}

func TestControllerCloseTearsDown(t *testing.T) {
	b := &recordingBinder{}
	c, _ := newTestController(t, WithBinder(b))

	require.NoError(t, c.Close())
	assert.True(t, b.tornDown)
	assert.ErrorIs(t, c.Visualize(model.MetricVertex), model.ErrBinderUnavailable)
	require.NoError(t, c.Close())
}

func TestControllerResult(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.SetLimit(model.MetricVertex, 25))
	_, err := c.Refresh(entities("A", "B", "C"))
	require.NoError(t, err)

	r := c.Result()

	assert.Len(t, r.Rows, 3)
	assert.Equal(t, 25, r.Limits[model.MetricVertex])
	assert.Equal(t, 1, r.InvalidCount(model.MetricVertex))
	assert.Equal(t, entities("A", "B", "C"), r.InvalidAny(), "zero limits make every row invalid somewhere")
	assert.Equal(t, 60, r.Totals.Vertices)
}

func TestControllerGeneratedScene(t *testing.T) {
	sc := testutil.NewDefault().Scene(40)
	c := NewController(sc, WithSelectionSource(sc))
	for _, m := range model.AllMetrics() {
		require.NoError(t, c.SetLimit(m, 10))
	}

	report, err := c.RefreshSelected()
	require.NoError(t, err)
	assert.Equal(t, 40, report.Loaded)

	rows := c.Result().Rows
	for _, p := range c.Partitions() {
		testutil.AssertPartition(t, p, rows)
	}
}
