package polycount

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/vanderheijden86/polycheck/pkg/debug"
	"github.com/vanderheijden86/polycheck/pkg/metrics"
	"github.com/vanderheijden86/polycheck/pkg/model"
)

// PreferenceWriteError reports a limit that was applied but could not be
// persisted. It is not fatal: the new limit is in effect.
type PreferenceWriteError struct {
	Metric model.MetricKind
	Key    string
	Err    error
}

func (e *PreferenceWriteError) Error() string {
	return fmt.Sprintf("saving %s limit to %q: %v", e.Metric, e.Key, e.Err)
}

func (e *PreferenceWriteError) Unwrap() error {
	return e.Err
}

// Option configures a Controller.
type Option func(*Controller)

// WithSelectionSource sets where Refresh gets entities when none are given.
func WithSelectionSource(s SelectionSource) Option {
	return func(c *Controller) {
		c.selection = s
	}
}

// WithBinder sets the visualization binder.
func WithBinder(b Binder) Option {
	return func(c *Controller) {
		c.binder = b
	}
}

// WithPreferences sets the store the limits are loaded from and saved to.
func WithPreferences(p PreferenceStore) Option {
	return func(c *Controller) {
		c.prefs = p
	}
}

// WithLogger sets the logger for non-fatal warnings.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller owns the table, the classifier and the current partition of
// every metric. Partitions are recomputed in full after every refresh and
// limit change, so the ones it hands out always match the table.
type Controller struct {
	provider  MetricsProvider
	selection SelectionSource
	binder    Binder
	prefs     PreferenceStore
	logger    *log.Logger

	table      *Table
	classifier *Classifier
	partitions [model.NumMetrics]model.Partition
	report     LoadReport

	visualized    model.MetricKind
	hasVisualized bool
	closed        bool
}

// NewController returns a controller measuring through provider. The table
// starts empty and every limit at 0.
func NewController(provider MetricsProvider, opts ...Option) *Controller {
	c := &Controller{
		provider:   provider,
		logger:     log.New(io.Discard, "", 0),
		table:      NewTable(),
		classifier: NewClassifier(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reclassifyAll()
	return c
}

// LoadPreferences reads the stored limits. Missing keys keep their current
// value; unreadable or invalid values are skipped and returned joined. The
// partitions are recomputed either way.
func (c *Controller) LoadPreferences() error {
	if c.prefs == nil {
		return nil
	}
	var errs []error
	for _, m := range model.AllMetrics() {
		v, ok, err := c.prefs.GetInt(m.PrefKey())
		if err != nil {
			c.logger.Printf("warning: reading %s: %v", m.PrefKey(), err)
			errs = append(errs, fmt.Errorf("reading %s: %w", m.PrefKey(), err))
			continue
		}
		if !ok {
			continue
		}
		if err := c.classifier.SetThreshold(m, v); err != nil {
			c.logger.Printf("warning: ignoring stored %s: %v", m.PrefKey(), err)
			errs = append(errs, fmt.Errorf("stored %s: %w", m.PrefKey(), err))
		}
	}
	c.reclassifyAll()
	return errors.Join(errs...)
}

// Refresh measures selection and reclassifies all four metrics. An empty
// selection is resolved through the SelectionSource, which falls back to all
// geometry. Entities that cannot be measured are listed in the report.
func (c *Controller) Refresh(selection []model.Entity) (LoadReport, error) {
	defer debug.LogEnterExit("Controller.Refresh")()

	if len(selection) == 0 && c.selection != nil {
		selected, err := c.selection.SelectedEntities()
		if err != nil {
			return LoadReport{}, fmt.Errorf("listing selection: %w", err)
		}
		selection = selected
	}

	c.report = c.table.Load(c.provider, selection)
	for _, s := range c.report.Skipped {
		c.logger.Printf("warning: skipped %s: %s", s.Entity, s.Reason)
	}
	c.reclassifyAll()
	debug.Log("refresh: %d loaded, %d skipped, %d duplicates",
		c.report.Loaded, len(c.report.Skipped), len(c.report.Duplicates))
	return c.report, nil
}

// RefreshSelected refreshes from the SelectionSource.
func (c *Controller) RefreshSelected() (LoadReport, error) {
	return c.Refresh(nil)
}

// Clear empties the table. The limits are kept.
func (c *Controller) Clear() {
	c.table.Clear()
	c.report = LoadReport{}
	c.reclassifyAll()
}

// SetLimit validates and applies a limit, saves it and reclassifies that
// metric only. An invalid limit returns *model.InvalidThresholdError and
// changes nothing. A failed save returns *PreferenceWriteError after the
// limit has been applied.
func (c *Controller) SetLimit(m model.MetricKind, value int) error {
	if err := c.classifier.SetThreshold(m, value); err != nil {
		return err
	}
	c.partitions[m] = c.classifier.Classify(m, c.table)

	if c.prefs == nil {
		return nil
	}
	if err := c.prefs.SetInt(m.PrefKey(), value); err != nil {
		c.logger.Printf("warning: saving %s: %v", m.PrefKey(), err)
		return &PreferenceWriteError{Metric: m, Key: m.PrefKey(), Err: err}
	}
	return nil
}

// SetLimitString parses user text and applies it like SetLimit.
func (c *Controller) SetLimitString(m model.MetricKind, input string) error {
	v, err := ParseLimit(m, input)
	if err != nil {
		return err
	}
	return c.SetLimit(m, v)
}

// Visualize pushes the current partition of m to the binder.
func (c *Controller) Visualize(m model.MetricKind) error {
	if !m.Valid() {
		return fmt.Errorf("visualize: unknown metric %d", int(m))
	}
	return c.VisualizePartition(c.partitions[m])
}

// VisualizePartition pushes p to the binder. A partition computed before the
// latest load is refused with model.ErrStalePartition. When only a render
// sink failed the layer shows p, so p's metric still counts as visualized.
func (c *Controller) VisualizePartition(p model.Partition) error {
	defer metrics.Timer(metrics.Visualize)()

	if c.binder == nil || c.closed {
		return fmt.Errorf("visualize %s: %w", p.Metric, model.ErrBinderUnavailable)
	}
	if p.Generation != c.table.Generation() {
		return fmt.Errorf("visualize %s: generation %d, table at %d: %w",
			p.Metric, p.Generation, c.table.Generation(), model.ErrStalePartition)
	}
	err := c.binder.Bind(p)
	if err == nil || errors.Is(err, model.ErrSinkFailed) {
		c.visualized = p.Metric
		c.hasVisualized = true
	}
	if err != nil {
		c.logger.Printf("warning: visualize %s: %v", p.Metric, err)
		return fmt.Errorf("visualize %s: %w", p.Metric, err)
	}
	return nil
}

// Partition returns the current partition of m.
func (c *Controller) Partition(m model.MetricKind) (model.Partition, bool) {
	if !m.Valid() {
		return model.Partition{}, false
	}
	return c.partitions[m], true
}

// Partitions returns the current partitions in metric order.
func (c *Controller) Partitions() []model.Partition {
	out := make([]model.Partition, len(c.partitions))
	copy(out, c.partitions[:])
	return out
}

// Table returns the table. Callers must not load it directly.
func (c *Controller) Table() *Table {
	return c.table
}

// Thresholds returns the current limits.
func (c *Controller) Thresholds() ThresholdSet {
	return c.classifier.Thresholds()
}

// Threshold returns m's limit.
func (c *Controller) Threshold(m model.MetricKind) int {
	return c.classifier.Threshold(m)
}

// LastReport returns the report of the latest refresh.
func (c *Controller) LastReport() LoadReport {
	return c.report
}

// LastVisualized returns the metric most recently bound.
func (c *Controller) LastVisualized() (model.MetricKind, bool) {
	return c.visualized, c.hasVisualized
}

// Close tears the visualization down if the binder supports it. The
// controller cannot visualize afterwards.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if td, ok := c.binder.(interface{ Teardown() error }); ok {
		if err := td.Teardown(); err != nil {
			return fmt.Errorf("tearing down visualization: %w", err)
		}
	}
	return nil
}

func (c *Controller) reclassifyAll() {
	for _, m := range model.AllMetrics() {
		c.partitions[m] = c.classifier.Classify(m, c.table)
	}
}
