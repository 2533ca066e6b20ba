package polycount

import (
	"strconv"
	"strings"

	"github.com/vanderheijden86/polycheck/pkg/model"
)

// MaxLimit is the largest limit the limit fields accept.
const MaxLimit = 999999999

// ThresholdSet holds one limit per metric. The zero value has every limit
// at 0, which classifies everything as invalid.
type ThresholdSet struct {
	limits [model.NumMetrics]int
}

// Get returns the limit for m.
func (s ThresholdSet) Get(m model.MetricKind) int {
	if !m.Valid() {
		return 0
	}
	return s.limits[m]
}

// With returns a copy of s with m's limit set to limit. Invalid limits are
// rejected and s is returned unchanged alongside the error.
func (s ThresholdSet) With(m model.MetricKind, limit int) (ThresholdSet, error) {
	if err := validateLimit(m, limit); err != nil {
		return s, err
	}
	s.limits[m] = limit
	return s, nil
}

// Map returns the limits keyed by metric.
func (s ThresholdSet) Map() map[model.MetricKind]int {
	out := make(map[model.MetricKind]int, len(s.limits))
	for _, m := range model.AllMetrics() {
		out[m] = s.limits[m]
	}
	return out
}

func validateLimit(m model.MetricKind, limit int) error {
	if reason := limitProblem(m, limit); reason != "" {
		return &model.InvalidThresholdError{Metric: m, Input: strconv.Itoa(limit), Reason: reason}
	}
	return nil
}

func limitProblem(m model.MetricKind, limit int) string {
	switch {
	case !m.Valid():
		return "unknown metric"
	case limit < 0:
		return "must not be negative"
	case limit > MaxLimit:
		return "exceeds " + strconv.Itoa(MaxLimit)
	}
	return ""
}

// ParseLimit parses user text for m's limit field.
func ParseLimit(m model.MetricKind, input string) (int, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return 0, &model.InvalidThresholdError{Metric: m, Input: input, Reason: "empty"}
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, &model.InvalidThresholdError{Metric: m, Input: input, Reason: "not a whole number"}
	}
	if reason := limitProblem(m, v); reason != "" {
		return 0, &model.InvalidThresholdError{Metric: m, Input: input, Reason: reason}
	}
	return v, nil
}
