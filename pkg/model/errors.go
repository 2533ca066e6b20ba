package model

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	ErrEntityNotFound    = errors.New("entity not found")
	ErrInvalidThreshold  = errors.New("invalid threshold")
	ErrBinderUnavailable = errors.New("visualization binder unavailable")
	ErrStalePartition    = errors.New("partition is stale")
	// ErrSinkFailed means the layer was bound but a render sink failed.
	ErrSinkFailed = errors.New("render sink failed")
)

// EntityNotFoundError reports an entity that vanished between selection and query.
type EntityNotFoundError struct {
	Entity Entity
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %q not found", string(e.Entity))
}

// Is makes errors.Is(err, ErrEntityNotFound) hold.
func (e *EntityNotFoundError) Is(target error) bool {
	return target == ErrEntityNotFound
}

// InvalidThresholdError reports a rejected limit. Input holds the offending
// user text or number.
type InvalidThresholdError struct {
	Metric MetricKind
	Input  string
	Reason string
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid %s limit %q: %s", e.Metric, e.Input, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidThreshold) hold.
func (e *InvalidThresholdError) Is(target error) bool {
	return target == ErrInvalidThreshold
}
