package hogwild

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/hogwild/blobstore"
	"github.com/hupe1980/hogwild/dataset"
	"github.com/hupe1980/hogwild/internal/numa"
	"github.com/hupe1980/hogwild/internal/partition"
	"github.com/hupe1980/hogwild/resource"
)

var (
	// ErrUsage is returned for malformed command-line arguments.
	ErrUsage = errors.New("usage error")
	// ErrInvalidConfig is returned when options are out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrCanceled is returned when the context is canceled between epochs.
	ErrCanceled = errors.New("training canceled")
	// ErrMemoryLimitExceeded is returned when data or replicas exceed the memory budget.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// LoadError indicates that a dataset could not be opened or decoded. Loading
// never recovers from a partial read.
//
// The original underlying error can be accessed via errors.Unwrap.
type LoadError struct {
	Path string
	// Node is the node whose load pass failed, -1 if the source failed to open.
	Node int
	// Line is the failing line (text) or record (binary), 0 if unknown.
	Line  int
	cause error
}

func (e *LoadError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("load %s: record %d: %v", e.Path, e.Line, e.cause)
	case e.Node >= 0:
		return fmt.Sprintf("load %s on node %d: %v", e.Path, e.Node, e.cause)
	default:
		return fmt.Sprintf("load %s: %v", e.Path, e.cause)
	}
}

func (e *LoadError) Unwrap() error { return e.cause }

// TopologyError indicates that NUMA facilities are unavailable or the node
// layout cannot be determined. There is no silent fallback to a single node.
//
// The original underlying error can be accessed via errors.Unwrap.
type TopologyError struct {
	// Op is the failing step ("discover", "bind").
	Op    string
	cause error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("numa %s: %v", e.Op, e.cause)
}

func (e *TopologyError) Unwrap() error { return e.cause }

// translateLoadError maps loader and dataset errors for path onto LoadError.
func translateLoadError(path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	var le *partition.LoadError
	if errors.As(err, &le) {
		return &LoadError{Path: path, Node: le.Node, Line: le.Line, cause: le.Err}
	}
	var pe *dataset.ParseError
	if errors.As(err, &pe) {
		return &LoadError{Path: path, Node: -1, Line: pe.Line, cause: err}
	}
	return &LoadError{Path: path, Node: -1, cause: err}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, ErrCanceled) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if errors.Is(err, numa.ErrUnavailable) || errors.Is(err, numa.ErrInvalidNode) {
		var te *TopologyError
		if errors.As(err, &te) {
			return err
		}
		return &TopologyError{Op: "bind", cause: err}
	}
	if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, dataset.ErrMalformed) {
		var le *LoadError
		if errors.As(err, &le) {
			return err
		}
		return &LoadError{Path: "", Node: -1, cause: err}
	}
	return err
}
