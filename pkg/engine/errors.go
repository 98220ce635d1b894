package engine

import (
	"errors"
	"fmt"

	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/graph"
)

var (
	// ErrUnknownTable is returned when no base table has the given name.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownView is returned when no node has the given name.
	ErrUnknownView = errors.New("unknown view")
	// ErrNotMaintained is returned when reading a node that has no materialized index.
	ErrNotMaintained = errors.New("view not maintained")
	// ErrClosed is returned by every operation on a closed engine.
	ErrClosed = errors.New("engine closed")
)

// Errors of the lower layers, re-exported so callers need a single import.
var (
	ErrArityMismatch   = dbsp.ErrArityMismatch
	ErrInvalidOperator = dbsp.ErrInvalidOperator
	ErrUnknownParent   = graph.ErrUnknownParent
	ErrDuplicateName   = graph.ErrDuplicateName
	ErrCyclicGraph     = graph.ErrCyclicGraph
	ErrHasChildren     = graph.ErrHasChildren
	ErrMigrationDone   = graph.ErrMigrationDone
)

type ErrTable = error

func NewTableError(name string) ErrTable {
	return fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

type ErrView = error

func NewViewError(name string, err error) ErrView {
	return fmt.Errorf("%w: %q", err, name)
}

type ErrDurability = error

func NewDurabilityError(err error) ErrDurability {
	return fmt.Errorf("failed to record write: %w", err)
}

type ErrPropagation = error

func NewPropagationError(node string, err error) ErrPropagation {
	return fmt.Errorf("failed to propagate deltas through node %q: %w", node, err)
}
