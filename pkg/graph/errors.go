package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownParent is returned when an operator refers to a node that is neither committed
	// nor staged earlier in the same migration.
	ErrUnknownParent = errors.New("unknown parent")
	// ErrUnknownNode is returned for node ids and names that do not resolve.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateName is returned when a node name is already taken.
	ErrDuplicateName = errors.New("duplicate node name")
	// ErrCyclicGraph is returned when a mutation would introduce a cycle.
	ErrCyclicGraph = errors.New("cyclic graph")
	// ErrHasChildren is returned when removing a node that still feeds other nodes.
	ErrHasChildren = errors.New("node has children")
	// ErrMigrationDone is returned when using a migration that was already committed or
	// discarded.
	ErrMigrationDone = errors.New("migration already finished")
	// ErrStaleMigration is returned when another migration was committed after this one was
	// started.
	ErrStaleMigration = errors.New("stale migration")
)

type ErrParent = error

func NewParentError(node string, parent NodeID) ErrParent {
	return fmt.Errorf("%w: node %q refers to parent %d", ErrUnknownParent, node, parent)
}

type ErrName = error

func NewDuplicateNameError(name string) ErrName {
	return fmt.Errorf("%w: %q", ErrDuplicateName, name)
}

type ErrNode = error

func NewNodeError(node string, err error) ErrNode {
	return fmt.Errorf("invalid node %q: %w", node, err)
}
