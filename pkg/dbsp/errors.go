package dbsp

import (
	"errors"
	"fmt"
)

var (
	// ErrArityMismatch is returned when a row, a key or a column list disagrees with a schema.
	ErrArityMismatch = errors.New("arity mismatch")
	// ErrInvalidOperator is returned for operator configurations that cannot be evaluated.
	ErrInvalidOperator = errors.New("invalid operator")
	// ErrInvalidValue is returned when a native value cannot be converted into a Value.
	ErrInvalidValue = errors.New("invalid value")
)

type ErrArity = error

func NewArityError(what string, expected, got int) ErrArity {
	return fmt.Errorf("%w: %s expects %d columns, got %d", ErrArityMismatch, what, expected, got)
}

type ErrOperator = error

func NewOperatorError(op, message string) ErrOperator {
	return fmt.Errorf("%w: %s: %s", ErrInvalidOperator, op, message)
}
