package dbsp

import (
	"fmt"
)

// OperatorType classifies operators by how they are incrementalized.
type OperatorType int

const (
	OpTypeSource   OperatorType = iota // no inputs, fed by external writes
	OpTypeLinear                       // Op^Δ = Op, stateless
	OpTypeBilinear                     // Op^Δ needs state of both inputs (joins)
)

func (t OperatorType) String() string {
	switch t {
	case OpTypeSource:
		return "Source"
	case OpTypeLinear:
		return "Linear"
	case OpTypeBilinear:
		return "Bilinear"
	default:
		return "Unknown"
	}
}

// Operator is the transformation logic of a graph node. The operator set is closed: TableOp,
// FilterOp, JoinOp, RewriteOp and UnionOp.
type Operator interface {
	// Process consumes one delta batch per input (in parent order) and produces the output
	// delta batch. Empty inputs may be passed as nil.
	Process(inputs ...*ZSet) (*ZSet, error)
	// Name returns the operator symbol for debugging.
	Name() string
	// Arity returns the number of inputs expected.
	Arity() int
	// OpType classifies the operator.
	OpType() OperatorType
	// Validate checks the operator configuration against the column counts of its inputs and
	// of its output schema.
	Validate(inputs []int, output int) error
	fmt.Stringer
}

// Base implementation for validation.
type BaseOp struct {
	arity int
	name  string
}

func NewBaseOp(name string, arity int) BaseOp {
	return BaseOp{arity: arity, name: name}
}

func (n *BaseOp) Name() string { return n.name }
func (n *BaseOp) Arity() int   { return n.arity }

// Validate inputs in Process methods.
func (n *BaseOp) validateInputs(inputs []*ZSet) error {
	if len(inputs) != n.arity {
		return fmt.Errorf("node %s expects %d inputs, got %d", n.name, n.arity, len(inputs))
	}
	return nil
}

func (n *BaseOp) validateArity(inputs []int) error {
	if len(inputs) != n.arity {
		return NewOperatorError(n.name, fmt.Sprintf("expects %d inputs, got %d", n.arity, len(inputs)))
	}
	return nil
}

func checkColumn(op string, col, arity int) error {
	if col < 0 || col >= arity {
		return NewOperatorError(op, fmt.Sprintf("column %d out of range [0,%d)", col, arity))
	}
	return nil
}
