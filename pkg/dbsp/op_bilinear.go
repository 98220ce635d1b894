package dbsp

import (
	"fmt"

	"github.com/l7mp/dflow/pkg/util"
)

// JoinType is the type of a join.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

func (t JoinType) String() string {
	if t == LeftJoin {
		return "left"
	}
	return "inner"
}

// Side tells where an output column of a join comes from.
type Side int

const (
	SideLeft Side = iota
	SideRight
	SideBoth
)

// Column is an output column specification of a join.
type Column struct {
	Side  Side
	Left  int
	Right int
}

// L takes column i of the left input.
func L(i int) Column { return Column{Side: SideLeft, Left: i, Right: -1} }

// R takes column i of the right input. It is Null in the padded rows of a left join.
func R(i int) Column { return Column{Side: SideRight, Left: -1, Right: i} }

// B takes column i of the left input and requires it to be equal to column j of the right
// input. The B columns define the equi-join predicate.
func B(i, j int) Column { return Column{Side: SideBoth, Left: i, Right: j} }

func (c Column) String() string {
	switch c.Side {
	case SideLeft:
		return fmt.Sprintf("L(%d)", c.Left)
	case SideRight:
		return fmt.Sprintf("R(%d)", c.Right)
	default:
		return fmt.Sprintf("B(%d,%d)", c.Left, c.Right)
	}
}

// JoinOp implements an incremental binary equi-join. Each side keeps the rows seen so far,
// indexed by the join key, so that a delta on one side is matched against the current state of
// the other side.
type JoinOp struct {
	BaseOp
	kind     JoinType
	emit     []Column
	leftKey  []int
	rightKey []int

	// Internal state: join key -> rows of that side.
	left  map[string]*ZSet
	right map[string]*ZSet
}

// NewJoin creates a new incremental join op.
func NewJoin(kind JoinType, emit ...Column) *JoinOp {
	op := &JoinOp{
		BaseOp: NewBaseOp("⋈", 2),
		kind:   kind,
		emit:   emit,
		left:   map[string]*ZSet{},
		right:  map[string]*ZSet{},
	}
	if kind == LeftJoin {
		op.name = "⟕"
	}
	for _, c := range emit {
		if c.Side == SideBoth {
			op.leftKey = append(op.leftKey, c.Left)
			op.rightKey = append(op.rightKey, c.Right)
		}
	}
	return op
}

func (op *JoinOp) OpType() OperatorType { return OpTypeBilinear }
func (op *JoinOp) JoinType() JoinType   { return op.kind }
func (op *JoinOp) Emit() []Column       { return op.emit }

// Validate checks the op config.
func (op *JoinOp) Validate(inputs []int, output int) error {
	if err := op.validateArity(inputs); err != nil {
		return err
	}
	if len(op.emit) != output {
		return NewArityError("join output", output, len(op.emit))
	}
	if len(op.leftKey) == 0 {
		return NewOperatorError(op.name, "at least one B(left, right) column is required")
	}
	for _, c := range op.emit {
		if c.Side != SideRight {
			if err := checkColumn(op.name, c.Left, inputs[0]); err != nil {
				return err
			}
		}
		if c.Side != SideLeft {
			if err := checkColumn(op.name, c.Right, inputs[1]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Process evaluates the op. All left deltas are processed before the right deltas, and each
// delta is matched against the other side and then applied to its own side before the next one
// is considered, which yields ΔL ⋈ R + (L + ΔL) ⋈ ΔR.
func (op *JoinOp) Process(inputs ...*ZSet) (*ZSet, error) {
	if err := op.validateInputs(inputs); err != nil {
		return nil, err
	}

	result := NewZSet()
	deltaL, deltaR := inputs[0], inputs[1]

	if deltaL != nil {
		for key, mult := range deltaL.counts {
			op.processLeft(result, deltaL.rows[key], mult)
		}
	}
	if deltaR != nil {
		for key, mult := range deltaR.counts {
			op.processRight(result, deltaR.rows[key], mult)
		}
	}

	return result, nil
}

func (op *JoinOp) processLeft(result *ZSet, row Row, mult int) {
	k := row.Project(op.leftKey).Key()
	matches := op.right[k]
	if matches.Weight() > 0 {
		for rkey, rmult := range matches.counts {
			result.AddRow(op.combine(row, matches.rows[rkey]), mult*rmult)
		}
	} else if op.kind == LeftJoin {
		result.AddRow(op.combine(row, nil), mult)
	}
	addToSide(op.left, k, row, mult)
}

func (op *JoinOp) processRight(result *ZSet, row Row, mult int) {
	k := row.Project(op.rightKey).Key()
	lefts := op.left[k]
	before := op.right[k].Weight()
	after := before + mult

	if lefts != nil {
		for lkey, lmult := range lefts.counts {
			lrow := lefts.rows[lkey]
			result.AddRow(op.combine(lrow, row), lmult*mult)
			if op.kind == LeftJoin {
				switch {
				case before <= 0 && after > 0:
					// first match: retract the padded row
					result.AddRow(op.combine(lrow, nil), -lmult)
				case before > 0 && after <= 0:
					// last match gone: the padded row reappears
					result.AddRow(op.combine(lrow, nil), lmult)
				}
			}
		}
	}
	addToSide(op.right, k, row, mult)
}

// combine builds an output row, a nil right row produces the padded row of a left join.
func (op *JoinOp) combine(left, right Row) Row {
	ret := make(Row, len(op.emit))
	for i, c := range op.emit {
		switch c.Side {
		case SideLeft, SideBoth:
			ret[i] = left[c.Left]
		case SideRight:
			if right == nil {
				ret[i] = Null()
			} else {
				ret[i] = right[c.Right]
			}
		}
	}
	return ret
}

func addToSide(side map[string]*ZSet, key string, row Row, mult int) {
	z, ok := side[key]
	if !ok {
		z = NewZSet()
		side[key] = z
	}
	z.AddRow(row, mult)
	if z.IsZero() {
		delete(side, key)
	}
}

// Snapshot returns the current output of the join, computed from the state of both sides.
func (op *JoinOp) Snapshot() *ZSet {
	result := NewZSet()
	for k, lefts := range op.left {
		matches := op.right[k]
		for lkey, lmult := range lefts.counts {
			lrow := lefts.rows[lkey]
			if matches.Weight() > 0 {
				for rkey, rmult := range matches.counts {
					result.AddRow(op.combine(lrow, matches.rows[rkey]), lmult*rmult)
				}
			} else if op.kind == LeftJoin {
				result.AddRow(op.combine(lrow, nil), lmult)
			}
		}
	}
	return result
}

// Reset drops the state of both sides.
func (op *JoinOp) Reset() {
	op.left = map[string]*ZSet{}
	op.right = map[string]*ZSet{}
}

func (op *JoinOp) String() string {
	return fmt.Sprintf("%s[%s %s]", op.name, op.kind, util.Join(op.emit, ","))
}
