package dbsp

import (
	"fmt"
	"strings"

	"github.com/l7mp/dflow/pkg/util"
)

// Comparison is the kind of a filter predicate.
type Comparison int

const (
	CmpEqual Comparison = iota
	CmpNotEqual
	CmpIn
	CmpLess
	CmpLessOrEqual
	CmpGreater
	CmpGreaterOrEqual
	CmpIsNull
	CmpNotNull
)

var comparisonNames = map[Comparison]string{
	CmpEqual:          "==",
	CmpNotEqual:       "!=",
	CmpIn:             "in",
	CmpLess:           "<",
	CmpLessOrEqual:    "<=",
	CmpGreater:        ">",
	CmpGreaterOrEqual: ">=",
	CmpIsNull:         "is-null",
	CmpNotNull:        "not-null",
}

func (c Comparison) String() string {
	if s, ok := comparisonNames[c]; ok {
		return s
	}
	return "unknown"
}

// ParseComparison resolves the textual form of a comparison.
func ParseComparison(s string) (Comparison, error) {
	for c, name := range comparisonNames {
		if name == s {
			return c, nil
		}
	}
	switch strings.ToLower(s) {
	case "eq", "equal":
		return CmpEqual, nil
	case "ne", "neq", "not-equal":
		return CmpNotEqual, nil
	case "lt":
		return CmpLess, nil
	case "le", "lte":
		return CmpLessOrEqual, nil
	case "gt":
		return CmpGreater, nil
	case "ge", "gte":
		return CmpGreaterOrEqual, nil
	}
	return 0, fmt.Errorf("%w: unknown comparison %q", ErrInvalidOperator, s)
}

// Condition is a single-column predicate.
type Condition struct {
	Column int
	Op     Comparison
	Values []Value
}

// Equal matches rows whose column equals v.
func Equal(col int, v Value) Condition { return Condition{Column: col, Op: CmpEqual, Values: []Value{v}} }

// NotEqual matches rows whose column differs from v.
func NotEqual(col int, v Value) Condition {
	return Condition{Column: col, Op: CmpNotEqual, Values: []Value{v}}
}

// In matches rows whose column equals any of vs.
func In(col int, vs ...Value) Condition { return Condition{Column: col, Op: CmpIn, Values: vs} }

// Match evaluates the condition on a row. Ordered comparisons never match Null.
func (c Condition) Match(row Row) bool {
	v := row[c.Column]
	switch c.Op {
	case CmpEqual:
		return v.Equal(c.Values[0])
	case CmpNotEqual:
		return !v.Equal(c.Values[0])
	case CmpIn:
		for _, x := range c.Values {
			if v.Equal(x) {
				return true
			}
		}
		return false
	case CmpIsNull:
		return v.IsNull()
	case CmpNotNull:
		return !v.IsNull()
	}

	if v.IsNull() || c.Values[0].IsNull() {
		return false
	}
	cmp := v.Compare(c.Values[0])
	switch c.Op {
	case CmpLess:
		return cmp < 0
	case CmpLessOrEqual:
		return cmp <= 0
	case CmpGreater:
		return cmp > 0
	case CmpGreaterOrEqual:
		return cmp >= 0
	}
	return false
}

func (c Condition) validate(arity int) error {
	if err := checkColumn("σ", c.Column, arity); err != nil {
		return err
	}
	switch c.Op {
	case CmpIsNull, CmpNotNull:
		return nil
	case CmpIn:
		return nil
	}
	if len(c.Values) != 1 {
		return NewOperatorError("σ", fmt.Sprintf("comparison %s needs exactly one value", c.Op))
	}
	return nil
}

func (c Condition) String() string {
	switch c.Op {
	case CmpIsNull, CmpNotNull:
		return fmt.Sprintf("$%d %s", c.Column, c.Op)
	case CmpIn:
		return fmt.Sprintf("$%d in [%s]", c.Column, util.Join(c.Values, ","))
	}
	return fmt.Sprintf("$%d %s %s", c.Column, c.Op, c.Values[0])
}

// FilterOp is a stateless selection: a row passes iff it satisfies every condition.
type FilterOp struct {
	BaseOp
	conditions []Condition
}

// NewFilter creates a new filter op.
func NewFilter(conditions ...Condition) *FilterOp {
	return &FilterOp{
		BaseOp:     NewBaseOp("σ", 1),
		conditions: conditions,
	}
}

func (n *FilterOp) OpType() OperatorType { return OpTypeLinear }

// Conditions returns the predicate list.
func (n *FilterOp) Conditions() []Condition { return n.conditions }

// Validate checks the op config.
func (n *FilterOp) Validate(inputs []int, output int) error {
	if err := n.validateArity(inputs); err != nil {
		return err
	}
	if output != inputs[0] {
		return NewArityError("filter output", inputs[0], output)
	}
	for _, c := range n.conditions {
		if err := c.validate(inputs[0]); err != nil {
			return err
		}
	}
	return nil
}

// Match reports whether the row passes the filter.
func (n *FilterOp) Match(row Row) bool {
	for _, c := range n.conditions {
		if !c.Match(row) {
			return false
		}
	}
	return true
}

// Process evaluates the op.
func (n *FilterOp) Process(inputs ...*ZSet) (*ZSet, error) {
	if err := n.validateInputs(inputs); err != nil {
		return nil, err
	}

	result := NewZSet()
	if inputs[0] == nil {
		return result, nil
	}
	for key, multiplicity := range inputs[0].counts {
		row := inputs[0].rows[key]
		if n.Match(row) {
			result.AddRow(row, multiplicity)
		}
	}

	return result, nil
}

func (n *FilterOp) String() string {
	return fmt.Sprintf("σ[%s]", util.Join(n.conditions, " ∧ "))
}

// RewritePolicy selects when a rewrite op replaces the target column.
type RewritePolicy int

const (
	// RedactAlways replaces the target column on every row.
	RedactAlways RewritePolicy = iota
)

// RewriteOp replaces a target column with a constant redaction token. Its second input is the
// reference relation whose key column identifies the entity behind the signal column; the
// reference only contributes to the graph structure, it never produces output.
type RewriteOp struct {
	BaseOp
	column    int
	token     Value
	signal    int
	reference int
	policy    RewritePolicy
}

// NewRewrite creates a new rewrite op replacing column with token. signal is a column of the
// primary input and reference is the key column of the reference input.
func NewRewrite(column int, token Value, signal, reference int) *RewriteOp {
	return &RewriteOp{
		BaseOp:    NewBaseOp("ρ", 2),
		column:    column,
		token:     token,
		signal:    signal,
		reference: reference,
		policy:    RedactAlways,
	}
}

func (n *RewriteOp) OpType() OperatorType { return OpTypeLinear }
func (n *RewriteOp) Column() int          { return n.column }
func (n *RewriteOp) Token() Value         { return n.token }
func (n *RewriteOp) Policy() RewritePolicy {
	return n.policy
}

// Validate checks the op config.
func (n *RewriteOp) Validate(inputs []int, output int) error {
	if err := n.validateArity(inputs); err != nil {
		return err
	}
	if output != inputs[0] {
		return NewArityError("rewrite output", inputs[0], output)
	}
	if err := checkColumn("ρ", n.column, inputs[0]); err != nil {
		return err
	}
	if err := checkColumn("ρ", n.signal, inputs[0]); err != nil {
		return err
	}
	return checkColumn("ρ", n.reference, inputs[1])
}

// Process evaluates the op. Deltas of the reference input are consumed without output.
func (n *RewriteOp) Process(inputs ...*ZSet) (*ZSet, error) {
	if err := n.validateInputs(inputs); err != nil {
		return nil, err
	}

	result := NewZSet()
	if inputs[0] == nil {
		return result, nil
	}
	for key, multiplicity := range inputs[0].counts {
		result.AddRow(inputs[0].rows[key].With(n.column, n.token), multiplicity)
	}

	return result, nil
}

func (n *RewriteOp) String() string {
	return fmt.Sprintf("ρ[$%d := %s | signal $%d, ref $%d]", n.column, n.token, n.signal, n.reference)
}

// UnionOp merges its inputs into a shared output schema. Each input is projected through its own
// column list. There is no deduplication across inputs.
type UnionOp struct {
	BaseOp
	emit [][]int
}

// NewUnion creates a union op, emit[i] is the column list of input i.
func NewUnion(emit ...[]int) *UnionOp {
	return &UnionOp{
		BaseOp: NewBaseOp("∪", len(emit)),
		emit:   emit,
	}
}

func (n *UnionOp) OpType() OperatorType { return OpTypeLinear }

// Validate checks the op config.
func (n *UnionOp) Validate(inputs []int, output int) error {
	if err := n.validateArity(inputs); err != nil {
		return err
	}
	if n.arity == 0 {
		return NewOperatorError("∪", "needs at least one input")
	}
	for i, cols := range n.emit {
		if len(cols) != output {
			return NewArityError(fmt.Sprintf("union input %d", i), output, len(cols))
		}
		for _, c := range cols {
			if err := checkColumn("∪", c, inputs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Process evaluates the op.
func (n *UnionOp) Process(inputs ...*ZSet) (*ZSet, error) {
	if err := n.validateInputs(inputs); err != nil {
		return nil, err
	}

	result := NewZSet()
	for i, input := range inputs {
		if input == nil {
			continue
		}
		for key, multiplicity := range input.counts {
			result.AddRow(input.rows[key].Project(n.emit[i]), multiplicity)
		}
	}

	return result, nil
}

func (n *UnionOp) String() string {
	parts := make([]string, len(n.emit))
	for i, cols := range n.emit {
		parts[i] = fmt.Sprintf("%d:%v", i, cols)
	}
	return fmt.Sprintf("∪[%s]", strings.Join(parts, " "))
}
