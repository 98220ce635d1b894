package dbsp

import (
	"encoding/json"
	"fmt"

	"github.com/l7mp/dflow/pkg/util"
)

// Row is an ordered, fixed-arity tuple of values. Rows are never mutated once handed to an
// operator, operators build new rows instead.
type Row []Value

// NewRow creates a row from native Go scalars (nil, integers and strings). It panics on
// unsupported types, use ParseRow to get an error instead.
func NewRow(vals ...any) Row {
	row, err := ParseRow(vals)
	if err != nil {
		panic(err)
	}
	return row
}

// ParseRow converts a list of native scalars into a row.
func ParseRow(vals []any) (Row, error) {
	row := make(Row, len(vals))
	for i, v := range vals {
		val, err := ValueOf(v)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		row[i] = val
	}
	return row, nil
}

// Project returns a new row made of the given columns.
func (r Row) Project(cols []int) Row {
	ret := make(Row, len(cols))
	for i, c := range cols {
		ret[i] = r[c]
	}
	return ret
}

// With returns a copy of the row with column col set to v.
func (r Row) With(col int, v Value) Row {
	ret := r.Clone()
	ret[col] = v
	return ret
}

func (r Row) Clone() Row {
	ret := make(Row, len(r))
	copy(ret, r)
	return ret
}

func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for i := range r {
		if !r[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Compare orders rows lexicographically.
func (r Row) Compare(o Row) int {
	for i := 0; i < len(r) && i < len(o); i++ {
		if c := r[i].Compare(o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(r) < len(o):
		return -1
	case len(r) > len(o):
		return 1
	}
	return 0
}

// Key returns the canonical encoding of the row, used as the identity of the row in Z-sets and
// indices. Two rows have the same key iff they are structurally equal.
func (r Row) Key() string {
	key, err := computeKey(r)
	if err != nil {
		// values always marshal
		panic(err)
	}
	return key
}

func (r Row) String() string {
	return "(" + util.Join(r, ", ") + ")"
}

// computeKey creates a deterministic JSON representation for row identity.
func computeKey(r Row) (string, error) {
	if r == nil {
		r = Row{}
	}
	bytes, err := json.Marshal(r)
	if err != nil {
		return "", newZSetError("failed to marshal row to JSON", err)
	}
	return string(bytes), nil
}

// Schema is the ordered list of column names of a node.
type Schema []string

// Arity returns the number of columns.
func (s Schema) Arity() int { return len(s) }

// ColumnIndex resolves a column name.
func (s Schema) ColumnIndex(name string) (int, bool) {
	for i, c := range s {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Sign is the direction of a delta.
type Sign int

const (
	Insert Sign = 1
	Delete Sign = -1
)

func (s Sign) String() string {
	if s == Delete {
		return "-"
	}
	return "+"
}

// Delta is one unit of change flowing along an edge.
type Delta struct {
	Row  Row
	Sign Sign
}

func (d Delta) String() string { return d.Sign.String() + d.Row.String() }
