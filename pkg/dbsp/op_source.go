package dbsp

import (
	"fmt"
	"sync"
)

// TableOp is the operator of a base table: it has no inputs and is fed by external writes. It
// keeps the current row of every key so that writes can be turned into deltas with upsert
// semantics: at most one row is live per key.
type TableOp struct {
	BaseOp
	mu    sync.RWMutex
	width int
	key   []int
	rows  map[string]Row // key projection -> live row
}

// NewTable creates a base table op with the given number of columns. If no key columns are
// given, the whole row is the key.
func NewTable(width int, key ...int) *TableOp {
	if len(key) == 0 {
		key = make([]int, width)
		for i := range key {
			key[i] = i
		}
	}
	return &TableOp{
		BaseOp: NewBaseOp("table", 0),
		width:  width,
		key:    key,
		rows:   map[string]Row{},
	}
}

func (n *TableOp) OpType() OperatorType { return OpTypeSource }

// Key returns the key columns of the table.
func (n *TableOp) Key() []int { return n.key }

// Width returns the number of columns.
func (n *TableOp) Width() int { return n.width }

// Validate checks the op config.
func (n *TableOp) Validate(inputs []int, output int) error {
	if err := n.validateArity(inputs); err != nil {
		return err
	}
	if output != n.width {
		return NewArityError("table schema", n.width, output)
	}
	for _, c := range n.key {
		if err := checkColumn("table", c, n.width); err != nil {
			return err
		}
	}
	return nil
}

// Process returns an empty batch: tables produce output only through writes.
func (n *TableOp) Process(inputs ...*ZSet) (*ZSet, error) {
	if err := n.validateInputs(inputs); err != nil {
		return nil, err
	}
	return NewZSet(), nil
}

// PrepareInsert computes the deltas of inserting row without applying them. If a different row
// is live under the same key it is deleted first, re-inserting the live row is a no-op.
func (n *TableOp) PrepareInsert(row Row) (*ZSet, error) {
	if len(row) != n.width {
		return nil, NewArityError("insert", n.width, len(row))
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	result := NewZSet()
	if old, ok := n.rows[row.Project(n.key).Key()]; ok {
		if old.Equal(row) {
			return result, nil
		}
		result.AddRow(old, -1)
	}
	result.AddRow(row, 1)
	return result, nil
}

// PrepareDelete computes the deltas of deleting the row stored under key. Deleting a missing key
// yields an empty batch.
func (n *TableOp) PrepareDelete(key Row) (*ZSet, error) {
	if len(key) != len(n.key) {
		return nil, NewArityError("delete key", len(n.key), len(key))
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	result := NewZSet()
	if old, ok := n.rows[key.Key()]; ok {
		result.AddRow(old, -1)
	}
	return result, nil
}

// PrepareUpdate computes the deltas of replacing the row stored under key with row.
func (n *TableOp) PrepareUpdate(key, row Row) (*ZSet, error) {
	if len(key) != len(n.key) {
		return nil, NewArityError("update key", len(n.key), len(key))
	}
	if len(row) != n.width {
		return nil, NewArityError("update", n.width, len(row))
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	result := NewZSet()
	oldKey, newKey := key.Key(), row.Project(n.key).Key()
	if old, ok := n.rows[oldKey]; ok {
		result.AddRow(old, -1)
	}
	if newKey != oldKey {
		if old, ok := n.rows[newKey]; ok {
			result.AddRow(old, -1)
		}
	}
	result.AddRow(row, 1)
	return result, nil
}

// Apply applies a prepared batch to the table state.
func (n *TableOp) Apply(delta *ZSet) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	entries := delta.Entries()
	for _, e := range entries {
		if e.Multiplicity >= 0 {
			continue
		}
		k := e.Row.Project(n.key).Key()
		if old, ok := n.rows[k]; ok && old.Equal(e.Row) {
			delete(n.rows, k)
		}
	}
	for _, e := range entries {
		if e.Multiplicity <= 0 {
			continue
		}
		if e.Multiplicity != 1 {
			return fmt.Errorf("table: row %s inserted with multiplicity %d", e.Row, e.Multiplicity)
		}
		n.rows[e.Row.Project(n.key).Key()] = e.Row
	}
	return nil
}

// Get returns the live row stored under key.
func (n *TableOp) Get(key Row) (Row, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	row, ok := n.rows[key.Key()]
	return row, ok
}

// Len returns the number of live rows.
func (n *TableOp) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.rows)
}

// Snapshot returns the current contents of the table.
func (n *TableOp) Snapshot() *ZSet {
	n.mu.RLock()
	defer n.mu.RUnlock()
	result := NewZSet()
	for _, row := range n.rows {
		result.AddRow(row, 1)
	}
	return result
}

func (n *TableOp) String() string {
	return fmt.Sprintf("table[key=%v]", n.key)
}
