package graph

import (
	"fmt"

	"github.com/l7mp/dflow/pkg/dbsp"
)

// Migration is a staged batch of graph mutations. Nothing is visible to the rest of the system
// until Commit publishes the staged nodes atomically.
type Migration struct {
	g        *Graph
	base     *Arena
	staged   []*Node
	byName   map[string]NodeID
	maintain map[NodeID][]int
	done     bool
}

// Result describes a committed migration.
type Result struct {
	Arena *Arena
	// Added holds the ids of the new nodes in id order.
	Added []NodeID
	// Maintained holds the ids of the nodes that got a new index, new or already committed.
	Maintained []NodeID
}

// Graph returns the graph the migration belongs to.
func (m *Migration) Graph() *Graph { return m.g }

func (m *Migration) lookup(id NodeID) (*Node, bool) {
	if n, ok := m.base.Node(id); ok {
		return n, true
	}
	i := int(id) - len(m.base.Nodes)
	if i >= 0 && i < len(m.staged) {
		return m.staged[i], true
	}
	return nil, false
}

// Lookup resolves a committed or staged node by name.
func (m *Migration) Lookup(name string) (*Node, bool) {
	if id, ok := m.byName[name]; ok {
		return m.lookup(id)
	}
	return m.base.Lookup(name)
}

func (m *Migration) checkName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty node name", dbsp.ErrInvalidOperator)
	}
	if _, ok := m.Lookup(name); ok {
		return NewDuplicateNameError(name)
	}
	return nil
}

func (m *Migration) stage(n *Node) NodeID {
	n.ID = NodeID(len(m.base.Nodes) + len(m.staged))
	m.staged = append(m.staged, n)
	if m.byName == nil {
		m.byName = map[string]NodeID{}
	}
	m.byName[n.Name] = n.ID
	return n.ID
}

// AddBase stages a base table. The key lists the key columns, an empty key makes the whole row
// the key.
func (m *Migration) AddBase(name string, schema dbsp.Schema, key []int) (NodeID, error) {
	if m.done {
		return -1, ErrMigrationDone
	}
	if err := m.checkName(name); err != nil {
		return -1, err
	}

	op := dbsp.NewTable(schema.Arity(), key...)
	if err := op.Validate(nil, schema.Arity()); err != nil {
		return -1, NewNodeError(name, err)
	}

	return m.stage(&Node{Name: name, Schema: schema, Op: op}), nil
}

// AddOperator stages an operator node fed by the given parents, in input order.
func (m *Migration) AddOperator(name string, schema dbsp.Schema, op dbsp.Operator, parents ...NodeID) (NodeID, error) {
	if m.done {
		return -1, ErrMigrationDone
	}
	if err := m.checkName(name); err != nil {
		return -1, err
	}
	if _, ok := op.(*dbsp.TableOp); ok {
		return -1, NewNodeError(name, fmt.Errorf("%w: use AddBase to add tables", dbsp.ErrInvalidOperator))
	}

	widths := make([]int, len(parents))
	level := 0
	for i, pid := range parents {
		p, ok := m.lookup(pid)
		if !ok {
			return -1, NewParentError(name, pid)
		}
		widths[i] = p.Schema.Arity()
		if p.Level+1 > level {
			level = p.Level + 1
		}
	}

	if err := op.Validate(widths, schema.Arity()); err != nil {
		return -1, NewNodeError(name, err)
	}

	return m.stage(&Node{
		Name:    name,
		Schema:  schema,
		Op:      op,
		Parents: append([]NodeID(nil), parents...),
		Level:   level,
	}), nil
}

// Maintain requests a materialized index on a staged or committed node, keyed on the given
// columns.
func (m *Migration) Maintain(id NodeID, key []int) error {
	if m.done {
		return ErrMigrationDone
	}
	n, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	for _, c := range key {
		if c < 0 || c >= n.Schema.Arity() {
			return NewNodeError(n.Name, fmt.Errorf("%w: key column %d out of range [0,%d)",
				dbsp.ErrArityMismatch, c, n.Schema.Arity()))
		}
	}
	m.maintain[id] = append([]int{}, key...)
	return nil
}

// Discard drops the staging area.
func (m *Migration) Discard() {
	m.done = true
	m.staged, m.byName, m.maintain = nil, nil, nil
}

// Commit splices the staged nodes into the graph and publishes the new arena. It fails with
// ErrStaleMigration if another commit happened since the migration was started.
func (m *Migration) Commit() (*Result, error) {
	if m.done {
		return nil, ErrMigrationDone
	}

	m.g.mu.Lock()
	defer m.g.mu.Unlock()

	cur := m.g.arena.Load()
	if cur != m.base {
		return nil, fmt.Errorf("%w: graph at version %d, migration started at %d", ErrStaleMigration,
			cur.Version, m.base.Version)
	}

	for _, n := range m.staged {
		for _, p := range n.Parents {
			if p >= n.ID {
				return nil, NewNodeError(n.Name, ErrCyclicGraph)
			}
		}
	}

	next := cur.clone()
	next.Version++
	res := &Result{Arena: next}

	for _, n := range m.staged {
		next.Nodes = append(next.Nodes, n)
		next.byName[n.Name] = n.ID
		res.Added = append(res.Added, n.ID)
		for _, pid := range n.Parents {
			p := next.Nodes[pid]
			if int(pid) < len(cur.Nodes) && p == cur.Nodes[pid] {
				// committed parent: copy before touching
				p = p.clone()
				next.Nodes[pid] = p
			}
			if len(p.Children) == 0 || p.Children[len(p.Children)-1] != n.ID {
				p.Children = append(p.Children, n.ID)
			}
		}
	}

	for id := NodeID(0); int(id) < len(next.Nodes); id++ {
		key, ok := m.maintain[id]
		if !ok {
			continue
		}
		n := next.Nodes[id]
		if int(id) < len(cur.Nodes) && n == cur.Nodes[id] {
			n = n.clone()
			next.Nodes[id] = n
		}
		n.Key = key
		res.Maintained = append(res.Maintained, id)
	}

	m.g.arena.Store(next)
	m.done = true

	m.g.log.V(1).Info("migration committed", "version", next.Version, "added", len(res.Added),
		"maintained", len(res.Maintained))

	return res, nil
}
