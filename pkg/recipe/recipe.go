// Package recipe loads dataflow graphs and workloads from YAML.
package recipe

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/l7mp/dflow/internal/dag"
	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/engine"
	"github.com/l7mp/dflow/pkg/graph"
)

// Parse decodes a recipe. Unknown fields are rejected.
func Parse(b []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.UnmarshalStrict(b, &r); err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}
	return &r, nil
}

// Load reads a recipe from a file.
func Load(file string) (*Recipe, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file %q: %w", file, err)
	}
	return Parse(b)
}

// Inputs returns the names of the parents of the node in input order.
func (n *Node) Inputs() []string {
	switch {
	case n.Join != nil:
		return []string{n.Join.Left, n.Join.Right}
	case n.Filter != nil:
		return []string{n.Filter.Input}
	case n.Rewrite != nil:
		return []string{n.Rewrite.Input, n.Rewrite.Reference}
	case n.Union != nil:
		ret := make([]string, len(n.Union.Inputs))
		for i, in := range n.Union.Inputs {
			ret[i] = in.From
		}
		return ret
	}
	return nil
}

// Operator builds the operator of the node.
func (n *Node) Operator() (dbsp.Operator, error) {
	set := 0
	for _, ok := range []bool{n.Join != nil, n.Filter != nil, n.Rewrite != nil, n.Union != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: node %q must specify exactly one operator", engine.ErrInvalidOperator, n.Name)
	}

	switch {
	case n.Join != nil:
		return n.Join.operator()
	case n.Filter != nil:
		return n.Filter.operator()
	case n.Rewrite != nil:
		r := n.Rewrite
		return dbsp.NewRewrite(r.Column, r.Value, r.Signal, r.ReferenceKey), nil
	default:
		emit := make([][]int, len(n.Union.Inputs))
		for i, in := range n.Union.Inputs {
			emit[i] = in.Columns
		}
		return dbsp.NewUnion(emit...), nil
	}
}

func (j *Join) operator() (dbsp.Operator, error) {
	var kind dbsp.JoinType
	switch j.Type {
	case "", "inner":
		kind = dbsp.InnerJoin
	case "left", "left-outer":
		kind = dbsp.LeftJoin
	default:
		return nil, fmt.Errorf("%w: unknown join type %q", engine.ErrInvalidOperator, j.Type)
	}

	emit := make([]dbsp.Column, len(j.Emit))
	for i, c := range j.Emit {
		switch {
		case c.Left != nil && c.Right == nil && c.Both == nil:
			emit[i] = dbsp.L(*c.Left)
		case c.Right != nil && c.Left == nil && c.Both == nil:
			emit[i] = dbsp.R(*c.Right)
		case len(c.Both) == 2 && c.Left == nil && c.Right == nil:
			emit[i] = dbsp.B(c.Both[0], c.Both[1])
		default:
			return nil, fmt.Errorf("%w: join column %d must be one of left, right or a both pair",
				engine.ErrInvalidOperator, i)
		}
	}
	return dbsp.NewJoin(kind, emit...), nil
}

func (f *Filter) operator() (dbsp.Operator, error) {
	conds := make([]dbsp.Condition, len(f.Conditions))
	for i, c := range f.Conditions {
		op, err := dbsp.ParseComparison(c.Op)
		if err != nil {
			return nil, err
		}
		conds[i] = dbsp.Condition{Column: c.Column, Op: op, Values: c.Values}
	}
	return dbsp.NewFilter(conds...), nil
}

// order returns the recipe nodes sorted so that every node comes after its parents. Parents
// outside the recipe must already exist in the migration.
func (r *Recipe) order(m *engine.Migration) ([]*Node, error) {
	d := dag.New()
	nodes := map[string]*Node{}

	for _, t := range r.Tables {
		if !d.AddNode(t.Name) {
			return nil, graph.NewDuplicateNameError(t.Name)
		}
	}
	for i := range r.Nodes {
		n := &r.Nodes[i]
		if !d.AddNode(n.Name) {
			return nil, graph.NewDuplicateNameError(n.Name)
		}
		nodes[n.Name] = n
	}

	for _, n := range r.Nodes {
		for _, in := range n.Inputs() {
			if d.HasNode(in) {
				d.AddEdge(in, n.Name)
				continue
			}
			if _, ok := m.Lookup(in); !ok {
				return nil, fmt.Errorf("%w: node %q refers to %q", engine.ErrUnknownParent, n.Name, in)
			}
		}
	}

	sorted, err := d.TopoSort()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrCyclicGraph, err.Error())
	}

	ret := make([]*Node, 0, len(nodes))
	for _, name := range sorted {
		if n, ok := nodes[name]; ok {
			ret = append(ret, n)
		}
	}
	return ret, nil
}

// Apply adds the recipe to the engine in a single migration. On error nothing is committed.
func (r *Recipe) Apply(e *engine.Engine) (*graph.Result, error) {
	m := e.Migrate()

	if _, err := r.stage(m); err != nil {
		m.Discard()
		return nil, err
	}

	return m.Commit()
}

func (r *Recipe) stage(m *engine.Migration) (map[string]graph.NodeID, error) {
	ids := map[string]graph.NodeID{}
	resolve := func(name string) (graph.NodeID, error) {
		if id, ok := ids[name]; ok {
			return id, nil
		}
		if n, ok := m.Lookup(name); ok {
			return n.ID, nil
		}
		return 0, fmt.Errorf("%w: %q", engine.ErrUnknownParent, name)
	}

	for _, t := range r.Tables {
		id, err := m.AddBase(t.Name, dbsp.Schema(t.Columns), t.Key)
		if err != nil {
			return nil, err
		}
		ids[t.Name] = id
		if t.Maintain != nil {
			if err := m.Maintain(id, t.Maintain); err != nil {
				return nil, graph.NewNodeError(t.Name, err)
			}
		}
	}

	nodes, err := r.order(m)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		op, err := n.Operator()
		if err != nil {
			return nil, graph.NewNodeError(n.Name, err)
		}
		inputs := n.Inputs()
		parents := make([]graph.NodeID, len(inputs))
		for i, in := range inputs {
			if parents[i], err = resolve(in); err != nil {
				return nil, err
			}
		}
		id, err := m.AddOperator(n.Name, dbsp.Schema(n.Columns), op, parents...)
		if err != nil {
			return nil, err
		}
		ids[n.Name] = id
		if n.Maintain != nil {
			if err := m.Maintain(id, n.Maintain); err != nil {
				return nil, graph.NewNodeError(n.Name, err)
			}
		}
	}

	return ids, nil
}
