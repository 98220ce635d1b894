// Package visualize renders the dataflow graph as diagrams.
package visualize

import (
	"fmt"
	"strings"

	"github.com/emicklei/dot"

	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/graph"
)

// Graph is the visualization model of a dataflow graph.
type Graph struct {
	Name  string
	Nodes []Node
	Edges []Edge
}

// Node is a single dataflow node.
type Node struct {
	ID       graph.NodeID
	Name     string
	Kind     string // table, filter, join, rewrite or union
	Operator string
	Columns  []string
	// Key is the index key of a maintained node, nil otherwise.
	Key []int
	// Leaf is set for nodes without children.
	Leaf bool
}

// Edge connects a parent to one of the inputs of a child.
type Edge struct {
	From, To graph.NodeID
	Input    int
}

// BuildGraph constructs the visualization model from a graph snapshot.
func BuildGraph(name string, a *graph.Arena) *Graph {
	g := &Graph{Name: name}

	for _, n := range a.Live() {
		g.Nodes = append(g.Nodes, Node{
			ID:       n.ID,
			Name:     n.Name,
			Kind:     kindOf(n.Op),
			Operator: n.Op.String(),
			Columns:  append([]string(nil), n.Schema...),
			Key:      n.Key,
			Leaf:     len(n.Children) == 0,
		})
		for i, p := range n.Parents {
			g.Edges = append(g.Edges, Edge{From: p, To: n.ID, Input: i})
		}
	}

	return g
}

func kindOf(op dbsp.Operator) string {
	switch op.(type) {
	case *dbsp.TableOp:
		return "table"
	case *dbsp.FilterOp:
		return "filter"
	case *dbsp.JoinOp:
		return "join"
	case *dbsp.RewriteOp:
		return "rewrite"
	case *dbsp.UnionOp:
		return "union"
	}
	return "unknown"
}

// Label returns the display label of a node.
func (n Node) Label() string {
	label := fmt.Sprintf("%s [%d]\n%s\n(%s)", n.Name, n.ID, n.Operator, strings.Join(n.Columns, ", "))
	if n.Key != nil {
		label += fmt.Sprintf("\nmaintained on %v", n.Key)
	}
	return label
}

// NodeShapes holds the shape attribute of each node kind. A nil shape leaves the renderer's
// default.
type NodeShapes struct {
	Table, Maintained, Operator any
}

var (
	// DotShapes are the Graphviz shapes.
	DotShapes = NodeShapes{Table: "ellipse", Maintained: "box", Operator: "box"}
	// MermaidShapes are the Mermaid shapes, the Mermaid renderer only accepts its own shape type.
	MermaidShapes = NodeShapes{Table: dot.MermaidShapeStadium, Maintained: dot.MermaidShapeRound}
)

// BuildDotGraph creates a dot.Graph from the visualization graph.
// This unified graph can then be rendered in different formats (DOT, Mermaid, etc.).
func BuildDotGraph(g *Graph, shapes NodeShapes) *dot.Graph {
	dg := dot.NewGraph(dot.Directed)
	dg.Attr("rankdir", "TB")
	dg.Attr("newrank", "true")
	dg.Attr("label", g.Name)
	dg.Attr("labelloc", "t")
	dg.Attr("fontsize", "16")

	nodes := make(map[graph.NodeID]dot.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		node := dg.Node(fmt.Sprintf("n%d", n.ID)).
			Attr("label", n.Label()).
			Attr("fontname", "helvetica")

		var shape any
		switch {
		case n.Kind == "table":
			shape = shapes.Table
			node.Attr("style", "filled").
				Attr("fillcolor", "lightgreen")
		case n.Key != nil:
			shape = shapes.Maintained
			node.Attr("style", "filled,rounded").
				Attr("fillcolor", "lightcyan").
				Attr("penwidth", "2")
		default:
			shape = shapes.Operator
			node.Attr("style", "filled,rounded").
				Attr("fillcolor", "lightblue").
				Attr("color", "darkblue")
		}
		if shape != nil {
			node.Attr("shape", shape)
		}
		nodes[n.ID] = node
	}

	// count the inputs of each node to label multi-input edges only
	inputs := map[graph.NodeID]int{}
	for _, e := range g.Edges {
		inputs[e.To]++
	}

	for _, e := range g.Edges {
		from, fromOK := nodes[e.From]
		to, toOK := nodes[e.To]
		if !fromOK || !toOK {
			continue
		}
		edge := dg.Edge(from, to)
		if inputs[e.To] > 1 {
			edge.Attr("label", fmt.Sprintf("%d", e.Input)).
				Attr("fontname", "helvetica").
				Attr("fontsize", "10")
		}
	}

	return dg
}
