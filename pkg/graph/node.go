package graph

import (
	"fmt"

	"github.com/l7mp/dflow/pkg/dbsp"
)

// NodeID is the stable index of a node in the arena. Ids are never reused.
type NodeID int

// Node is a vertex of the dataflow graph. Nodes stored in an arena are never mutated, mutations
// create a copy.
type Node struct {
	ID       NodeID
	Name     string
	Schema   dbsp.Schema
	Op       dbsp.Operator
	Parents  []NodeID
	Children []NodeID
	// Level is the length of the longest path from a base table, nodes of the same level never
	// depend on each other.
	Level int
	// Key is the index key of a maintained node, nil if the node is not maintained.
	Key     []int
	Removed bool
}

// IsBase reports whether the node is a base table.
func (n *Node) IsBase() bool {
	_, ok := n.Op.(*dbsp.TableOp)
	return ok
}

// Table returns the table op of a base node.
func (n *Node) Table() (*dbsp.TableOp, bool) {
	t, ok := n.Op.(*dbsp.TableOp)
	return t, ok
}

// IsMaintained reports whether the node has a materialized index.
func (n *Node) IsMaintained() bool { return n.Key != nil }

func (n *Node) clone() *Node {
	ret := *n
	ret.Parents = append([]NodeID(nil), n.Parents...)
	ret.Children = append([]NodeID(nil), n.Children...)
	if n.Key != nil {
		ret.Key = append([]int{}, n.Key...)
	}
	return &ret
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%d):%s", n.Name, n.ID, n.Op)
}
