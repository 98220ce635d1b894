package graph

import (
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// Graph is the dataflow graph. Readers load the current arena without locking, mutations are
// serialized and publish a new arena.
type Graph struct {
	mu          sync.Mutex
	arena       atomic.Pointer[Arena]
	logger, log logr.Logger
}

// New creates an empty graph.
func New(logger logr.Logger) *Graph {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	g := &Graph{logger: logger, log: logger.WithName("graph")}
	g.arena.Store(newArena())
	return g
}

// Arena returns the current snapshot of the graph.
func (g *Graph) Arena() *Arena { return g.arena.Load() }

// Version returns the number of commits so far.
func (g *Graph) Version() uint64 { return g.arena.Load().Version }

// Migrate starts a new migration against the current version of the graph.
func (g *Graph) Migrate() *Migration {
	return &Migration{
		g:        g,
		base:     g.arena.Load(),
		maintain: map[NodeID][]int{},
	}
}

// RemoveNode removes a leaf node from the graph and returns it. Removing an unknown or already
// removed node is a no-op that returns nil.
func (g *Graph) RemoveNode(id NodeID) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.arena.Load()
	n, ok := cur.Node(id)
	if !ok {
		return nil, nil
	}
	if len(n.Children) > 0 {
		return nil, NewNodeError(n.Name, ErrHasChildren)
	}

	next := cur.clone()
	next.Version++

	removed := n.clone()
	removed.Removed = true
	removed.Key = nil
	next.Nodes[id] = removed
	delete(next.byName, n.Name)

	for _, pid := range n.Parents {
		p := next.Nodes[pid].clone()
		children := p.Children[:0]
		for _, c := range p.Children {
			if c != id {
				children = append(children, c)
			}
		}
		p.Children = children
		next.Nodes[pid] = p
	}

	g.arena.Store(next)
	g.log.V(2).Info("node removed", "name", n.Name, "id", id, "version", next.Version)

	return n, nil
}
