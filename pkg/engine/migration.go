package engine

import (
	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/graph"
	"github.com/l7mp/dflow/pkg/metrics"
)

// Migration stages graph mutations on an engine. Committing it publishes the new nodes and
// feeds them the current state of their upstream before any later write is propagated.
type Migration struct {
	*graph.Migration
	e *Engine
}

// Migrate starts a new migration.
func (e *Engine) Migrate() *Migration {
	return &Migration{Migration: e.graph.Migrate(), e: e}
}

// Commit drains the propagation queue, commits the staged nodes to the graph, creates the
// requested indices and replays the current upstream state into the new nodes.
func (m *Migration) Commit() (*graph.Result, error) {
	e := m.e
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	if err := e.drain(); err != nil {
		return nil, err
	}

	res, err := m.Migration.Commit()
	if err != nil {
		return nil, err
	}

	if err := e.replay(res); err != nil {
		e.log.Error(err, "replay failed", "version", res.Arena.Version)
		return res, err
	}

	metrics.GraphNodes.Set(float64(res.Arena.Len()))
	e.log.V(1).Info("migration committed", "version", res.Arena.Version, "added", len(res.Added),
		"maintained", len(res.Maintained))

	return res, nil
}

func (e *Engine) replay(res *graph.Result) error {
	a := res.Arena
	added := map[graph.NodeID]bool{}
	for _, id := range res.Added {
		added[id] = true
	}

	// snapshots of committed nodes, taken before any new index is installed
	cache := map[graph.NodeID]*dbsp.ZSet{}
	outputs := map[graph.NodeID]*dbsp.ZSet{}

	for _, id := range res.Added {
		n := a.Nodes[id]
		if n.IsBase() {
			outputs[id] = dbsp.NewZSet()
			continue
		}

		inputs := make([]*dbsp.ZSet, len(n.Parents))
		for i, pid := range n.Parents {
			if added[pid] {
				inputs[i] = outputs[pid]
				continue
			}
			z, err := e.snapshot(a, a.Nodes[pid], cache)
			if err != nil {
				return err
			}
			inputs[i] = z
		}

		out, err := n.Op.Process(inputs...)
		if err != nil {
			return NewPropagationError(n.Name, err)
		}
		outputs[id] = out
		e.log.V(4).Info("replayed node", "node", n.Name, "rows", out.Size())
	}

	for _, id := range res.Maintained {
		n := a.Nodes[id]
		contents, ok := outputs[id]
		if !ok {
			z, err := e.snapshot(a, n, cache)
			if err != nil {
				return err
			}
			contents = z
		}
		x := NewIndex(n.Key)
		if err := x.Apply(contents); err != nil {
			return err
		}
		e.setIndex(id, x)
	}

	return nil
}
