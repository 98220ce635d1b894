package engine

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/graph"
	"github.com/l7mp/dflow/pkg/metrics"
)

// batch is the delta produced by one base table write.
type batch struct {
	seq   uint64
	node  graph.NodeID
	delta *dbsp.ZSet
}

func (e *Engine) run() {
	defer close(e.done)

	for b := range e.queue {
		metrics.QueueDepth.Set(float64(len(e.queue)))

		start := time.Now()
		if err := e.propagate(b); err != nil {
			metrics.PropagationErrorsTotal.Inc()
			e.log.Error(err, "propagation failed", "seq", b.seq)
		}
		metrics.BatchLatencySeconds.Observe(time.Since(start).Seconds())

		e.advance(b.seq)
	}
}

// propagate pushes a batch through the part of the graph downstream of its base table, level by
// level. Nodes of the same level are independent and run concurrently, indices are updated
// after every level in id order.
func (e *Engine) propagate(b *batch) error {
	arena := e.graph.Arena()
	levels := arena.Downstream(b.node)

	var mu sync.Mutex
	outputs := map[graph.NodeID]*dbsp.ZSet{b.node: b.delta}
	var firstErr error

	for _, level := range levels {
		eg := errgroup.Group{}
		eg.SetLimit(e.opts.Workers)

		for _, n := range level {
			if n.ID == b.node {
				continue
			}

			mu.Lock()
			inputs, active := collectInputs(n, outputs)
			mu.Unlock()
			if !active {
				continue
			}

			n := n
			eg.Go(func() error {
				out, err := n.Op.Process(inputs...)
				if err != nil {
					return NewPropagationError(n.Name, err)
				}
				mu.Lock()
				outputs[n.ID] = out
				mu.Unlock()
				return nil
			})
		}

		if err := eg.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}

		for _, n := range level {
			out := outputs[n.ID]
			if out.IsZero() {
				continue
			}
			metrics.DeltasTotal.WithLabelValues(n.Name).Add(float64(out.TotalSize()))
			if x := e.index(n.ID); x != nil {
				if err := x.Apply(out); err != nil {
					e.log.Error(err, "inconsistent index", "node", n.Name, "seq", b.seq)
				}
			}
			e.log.V(5).Info("node output", "node", n.Name, "seq", b.seq, "delta", out.String())
		}
	}

	return firstErr
}

// collectInputs returns the input batches of a node in parent order and whether any of them is
// non-empty.
func collectInputs(n *graph.Node, outputs map[graph.NodeID]*dbsp.ZSet) ([]*dbsp.ZSet, bool) {
	inputs := make([]*dbsp.ZSet, len(n.Parents))
	active := false
	for i, p := range n.Parents {
		if z := outputs[p]; !z.IsZero() {
			inputs[i] = z
			active = true
		}
	}
	return inputs, active
}
