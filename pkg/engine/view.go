package engine

import (
	"context"
	"time"

	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/graph"
	"github.com/l7mp/dflow/pkg/metrics"
)

// View is the read handle of a maintained node.
type View struct {
	e      *Engine
	id     graph.NodeID
	name   string
	schema dbsp.Schema
	idx    *Index
}

func (v *View) Name() string        { return v.name }
func (v *View) ID() graph.NodeID    { return v.id }
func (v *View) Schema() dbsp.Schema { return v.schema }
func (v *View) Key() []int          { return v.idx.Key() }

// wait makes the view consistent with every write accepted so far if block is set.
func (v *View) wait(ctx context.Context, block bool) error {
	if v.e.index(v.id) != v.idx {
		return NewViewError(v.name, ErrUnknownView)
	}
	if !block {
		return nil
	}

	seq := v.e.Sequence()
	start := time.Now()
	if err := v.e.WaitApplied(ctx, seq); err != nil {
		return err
	}
	metrics.LookupWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// Lookup returns the rows stored under key. If block is set, the result reflects every write
// accepted before the call, otherwise whatever has been propagated so far.
func (v *View) Lookup(ctx context.Context, key dbsp.Row, block bool) ([]dbsp.Row, error) {
	if len(key) != len(v.idx.Key()) {
		return nil, dbsp.NewArityError("lookup key", len(v.idx.Key()), len(key))
	}
	if err := v.wait(ctx, block); err != nil {
		return nil, err
	}
	return v.idx.Lookup(key)
}

// All returns every row of the view.
func (v *View) All(ctx context.Context, block bool) ([]dbsp.Row, error) {
	if err := v.wait(ctx, block); err != nil {
		return nil, err
	}
	return v.idx.All(), nil
}

// Keys returns the distinct keys of the view.
func (v *View) Keys(ctx context.Context, block bool) ([]dbsp.Row, error) {
	if err := v.wait(ctx, block); err != nil {
		return nil, err
	}
	return v.idx.Keys(), nil
}

// Len returns the number of rows in the view without waiting for pending writes.
func (v *View) Len() int { return v.idx.Len() }
