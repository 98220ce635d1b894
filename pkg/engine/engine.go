// Package engine maintains materialized views over a dataflow graph: it sequences base table
// writes, propagates their deltas through the graph and serves lookups that are consistent with
// every write accepted before the lookup.
package engine

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/graph"
	"github.com/l7mp/dflow/pkg/metrics"
	"github.com/l7mp/dflow/pkg/persist"
)

const DefaultQueueCapacity = 1024

// Options configures an engine.
type Options struct {
	// Workers bounds the number of nodes processed concurrently inside a batch. Defaults to
	// GOMAXPROCS.
	Workers int
	// QueueCapacity is the number of write batches that may wait for propagation before
	// writers block.
	QueueCapacity int
	// Log is the durability log, no log is kept if nil.
	Log persist.Log
	// Logger is the logger of the engine.
	Logger logr.Logger
}

// Engine is the incremental dataflow engine.
type Engine struct {
	id    string
	graph *graph.Graph
	opts  Options

	// writeMu serializes writes, migrations and node removals.
	writeMu sync.Mutex
	seq     atomic.Uint64
	closed  bool

	stateMu sync.Mutex
	applied uint64
	notify  chan struct{}

	queue chan *batch
	done  chan struct{}

	indexMu sync.RWMutex
	indices map[graph.NodeID]*Index

	plog        persist.Log
	logger, log logr.Logger
}

// New creates an engine and starts its propagation goroutine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	plog := opts.Log
	if plog == nil {
		plog = persist.NewNopLog()
	}

	id := uuid.NewString()
	e := &Engine{
		id:      id,
		graph:   graph.New(logger),
		opts:    opts,
		notify:  make(chan struct{}),
		queue:   make(chan *batch, opts.QueueCapacity),
		done:    make(chan struct{}),
		indices: map[graph.NodeID]*Index{},
		plog:    plog,
		logger:  logger,
		log:     logger.WithName("engine").WithValues("id", id),
	}

	go e.run()

	e.log.V(1).Info("engine started", "workers", opts.Workers, "queue-capacity", opts.QueueCapacity)

	return e
}

// ID returns the unique id of the engine instance.
func (e *Engine) ID() string { return e.id }

// Graph returns the dataflow graph.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Sequence returns the sequence number of the last accepted write.
func (e *Engine) Sequence() uint64 { return e.seq.Load() }

// Applied returns the sequence number of the last write whose deltas reached every index.
func (e *Engine) Applied() uint64 {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.applied
}

// WaitApplied blocks until every write up to seq has been applied.
func (e *Engine) WaitApplied(ctx context.Context, seq uint64) error {
	for {
		e.stateMu.Lock()
		applied, ch := e.applied, e.notify
		e.stateMu.Unlock()

		if applied >= seq {
			return nil
		}

		select {
		case <-ch:
		case <-e.done:
			if e.Applied() >= seq {
				return nil
			}
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sync blocks until every write accepted so far has been applied.
func (e *Engine) Sync(ctx context.Context) error {
	return e.WaitApplied(ctx, e.seq.Load())
}

func (e *Engine) advance(seq uint64) {
	e.stateMu.Lock()
	e.applied = seq
	close(e.notify)
	e.notify = make(chan struct{})
	e.stateMu.Unlock()

	metrics.AppliedSequence.Set(float64(seq))
}

// drain waits until the queue is empty, the caller must hold writeMu.
func (e *Engine) drain() error {
	return e.WaitApplied(context.Background(), e.seq.Load())
}

func (e *Engine) index(id graph.NodeID) *Index {
	e.indexMu.RLock()
	defer e.indexMu.RUnlock()
	return e.indices[id]
}

func (e *Engine) setIndex(id graph.NodeID, x *Index) {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	if x == nil {
		delete(e.indices, id)
		return
	}
	e.indices[id] = x
}

// Table returns the write handle of a base table.
func (e *Engine) Table(name string) (*Table, error) {
	n, ok := e.graph.Arena().Lookup(name)
	if !ok {
		return nil, NewTableError(name)
	}
	op, ok := n.Table()
	if !ok {
		return nil, NewTableError(name)
	}
	return &Table{e: e, id: n.ID, name: name, schema: n.Schema, op: op}, nil
}

// View returns the read handle of a maintained node.
func (e *Engine) View(name string) (*View, error) {
	n, ok := e.graph.Arena().Lookup(name)
	if !ok {
		return nil, NewViewError(name, ErrUnknownView)
	}
	x := e.index(n.ID)
	if x == nil {
		return nil, NewViewError(name, ErrNotMaintained)
	}
	return &View{e: e, id: n.ID, name: name, schema: n.Schema, idx: x}, nil
}

// Insert inserts a row into the named table.
func (e *Engine) Insert(ctx context.Context, table string, row dbsp.Row) (uint64, error) {
	t, err := e.Table(table)
	if err != nil {
		return 0, err
	}
	return t.Insert(ctx, row)
}

// Delete deletes the row stored under key from the named table.
func (e *Engine) Delete(ctx context.Context, table string, key dbsp.Row) (uint64, error) {
	t, err := e.Table(table)
	if err != nil {
		return 0, err
	}
	return t.Delete(ctx, key)
}

// Update replaces the row stored under key in the named table.
func (e *Engine) Update(ctx context.Context, table string, key, row dbsp.Row) (uint64, error) {
	t, err := e.Table(table)
	if err != nil {
		return 0, err
	}
	return t.Update(ctx, key, row)
}

// RemoveNode removes a leaf node and tears down its index.
func (e *Engine) RemoveNode(id graph.NodeID) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.drain(); err != nil {
		return err
	}

	n, err := e.graph.RemoveNode(id)
	if err != nil {
		return err
	}
	if n != nil {
		e.setIndex(id, nil)
		metrics.GraphNodes.Set(float64(e.graph.Arena().Len()))
		e.log.V(1).Info("node removed", "name", n.Name)
	}
	return nil
}

// Close drains the propagation queue, stops the engine and closes the durability log.
func (e *Engine) Close() error {
	e.writeMu.Lock()
	if e.closed {
		e.writeMu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.writeMu.Unlock()

	<-e.done

	e.log.V(1).Info("engine stopped", "applied", e.Applied())

	return e.plog.Close()
}
