package engine

import (
	"context"

	"github.com/l7mp/dflow/pkg/dbsp"
	"github.com/l7mp/dflow/pkg/graph"
	"github.com/l7mp/dflow/pkg/metrics"
	"github.com/l7mp/dflow/pkg/persist"
)

// Table is the write handle of a base table.
type Table struct {
	e      *Engine
	id     graph.NodeID
	name   string
	schema dbsp.Schema
	op     *dbsp.TableOp
}

func (t *Table) Name() string        { return t.name }
func (t *Table) ID() graph.NodeID    { return t.id }
func (t *Table) Schema() dbsp.Schema { return t.schema }
func (t *Table) Key() []int          { return t.op.Key() }

// Len returns the number of live rows.
func (t *Table) Len() int { return t.op.Len() }

// Get returns the live row stored under key.
func (t *Table) Get(key dbsp.Row) (dbsp.Row, bool) { return t.op.Get(key) }

// Insert upserts a row and returns the sequence number of the write.
func (t *Table) Insert(ctx context.Context, row dbsp.Row) (uint64, error) {
	return t.e.write(ctx, t, persist.Record{Table: t.name, Kind: persist.KindInsert, Row: row}, false)
}

// Delete removes the row stored under key, deleting a missing key is a no-op.
func (t *Table) Delete(ctx context.Context, key dbsp.Row) (uint64, error) {
	return t.e.write(ctx, t, persist.Record{Table: t.name, Kind: persist.KindDelete, Key: key}, false)
}

// Update replaces the row stored under key.
func (t *Table) Update(ctx context.Context, key, row dbsp.Row) (uint64, error) {
	return t.e.write(ctx, t, persist.Record{Table: t.name, Kind: persist.KindUpdate, Key: key, Row: row}, false)
}

func (t *Table) prepare(rec persist.Record) (*dbsp.ZSet, error) {
	switch rec.Kind {
	case persist.KindInsert:
		return t.op.PrepareInsert(rec.Row)
	case persist.KindDelete:
		return t.op.PrepareDelete(rec.Key)
	case persist.KindUpdate:
		return t.op.PrepareUpdate(rec.Key, rec.Row)
	}
	return nil, dbsp.NewOperatorError(t.name, "unknown write kind "+string(rec.Kind))
}

// write turns a write into a delta batch, records it, applies it to the table and hands it over
// for propagation. Replayed writes keep the sequence number of their record and are not logged
// again.
func (e *Engine) write(ctx context.Context, t *Table, rec persist.Record, replay bool) (uint64, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.closed {
		return 0, ErrClosed
	}
	if n, ok := e.graph.Arena().Node(t.id); !ok || n.Op != dbsp.Operator(t.op) {
		return 0, NewTableError(t.name)
	}

	delta, err := t.prepare(rec)
	if err != nil {
		metrics.WriteErrorsTotal.WithLabelValues(t.name).Inc()
		return 0, err
	}

	seq := e.seq.Load() + 1
	if replay {
		if rec.Seq > seq {
			seq = rec.Seq
		}
	} else {
		rec.Seq = seq
	}

	if delta.IsZero() {
		if replay {
			prev := e.seq.Load()
			e.seq.Store(seq)
			e.advanceIdle(prev, seq)
		}
		return e.seq.Load(), nil
	}

	if !replay {
		if err := e.plog.Append(ctx, rec); err != nil {
			metrics.WriteErrorsTotal.WithLabelValues(t.name).Inc()
			return 0, NewDurabilityError(err)
		}
	}

	if err := t.op.Apply(delta); err != nil {
		return 0, err
	}
	e.seq.Store(seq)

	e.queue <- &batch{seq: seq, node: t.id, delta: delta}
	metrics.WritesTotal.WithLabelValues(t.name, string(rec.Kind)).Inc()
	metrics.QueueDepth.Set(float64(len(e.queue)))

	e.log.V(4).Info("write accepted", "table", t.name, "kind", rec.Kind, "seq", seq)

	return seq, nil
}

// advanceIdle moves the watermark over sequence numbers that produced no batch, once every
// batch up to prev has been applied. The caller must hold writeMu.
func (e *Engine) advanceIdle(prev, seq uint64) {
	if err := e.WaitApplied(context.Background(), prev); err == nil {
		e.advance(seq)
	}
}
